// Package transcript assembles recognized segments into display text.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/parlo-dev/parlo/internal/translate"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// Assemble joins segments in order by their effective text and applies the
// configured normalization. Blank segments contribute nothing.
func Assemble(segments []translate.Segment, opts Options) string {
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.EffectiveText())
	}
	return AssembleTexts(texts, opts)
}

// AssembleTexts is Assemble over raw strings, for callers that already
// flattened their segments.
func AssembleTexts(texts []string, opts Options) string {
	if len(texts) == 0 {
		return ""
	}

	joined := strings.Join(texts, " ")
	normalized := strings.Join(strings.Fields(joined), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

// capitalizeSentences uppercases the first letter of the text and of every
// word following terminal punctuation, and fixes the standalone pronoun "i".
func capitalizeSentences(text string) string {
	words := strings.Fields(text)
	atSentenceStart := true
	for i, word := range words {
		if word == "i" || strings.HasPrefix(word, "i'") {
			words[i] = "I" + word[1:]
			word = words[i]
		}
		if atSentenceStart {
			words[i] = upperFirst(word)
		}
		atSentenceStart = endsSentence(word)
	}
	return strings.Join(words, " ")
}

func upperFirst(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]`)
	return strings.HasSuffix(trimmed, ".") ||
		strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?")
}
