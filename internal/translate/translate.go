// Package translate rewrites transcript segments into a target language.
// Translation is best-effort enrichment: a failed call falls back to the
// original text and never drops a segment or fails the caller.
package translate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/parlo-dev/parlo/internal/transcribe"
)

// Provider performs one stateless text translation call.
type Provider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Segment extends a transcript segment with its translation.
type Segment struct {
	transcribe.Segment
	TranslatedText string
	TargetLanguage string
}

// EffectiveText prefers the translation, falling back to the original.
func (s Segment) EffectiveText() string {
	if strings.TrimSpace(s.TranslatedText) != "" {
		return s.TranslatedText
	}
	return s.Text
}

// Translator maps transcript segments one call per segment, preserving
// identity and order.
type Translator struct {
	provider Provider
	logger   *slog.Logger
}

// New builds a segment translator around one provider.
func New(provider Provider, logger *slog.Logger) *Translator {
	return &Translator{provider: provider, logger: logger}
}

// Translate converts one text. On provider failure the original text comes
// back unchanged; the error is logged, never propagated.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	translated, err := t.provider.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("translation failed, keeping original text",
				"source", sourceLang,
				"target", targetLang,
				"error", err.Error(),
			)
		}
		return text
	}
	if strings.TrimSpace(translated) == "" {
		return text
	}
	return translated
}

// TranslateSegment wraps one transcript segment, preserving index and timing.
func (t *Translator) TranslateSegment(ctx context.Context, segment transcribe.Segment, targetLang string) Segment {
	return Segment{
		Segment:        segment,
		TranslatedText: t.Translate(ctx, segment.Text, segment.SourceLanguage, targetLang),
		TargetLanguage: targetLang,
	}
}

// TranslateAll maps segments in their given order.
func (t *Translator) TranslateAll(ctx context.Context, segments []transcribe.Segment, targetLang string) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, segment := range segments {
		out = append(out, t.TranslateSegment(ctx, segment, targetLang))
	}
	return out
}

// Passthrough wraps segments without translating, for pipelines where no
// target language is configured.
func Passthrough(segments []transcribe.Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, segment := range segments {
		out = append(out, Segment{Segment: segment})
	}
	return out
}
