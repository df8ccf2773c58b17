package synth

import "sort"

// ProviderName identifies one text-to-speech vendor binding.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderGoogle ProviderName = "google"
)

// openAI voices are language-agnostic; the same catalog applies per language
// so voice selection survives most language switches.
var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// catalogs is the immutable provider x language voice table, loaded once.
// The first entry per list is the reset target for dangling selections.
var catalogs = map[ProviderName]map[string][]string{
	ProviderOpenAI: {
		"en": openAIVoices,
		"fr": openAIVoices,
		"es": openAIVoices,
		"de": openAIVoices,
		"ar": openAIVoices,
		"ja": openAIVoices,
	},
	ProviderGoogle: {
		"en": {"en-US-Neural2-C", "en-US-Neural2-A", "en-US-Neural2-F"},
		"fr": {"fr-FR-Neural2-A", "fr-FR-Neural2-B"},
		"es": {"es-ES-Neural2-A", "es-ES-Neural2-B"},
		"de": {"de-DE-Neural2-B", "de-DE-Neural2-C"},
		"ar": {"ar-XA-Wavenet-A", "ar-XA-Wavenet-B"},
	},
}

// Providers lists known providers in stable order.
func Providers() []ProviderName {
	names := make([]ProviderName, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Languages lists a provider's catalog languages in stable order.
func Languages(provider ProviderName) []string {
	languages := make([]string, 0, len(catalogs[provider]))
	for language := range catalogs[provider] {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

// Voices returns the catalog entry for one provider/language pair, first
// entry first. The returned slice is a copy.
func Voices(provider ProviderName, language string) []string {
	voices := catalogs[provider][language]
	return append([]string(nil), voices...)
}

// hasVoice reports whether a voice is a valid choice for provider x language.
func hasVoice(provider ProviderName, language, voice string) bool {
	for _, candidate := range catalogs[provider][language] {
		if candidate == voice {
			return true
		}
	}
	return false
}
