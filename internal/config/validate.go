package config

import (
	"fmt"
	"strings"

	"github.com/parlo-dev/parlo/internal/synth"
)

// Validate enforces config invariants, fills derived fields, and returns
// non-fatal warnings.
func Validate(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	if strings.TrimSpace(cfg.Audio.Fallback) == "" {
		return nil, fmt.Errorf("audio.fallback must not be empty")
	}

	argv, err := parseArgv(cfg.Audio.PlayCommand)
	if err != nil {
		return nil, fmt.Errorf("audio.play_command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("audio.play_command must not be empty")
	}
	cfg.Audio.PlayArgv = argv

	if strings.TrimSpace(cfg.Transcription.Endpoint) == "" {
		return nil, fmt.Errorf("transcription.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Transcription.Language) == "" {
		return nil, fmt.Errorf("transcription.language must not be empty")
	}
	if cfg.Transcription.WindowMS <= 0 {
		return nil, fmt.Errorf("transcription.window_ms must be > 0")
	}
	if cfg.Transcription.MaxInFlight < 1 {
		return nil, fmt.Errorf("transcription.max_in_flight must be >= 1")
	}

	if cfg.Translation.Enable {
		if strings.TrimSpace(cfg.Translation.Endpoint) == "" {
			return nil, fmt.Errorf("translation.endpoint must not be empty when translation.enable=true")
		}
		if strings.TrimSpace(cfg.Translation.TargetLanguage) == "" {
			return nil, fmt.Errorf("translation.target_language must not be empty when translation.enable=true")
		}
	}

	settings, warning, err := synthSettings(cfg.Synthesis)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		warnings = append(warnings, Warning{Message: warning})
	}
	cfg.Synthesis.Voice = settings.Voice

	if strings.TrimSpace(cfg.Synthesis.Endpoints[cfg.Synthesis.Provider]) == "" {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("synthesis.endpoints has no entry for provider %q; synthesis commands will fail", cfg.Synthesis.Provider),
		})
	}

	if cfg.Archive.Enable {
		if strings.TrimSpace(cfg.Archive.URL) == "" {
			return nil, fmt.Errorf("archive.url must not be empty when archive.enable=true")
		}
		if strings.TrimSpace(cfg.Archive.Bucket) == "" {
			return nil, fmt.Errorf("archive.bucket must not be empty when archive.enable=true")
		}
	}

	if cfg.Notify.Enable && strings.TrimSpace(cfg.Notify.AppName) == "" {
		return nil, fmt.Errorf("notify.app_name must not be empty when notify.enable=true")
	}

	return warnings, nil
}

// synthSettings validates the synthesis block and repairs a dangling voice
// selection against the provider catalog.
func synthSettings(sc SynthesisConfig) (synth.Settings, string, error) {
	settings := synth.Settings{
		Provider: synth.ProviderName(sc.Provider),
		Voice:    sc.Voice,
		Language: sc.Language,
		Speed:    sc.Speed,
		Format:   synth.Format(sc.Format),
	}

	normalized, reset := synth.Normalize(settings)
	warning := ""
	if reset {
		warning = fmt.Sprintf("synthesis.voice %q not available for %s/%s; using %q",
			settings.Voice, sc.Provider, sc.Language, normalized.Voice)
	}

	if err := synth.Validate(normalized); err != nil {
		return synth.Settings{}, "", fmt.Errorf("synthesis: %w", err)
	}
	return normalized, warning, nil
}

// SynthSettings materializes the validated synthesis settings for dispatch.
func (c Config) SynthSettings() synth.Settings {
	return synth.Settings{
		Provider: synth.ProviderName(c.Synthesis.Provider),
		Voice:    c.Synthesis.Voice,
		Language: c.Synthesis.Language,
		Speed:    c.Synthesis.Speed,
		Format:   synth.Format(c.Synthesis.Format),
	}
}
