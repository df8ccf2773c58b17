package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.NotEmpty(t, loaded.Warnings)

	cfg := loaded.Config
	require.Equal(t, "default", cfg.Audio.Input)
	require.Equal(t, 3000, cfg.Transcription.WindowMS)
	require.Equal(t, 4, cfg.Transcription.MaxInFlight)
	require.Equal(t, "openai", cfg.Synthesis.Provider)
	require.Equal(t, "alloy", cfg.Synthesis.Voice)
	require.Equal(t, []string{"pw-play"}, cfg.Audio.PlayArgv)
}

func TestLoadParsesTOMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[audio]
input = "alsa_input.usb-mic"
play_command = "aplay -q"

[transcription]
endpoint = "http://stt.local/v1/audio/transcriptions"
language = "fr"
window_ms = 2000

[translation]
enable = true
endpoint = "http://mt.local/v1/translate"
target_language = "en"

[synthesis]
provider = "google"
language = "fr"
voice = "fr-FR-Neural2-B"
speed = 1.25
format = "wav"

[synthesis.endpoints]
google = "http://tts.local/v1/synthesize"

[archive]
enable = true
url = "nats://archive.local:4222"
bucket = "AUDIO"
`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)

	cfg := loaded.Config
	require.Equal(t, "alsa_input.usb-mic", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback) // default survives partial file
	require.Equal(t, []string{"aplay", "-q"}, cfg.Audio.PlayArgv)
	require.Equal(t, "fr", cfg.Transcription.Language)
	require.Equal(t, 2000, cfg.Transcription.WindowMS)
	require.True(t, cfg.Translation.Enable)
	require.Equal(t, "en", cfg.Translation.TargetLanguage)
	require.Equal(t, "fr-FR-Neural2-B", cfg.Synthesis.Voice)
	require.Equal(t, 1.25, cfg.Synthesis.Speed)
	require.Equal(t, "AUDIO", cfg.Archive.Bucket)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PARLO_TRANSCRIPTION_API_KEY", "stt-secret")
	t.Setenv("PARLO_OPENAI_API_KEY", "tts-secret")
	t.Setenv("PARLO_NATS_URL", "nats://override:4222")

	loaded, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	cfg := loaded.Config
	require.Equal(t, "stt-secret", cfg.Transcription.APIKey)
	require.Equal(t, "tts-secret", cfg.Synthesis.APIKeys["openai"])
	require.Equal(t, "nats://override:4222", cfg.Archive.URL)
}

func TestLoadDanglingVoiceIsRepairedWithWarning(t *testing.T) {
	path := writeConfig(t, `
[synthesis]
provider = "openai"
language = "ar"
voice = "fr-custom"
`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "alloy", loaded.Config.Synthesis.Voice)

	found := false
	for _, warning := range loaded.Warnings {
		if strings.Contains(warning.Message, "fr-custom") {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty input", func(c *Config) { c.Audio.Input = " " }},
		{"bad play command", func(c *Config) { c.Audio.PlayCommand = `pw-play "unterminated` }},
		{"empty play command", func(c *Config) { c.Audio.PlayCommand = "" }},
		{"empty endpoint", func(c *Config) { c.Transcription.Endpoint = "" }},
		{"zero window", func(c *Config) { c.Transcription.WindowMS = 0 }},
		{"zero in flight", func(c *Config) { c.Transcription.MaxInFlight = 0 }},
		{"translation without target", func(c *Config) {
			c.Translation.Enable = true
			c.Translation.TargetLanguage = ""
		}},
		{"speed out of range", func(c *Config) { c.Synthesis.Speed = 9 }},
		{"unknown format", func(c *Config) { c.Synthesis.Format = "flac" }},
		{"unknown provider", func(c *Config) { c.Synthesis.Provider = "acme" }},
		{"archive without url", func(c *Config) {
			c.Archive.Enable = true
			c.Archive.URL = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(&cfg)
			require.Error(t, err)
		})
	}
}

func TestValidateWarnsOnMissingProviderEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Synthesis.Provider = "google"
	cfg.Synthesis.Language = "fr"
	cfg.Synthesis.Voice = "fr-FR-Neural2-A"

	warnings, err := Validate(&cfg)
	require.NoError(t, err)

	found := false
	for _, warning := range warnings {
		if strings.Contains(warning.Message, "no entry for provider") {
			found = true
		}
	}
	require.True(t, found)
}

func TestResolvePath(t *testing.T) {
	explicit, err := ResolvePath("/tmp/custom.toml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.toml", explicit)

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, "/xdg/parlo/config.toml", path)
}

func TestSynthSettingsRoundtrip(t *testing.T) {
	cfg := Default()
	settings := cfg.SynthSettings()
	require.Equal(t, "alloy", settings.Voice)
	require.Equal(t, 1.0, settings.Speed)
}
