// Package config resolves, parses, validates, and defaults parlo
// configuration from TOML plus environment overrides.
package config

// Config is the fully materialized runtime configuration used by parlo.
type Config struct {
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Translation   TranslationConfig   `toml:"translation"`
	Synthesis     SynthesisConfig     `toml:"synthesis"`
	Transcript    TranscriptConfig    `toml:"transcript"`
	History       HistoryConfig       `toml:"history"`
	Archive       ArchiveConfig       `toml:"archive"`
	Notify        NotifyConfig        `toml:"notify"`
}

// AudioConfig controls input-source selection and local playback.
type AudioConfig struct {
	Input       string `toml:"input"`
	Fallback    string `toml:"fallback"`
	PlayCommand string `toml:"play_command"`

	// PlayArgv is the parsed form of PlayCommand, filled during Validate.
	PlayArgv []string `toml:"-"`
}

// TranscriptionConfig controls the speech-to-text provider binding and
// windowing behavior.
type TranscriptionConfig struct {
	Endpoint    string `toml:"endpoint"`
	APIKey      string `toml:"api_key"`
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	WindowMS    int    `toml:"window_ms"`
	MaxInFlight int    `toml:"max_in_flight"`
}

// TranslationConfig controls the optional translation stage.
type TranslationConfig struct {
	Enable         bool   `toml:"enable"`
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TargetLanguage string `toml:"target_language"`
}

// SynthesisConfig controls text-to-speech provider selection and output.
type SynthesisConfig struct {
	Provider  string            `toml:"provider"`
	Voice     string            `toml:"voice"`
	Language  string            `toml:"language"`
	Speed     float64           `toml:"speed"`
	Format    string            `toml:"format"`
	Endpoints map[string]string `toml:"endpoints"`

	// APIKeys maps provider name to its key; filled from environment only,
	// never from the config file.
	APIKeys map[string]string `toml:"-"`
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace       bool `toml:"trailing_space"`
	CapitalizeSentences bool `toml:"capitalize_sentences"`
}

// HistoryConfig controls the local SQLite session history.
type HistoryConfig struct {
	Enable bool   `toml:"enable"`
	Path   string `toml:"path"`
}

// ArchiveConfig controls the NATS object store audio archive.
type ArchiveConfig struct {
	Enable bool   `toml:"enable"`
	URL    string `toml:"url"`
	Bucket string `toml:"bucket"`
}

// NotifyConfig controls desktop notification behavior.
type NotifyConfig struct {
	Enable  bool   `toml:"enable"`
	AppName string `toml:"app_name"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
