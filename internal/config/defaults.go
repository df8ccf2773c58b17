package config

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	play := "pw-play"

	return Config{
		Audio: AudioConfig{
			Input:       "default",
			Fallback:    "default",
			PlayCommand: play,
			PlayArgv:    mustParseArgv(play),
		},
		Transcription: TranscriptionConfig{
			Endpoint:    "http://127.0.0.1:8085/v1/audio/transcriptions",
			Model:       "whisper-1",
			Language:    "en",
			WindowMS:    3000,
			MaxInFlight: 4,
		},
		Translation: TranslationConfig{
			Enable:   false,
			Endpoint: "http://127.0.0.1:8086/v1/translate",
		},
		Synthesis: SynthesisConfig{
			Provider: "openai",
			Voice:    "alloy",
			Language: "en",
			Speed:    1.0,
			Format:   "mp3",
			Endpoints: map[string]string{
				"openai": "https://api.openai.com/v1/audio/speech",
			},
			APIKeys: map[string]string{},
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       false,
			CapitalizeSentences: true,
		},
		History: HistoryConfig{Enable: true},
		Archive: ArchiveConfig{
			Enable: false,
			URL:    "nats://127.0.0.1:4222",
			Bucket: "PARLO_AUDIO",
		},
		Notify: NotifyConfig{Enable: true, AppName: "parlo"},
	}
}
