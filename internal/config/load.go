package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, validates, and applies environment overrides
// to the runtime configuration. A missing file is not an error; defaults
// apply with a warning.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	loaded := Loaded{Path: resolvedPath, Exists: true}

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	} else if err := toml.Unmarshal(content, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	applyEnv(&cfg, resolvedPath)

	warnings, err := Validate(&cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)
	loaded.Config = cfg
	return loaded, nil
}

// applyEnv layers secrets and endpoint overrides from the environment on top
// of file values. A .env beside the config file or in the working directory
// is loaded first, without clobbering already-exported variables.
func applyEnv(cfg *Config, configPath string) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	_ = godotenv.Load() // .env in cwd

	if v := envValue("PARLO_TRANSCRIPTION_API_KEY"); v != "" {
		cfg.Transcription.APIKey = v
	}
	if v := envValue("PARLO_TRANSLATION_API_KEY"); v != "" {
		cfg.Translation.APIKey = v
	}
	if v := envValue("PARLO_NATS_URL"); v != "" {
		cfg.Archive.URL = v
	}

	if cfg.Synthesis.APIKeys == nil {
		cfg.Synthesis.APIKeys = map[string]string{}
	}
	if v := envValue("PARLO_OPENAI_API_KEY"); v != "" {
		cfg.Synthesis.APIKeys["openai"] = v
	}
	if v := envValue("PARLO_GOOGLE_API_KEY"); v != "" {
		cfg.Synthesis.APIKeys["google"] = v
	}
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
