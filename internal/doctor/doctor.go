// Package doctor runs runtime readiness diagnostics for config, tools,
// audio, and provider endpoints.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/config"
	"github.com/parlo-dev/parlo/internal/store"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("%q not found; defaults in effect", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkCommand(cfg.Config.Audio.PlayArgv, "audio.play_command"))
	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkEndpoint("transcription.endpoint", cfg.Config.Transcription.Endpoint))

	if cfg.Config.Translation.Enable {
		checks = append(checks, checkEndpoint("translation.endpoint", cfg.Config.Translation.Endpoint))
	}

	provider := cfg.Config.Synthesis.Provider
	if endpoint := cfg.Config.Synthesis.Endpoints[provider]; strings.TrimSpace(endpoint) != "" {
		checks = append(checks, checkEndpoint("synthesis.endpoint", endpoint))
	} else {
		checks = append(checks, Check{
			Name:    "synthesis.endpoint",
			Pass:    false,
			Message: fmt.Sprintf("no endpoint configured for provider %q", provider),
		})
	}

	if cfg.Config.History.Enable {
		checks = append(checks, checkHistory(cfg.Config))
	}
	if cfg.Config.Archive.Enable {
		checks = append(checks, checkNATS(cfg.Config.Archive.URL))
	}

	return Report{Checks: checks}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", argv[0])}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEndpoint probes provider endpoint reachability. Any HTTP response
// counts as reachable; these APIs commonly reject GET with 4xx.
func checkEndpoint(name, endpoint string) Check {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Check{Name: name, Pass: false, Message: "endpoint is empty"}
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	resp.Body.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable (HTTP %d)", resp.StatusCode)}
}

// checkHistory verifies the history database opens at its resolved path.
func checkHistory(cfg config.Config) Check {
	path := strings.TrimSpace(cfg.History.Path)
	if path == "" {
		resolved, err := store.DefaultPath()
		if err != nil {
			return Check{Name: "history.path", Pass: false, Message: err.Error()}
		}
		path = resolved
	}

	s, err := store.Open(path)
	if err != nil {
		return Check{Name: "history.path", Pass: false, Message: err.Error()}
	}
	_ = s.Close()
	return Check{Name: "history.path", Pass: true, Message: fmt.Sprintf("writable at %s", filepath.Clean(path))}
}

// checkNATS dials the archive server and closes the connection.
func checkNATS(url string) Check {
	conn, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		return Check{Name: "archive.url", Pass: false, Message: fmt.Sprintf("connect failed: %v", err)}
	}
	conn.Close()
	return Check{Name: "archive.url", Pass: true, Message: fmt.Sprintf("connected to %s", url)}
}
