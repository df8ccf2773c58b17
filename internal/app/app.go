// Package app wires configuration, logging, and command dispatch for the
// parlo binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/cli"
	"github.com/parlo-dev/parlo/internal/config"
	"github.com/parlo-dev/parlo/internal/doctor"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/logging"
	"github.com/parlo-dev/parlo/internal/synth"
	"github.com/parlo-dev/parlo/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("parlo"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("parlo"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	cfg := cfgLoaded.Config
	if err := applyOverrides(&cfg, parsed); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandVoices:
		return r.commandVoices(cfg)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandPause:
		return r.forwardOrFail(ctx, "pause")
	case cli.CommandResume:
		return r.forwardOrFail(ctx, "resume")
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, "cancel")
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfg, logger)
	case cli.CommandTranscribe:
		return r.commandTranscribe(ctx, cfg, parsed.Arg, logger)
	case cli.CommandVoiceover:
		return r.commandVoiceover(ctx, cfg, parsed.Arg, logger)
	case cli.CommandSay:
		return r.commandSay(ctx, cfg, parsed.Arg, logger)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfg, parsed.Arg)
	case cli.CommandForget:
		return r.commandForget(ctx, cfg, parsed.Arg, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// applyOverrides layers per-invocation CLI flags over the loaded config.
func applyOverrides(cfg *config.Config, parsed cli.Parsed) error {
	if parsed.TargetLang != "" {
		cfg.Translation.Enable = true
		cfg.Translation.TargetLanguage = parsed.TargetLang
		if strings.TrimSpace(cfg.Translation.Endpoint) == "" {
			return errors.New("--target requires translation.endpoint in config")
		}
	}
	if parsed.Voice != "" {
		cfg.Synthesis.Voice = parsed.Voice
		if err := synth.Validate(cfg.SynthSettings()); err != nil {
			return fmt.Errorf("--voice: %w", err)
		}
	}
	return nil
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandVoices(cfg config.Config) int {
	provider := synth.ProviderName(cfg.Synthesis.Provider)
	languages := synth.Languages(provider)
	if len(languages) == 0 {
		fmt.Fprintf(r.Stderr, "error: no voices known for provider %q\n", provider)
		return 1
	}

	fmt.Fprintf(r.Stdout, "provider: %s\n", provider)
	for _, language := range languages {
		entries := make([]string, 0)
		for _, voice := range synth.Voices(provider, language) {
			if voice == cfg.Synthesis.Voice && language == cfg.Synthesis.Language {
				voice = voice + "*"
			}
			entries = append(entries, voice)
		}
		fmt.Fprintf(r.Stdout, "  %s: %s\n", language, strings.Join(entries, " "))
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		if resp.DurationMS > 0 || resp.SizeBytes > 0 {
			fmt.Fprintf(r.Stdout, "%s (%.1fs, %d bytes)\n",
				resp.State, float64(resp.DurationMS)/1000.0, resp.SizeBytes)
		} else {
			fmt.Fprintln(r.Stdout, resp.State)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active parlo session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
