package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/config"
	"github.com/parlo-dev/parlo/internal/objectstore"
	"github.com/parlo-dev/parlo/internal/store"
	"github.com/parlo-dev/parlo/internal/synth"
	"github.com/parlo-dev/parlo/internal/transcribe"
	"github.com/parlo-dev/parlo/internal/transcript"
	"github.com/parlo-dev/parlo/internal/translate"
)

// commandTranscribe runs the batch pipeline over one audio file and prints
// the assembled transcript.
func (r Runner) commandTranscribe(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) int {
	segments, err := transcribeFile(ctx, cfg, path, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	text := transcript.Assemble(segments, transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
	})
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(r.Stderr, "error: no speech recognized")
		return 1
	}
	fmt.Fprintln(r.Stdout, text)
	return 0
}

// commandVoiceover transcribes, translates, and synthesizes one audio file,
// writing the voiceover next to the input.
func (r Runner) commandVoiceover(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) int {
	segments, err := transcribeFile(ctx, cfg, path, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	synthesizer, err := buildSynthesizer(cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	asset, err := synthesizer.SynthesizeVoiceover(ctx, segments, cfg.SynthSettings())
	if err != nil {
		if errors.Is(err, synth.ErrNoContent) {
			fmt.Fprintln(r.Stderr, "error: no speech recognized")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	outPath := voiceoverPath(path, asset.Format)
	if err := os.WriteFile(outPath, asset.Data, 0o644); err != nil {
		fmt.Fprintf(r.Stderr, "error: write voiceover: %v\n", err)
		return 1
	}

	logger.Info("voiceover written",
		"input", path,
		"output", outPath,
		"segments", asset.SegmentCount,
		"bytes", len(asset.Data),
	)
	fmt.Fprintln(r.Stdout, outPath)
	return 0
}

// commandSay synthesizes one line of text and plays it through the
// configured playback command.
func (r Runner) commandSay(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	player, err := audio.NewPlayer(cfg.Audio.PlayArgv)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	synthesizer, err := buildSynthesizer(cfg, player, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if err := synthesizer.PlayImmediate(ctx, text, cfg.SynthSettings()); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, id string) int {
	history, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = history.Close() }()

	if id == "" {
		entries, err := history.List(ctx, 20)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(r.Stdout, "history is empty")
			return 0
		}
		for _, entry := range entries {
			fmt.Fprintf(r.Stdout, "%s  %s  %6.1fs  %s\n",
				entry.ID,
				entry.CreatedAt.Local().Format(time.DateTime),
				float64(entry.DurationMS)/1000.0,
				transcriptPreview(entry.Transcript),
			)
		}
		return 0
	}

	entry, err := history.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: no history entry %q\n", id)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "id: %s\n", entry.ID)
	fmt.Fprintf(r.Stdout, "created: %s\n", entry.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(r.Stdout, "duration: %.1fs\n", float64(entry.DurationMS)/1000.0)
	fmt.Fprintf(r.Stdout, "size: %d bytes (%s)\n", entry.SizeBytes, entry.MIMEType)
	if entry.TargetLanguage != "" {
		fmt.Fprintf(r.Stdout, "language: %s -> %s\n", entry.SourceLanguage, entry.TargetLanguage)
	} else {
		fmt.Fprintf(r.Stdout, "language: %s\n", entry.SourceLanguage)
	}
	if entry.DeviceLost {
		fmt.Fprintln(r.Stdout, "device lost: partial capture")
	}
	fmt.Fprintf(r.Stdout, "\n%s\n", entry.Transcript)
	return 0
}

// commandForget deletes one history entry and its archived audio blob.
func (r Runner) commandForget(ctx context.Context, cfg config.Config, id string, logger *slog.Logger) int {
	history, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = history.Close() }()

	if err := history.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: no history entry %q\n", id)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if cfg.Archive.Enable {
		if err := deleteArchived(ctx, cfg, id); err != nil {
			// History row is already gone; an orphaned blob is worth a
			// warning, not a failed deletion.
			fmt.Fprintf(r.Stderr, "warning: delete archived audio: %v\n", err)
			logger.Warn("delete archived audio failed", "id", id, "error", err.Error())
		}
	}

	fmt.Fprintf(r.Stdout, "forgot %s\n", id)
	return 0
}

// transcribeFile loads PCM from a WAV file and runs batch transcription plus
// optional translation.
func transcribeFile(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) ([]translate.Segment, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	pcm, err := audio.WAVData(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w (16-bit mono WAV expected)", path, err)
	}

	provider, err := transcribe.NewHTTPProvider(
		cfg.Transcription.Endpoint,
		cfg.Transcription.APIKey,
		cfg.Transcription.Model,
	)
	if err != nil {
		return nil, fmt.Errorf("transcription provider: %w", err)
	}
	batcher := transcribe.NewBatcher(provider, transcribe.Config{
		Window:      time.Duration(cfg.Transcription.WindowMS) * time.Millisecond,
		MaxInFlight: cfg.Transcription.MaxInFlight,
		Language:    cfg.Transcription.Language,
	}, logger)

	raw, err := batcher.TranscribeRecording(ctx, pcm)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	translator, targetLang, err := buildTranslator(cfg, logger)
	if err != nil {
		return nil, err
	}
	if translator == nil {
		return translate.Passthrough(raw), nil
	}
	return translator.TranslateAll(ctx, raw, targetLang), nil
}

// buildSynthesizer binds every provider with a configured endpoint. Secrets
// come from the environment, never the config file.
func buildSynthesizer(cfg config.Config, player synth.Player, logger *slog.Logger) (*synth.Synthesizer, error) {
	clients := make(map[synth.ProviderName]synth.Client)
	for name, endpoint := range cfg.Synthesis.Endpoints {
		if strings.TrimSpace(endpoint) == "" {
			continue
		}
		provider := synth.ProviderName(name)
		client, err := synth.NewHTTPClient(provider, endpoint, cfg.Synthesis.APIKeys[name])
		if err != nil {
			return nil, fmt.Errorf("synthesis client %s: %w", name, err)
		}
		clients[provider] = client
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no synthesis endpoint configured for provider %q", cfg.Synthesis.Provider)
	}
	return synth.New(clients, player, logger), nil
}

func openHistory(cfg config.Config) (*store.Store, error) {
	path := cfg.History.Path
	if path == "" {
		defaultPath, err := store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("history path: %w", err)
		}
		path = defaultPath
	}
	history, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return history, nil
}

func deleteArchived(ctx context.Context, cfg config.Config, id string) error {
	conn, js, err := objectstore.Connect(cfg.Archive.URL, "parlo")
	if err != nil {
		return err
	}
	defer conn.Close()

	blobs, err := objectstore.New(js, cfg.Archive.Bucket)
	if err != nil {
		return err
	}
	if err := blobs.Delete(ctx, id); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
		return err
	}
	return nil
}

func voiceoverPath(input string, format synth.Format) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ".voiceover." + string(format)
}
