package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/capture"
	"github.com/parlo-dev/parlo/internal/config"
	"github.com/parlo-dev/parlo/internal/indicator"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/objectstore"
	"github.com/parlo-dev/parlo/internal/pipeline"
	"github.com/parlo-dev/parlo/internal/session"
	"github.com/parlo-dev/parlo/internal/store"
	"github.com/parlo-dev/parlo/internal/transcribe"
	"github.com/parlo-dev/parlo/internal/transcript"
	"github.com/parlo-dev/parlo/internal/translate"
)

// commandToggle either forwards a stop request to a running session or
// becomes the session owner: it acquires the control socket, runs the full
// capture/transcribe/translate pipeline, and commits the result.
func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, "stop")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			// Lost the race to another owner; treat the toggle as a stop.
			return r.forwardOrFail(ctx, "stop")
		}
		fmt.Fprintf(r.Stderr, "error: acquire socket: %v\n", err)
		return 1
	}
	defer func() { _ = listener.Close() }()

	pipe, err := buildPipeline(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	commit, closeCommit, err := newCommitter(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeCommit()

	notifier := indicator.New(cfg.Notify, logger)
	controller := session.NewController(logger, pipe, commit, notifier)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	go func() {
		if err := ipc.Serve(serveCtx, listener, controller); err != nil {
			logger.Warn("ipc serve stopped", "error", err.Error())
		}
	}()

	result := controller.Run(ctx)
	logSessionResult(logger, result)

	if result.Err != nil {
		if result.Cancelled || errors.Is(result.Err, context.Canceled) {
			fmt.Fprintln(r.Stdout, "cancelled")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}

	if result.Pipeline.DeviceLost {
		fmt.Fprintln(r.Stderr, "warning: input device lost, transcript covers captured audio only")
	}
	fmt.Fprintln(r.Stdout, result.Transcript)
	return 0
}

// buildPipeline assembles the capture/transcribe/translate chain from config.
func buildPipeline(cfg config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	captureSession := capture.NewSession(
		capture.DeviceAcquirer(cfg.Audio.Input, cfg.Audio.Fallback),
		logger,
	)

	transcriber, err := transcribe.NewHTTPProvider(
		cfg.Transcription.Endpoint,
		cfg.Transcription.APIKey,
		cfg.Transcription.Model,
	)
	if err != nil {
		return nil, fmt.Errorf("transcription provider: %w", err)
	}
	streamer := transcribe.NewStreamer(transcriber, transcribe.Config{
		Window:      time.Duration(cfg.Transcription.WindowMS) * time.Millisecond,
		MaxInFlight: cfg.Transcription.MaxInFlight,
		Language:    cfg.Transcription.Language,
	}, logger)

	translator, targetLang, err := buildTranslator(cfg, logger)
	if err != nil {
		return nil, err
	}

	assembly := transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
	}

	return pipeline.New(captureSession, streamer, translator, targetLang, assembly, logger), nil
}

// buildTranslator returns a nil translator when translation is disabled.
func buildTranslator(cfg config.Config, logger *slog.Logger) (*translate.Translator, string, error) {
	if !cfg.Translation.Enable {
		return nil, "", nil
	}
	provider, err := translate.NewHTTPProvider(cfg.Translation.Endpoint, cfg.Translation.APIKey)
	if err != nil {
		return nil, "", fmt.Errorf("translation provider: %w", err)
	}
	return translate.New(provider, logger), cfg.Translation.TargetLanguage, nil
}

// newCommitter persists finished sessions to history and, when enabled,
// archives the captured audio. The returned closer releases store handles.
func newCommitter(cfg config.Config, logger *slog.Logger) (session.Committer, func(), error) {
	var history *store.Store
	if cfg.History.Enable {
		path := cfg.History.Path
		if path == "" {
			defaultPath, err := store.DefaultPath()
			if err != nil {
				return nil, nil, fmt.Errorf("history path: %w", err)
			}
			path = defaultPath
		}
		opened, err := store.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		history = opened
	}

	var blobs *objectstore.BlobStore
	var natsClose func()
	if cfg.Archive.Enable {
		conn, js, err := objectstore.Connect(cfg.Archive.URL, "parlo")
		if err != nil {
			if history != nil {
				_ = history.Close()
			}
			return nil, nil, fmt.Errorf("connect archive: %w", err)
		}
		natsClose = conn.Close
		blobs, err = objectstore.New(js, cfg.Archive.Bucket)
		if err != nil {
			conn.Close()
			if history != nil {
				_ = history.Close()
			}
			return nil, nil, fmt.Errorf("open archive bucket: %w", err)
		}
	}

	closer := func() {
		if natsClose != nil {
			natsClose()
		}
		if history != nil {
			_ = history.Close()
		}
	}

	commit := session.CommitFunc(func(ctx context.Context, result pipeline.Result) error {
		rec := result.Recording
		if history != nil {
			entry := store.Entry{
				ID:             rec.ID,
				Transcript:     result.Transcript,
				MIMEType:       rec.MIMEType,
				DurationMS:     rec.Duration.Milliseconds(),
				SizeBytes:      rec.Size,
				SourceLanguage: cfg.Transcription.Language,
				TargetLanguage: cfg.Translation.TargetLanguage,
				DeviceLost:     result.DeviceLost,
				CreatedAt:      rec.CreatedAt,
				Segments:       result.Segments,
			}
			if err := history.Save(ctx, entry); err != nil {
				return fmt.Errorf("save history: %w", err)
			}
		}
		if blobs != nil {
			blob, err := audio.Encode(rec.MIMEType, rec.Data, audio.SampleRate, audio.Channels)
			if err != nil {
				return fmt.Errorf("encode recording: %w", err)
			}
			if err := blobs.Upload(ctx, rec.ID, blob, rec.MIMEType); err != nil {
				return fmt.Errorf("archive recording: %w", err)
			}
		}
		logger.Info("session committed",
			"recording", rec.ID,
			"duration_ms", rec.Duration.Milliseconds(),
			"segments", len(result.Segments),
		)
		return nil
	})

	return commit, closer, nil
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	attrs := []any{
		"state", string(result.State),
		"cancelled", result.Cancelled,
		"elapsed_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcript_chars", len(result.Transcript),
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err.Error())
		logger.Error("session finished", attrs...)
		return
	}
	if result.Pipeline.DeviceLost {
		attrs = append(attrs, "device_lost", true)
	}
	if preview := transcriptPreview(result.Transcript); preview != "" {
		attrs = append(attrs, "preview", preview)
	}
	logger.Info("session finished", attrs...)
}

func transcriptPreview(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= 48 {
		return trimmed
	}
	return trimmed[:48] + "…"
}
