// Package indicator surfaces session state through desktop notifications
// and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parlo-dev/parlo/internal/config"
)

// DesktopNotify is the concrete notifier used by runtime sessions. It sends
// replaceable freedesktop notifications and plays synthesized cues.
type DesktopNotify struct {
	cfg      config.NotifyConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// New creates a desktop notifier from config.
func New(cfg config.NotifyConfig, logger *slog.Logger) *DesktopNotify {
	return &DesktopNotify{
		cfg:      cfg,
		logger:   logger,
		messages: notifyMessagesFromEnv(),
	}
}

// ShowRecording signals recording start and emits the start cue.
func (d *DesktopNotify) ShowRecording(ctx context.Context) {
	d.playCue(cueStart)
	d.show(ctx, d.messages.recording, 300000)
}

// ShowPaused signals that capture is gated.
func (d *DesktopNotify) ShowPaused(ctx context.Context) {
	d.show(ctx, d.messages.paused, 300000)
}

// ShowTranscribing signals the post-capture settling state.
func (d *DesktopNotify) ShowTranscribing(ctx context.Context) {
	d.show(ctx, d.messages.processing, 300000)
}

// ShowError displays an error-state notification.
func (d *DesktopNotify) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = d.messages.errorText
	}
	d.show(ctx, text, 1600)
}

// CueStop emits the stop cue.
func (d *DesktopNotify) CueStop(context.Context) {
	d.playCue(cueStop)
}

// CueComplete emits the successful-commit cue.
func (d *DesktopNotify) CueComplete(context.Context) {
	d.playCue(cueComplete)
}

// CueCancel emits the cancel cue.
func (d *DesktopNotify) CueCancel(context.Context) {
	d.playCue(cueCancel)
}

// Hide dismisses the active notification.
func (d *DesktopNotify) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, d.dismiss)
}

// show sends or replaces the session notification.
func (d *DesktopNotify) show(ctx context.Context, text string, timeoutMS int) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notify(ctx, text, timeoutMS)
	})
}

// notify sends a replaceable desktop notification and stores its ID.
func (d *DesktopNotify) notify(ctx context.Context, text string, timeoutMS int) error {
	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.AppName)
	if appName == "" {
		appName = "parlo"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

// dismiss closes the current notification ID when present.
func (d *DesktopNotify) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification operation with a bounded timeout.
func (d *DesktopNotify) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("notification dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *DesktopNotify) playCue(kind cueKind) {
	if !d.cfg.Enable {
		return
	}
	go func() {
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			d.log("audio cue failed", err)
		}
	}()
}

// log emits debug-only notifier failures to the runtime logger.
func (d *DesktopNotify) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
