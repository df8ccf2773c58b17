// Package pipeline owns one end-to-end capture -> transcription ->
// translation -> transcript run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlo-dev/parlo/internal/capture"
	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/transcribe"
	"github.com/parlo-dev/parlo/internal/transcript"
	"github.com/parlo-dev/parlo/internal/translate"
)

// ErrPipelineUnavailable means a lifecycle call arrived before Start or after
// the run already settled.
var ErrPipelineUnavailable = errors.New("pipeline not running")

// Result is the materialized outcome of one finished run. Segments carry the
// translation when a target language was configured; Transcript is the
// assembled effective text.
type Result struct {
	Recording  capture.Recording
	Segments   []translate.Segment
	Transcript string
	DeviceLost bool
}

// Pipeline wires a capture session's live chunk tap into the streaming
// transcriber and settles segments as they arrive. One instance serves one
// run; create a new Pipeline per recording.
type Pipeline struct {
	session    *capture.Session
	streamer   *transcribe.Streamer
	translator *translate.Translator
	targetLang string
	assembly   transcript.Options
	logger     *slog.Logger

	mu        sync.Mutex
	started   bool
	settled   bool
	cancel    context.CancelFunc
	done      chan struct{}
	segments  []transcribe.Segment
	onSegment func(transcribe.Segment)
}

// New constructs a pipeline over an idle capture session. The translator may
// be nil when no target language is configured.
func New(session *capture.Session, streamer *transcribe.Streamer, translator *translate.Translator, targetLang string, assembly transcript.Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		session:    session,
		streamer:   streamer,
		translator: translator,
		targetLang: targetLang,
		assembly:   assembly,
		logger:     logger,
	}
}

// OnSegment registers a callback invoked as each transcribed segment settles,
// in index order. Register before Start; later registrations are ignored.
func (p *Pipeline) OnSegment(fn func(transcribe.Segment)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.onSegment = fn
	}
}

// Start begins capture and attaches the transcriber to the live tap.
// Transcription runs on a pipeline-owned context so Cancel can abort
// in-flight windows without tying the run to the caller's deadline.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already started")
	}
	p.started = true
	p.mu.Unlock()

	if err := p.session.Start(ctx); err != nil {
		p.mu.Lock()
		p.settled = true
		p.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	notify := p.onSegment
	p.mu.Unlock()

	segments := p.streamer.Run(runCtx, p.session.Tap())
	go func() {
		defer close(done)
		for segment := range segments {
			p.mu.Lock()
			p.segments = append(p.segments, segment)
			p.mu.Unlock()
			if notify != nil {
				notify(segment)
			}
		}
	}()
	return nil
}

// Pause gates capture; transcription of already buffered windows continues.
func (p *Pipeline) Pause() error {
	if !p.running() {
		return ErrPipelineUnavailable
	}
	return p.session.Pause()
}

// Resume reopens the capture gate.
func (p *Pipeline) Resume() error {
	if !p.running() {
		return ErrPipelineUnavailable
	}
	return p.session.Resume()
}

// Snapshot reports live capture state for status queries.
func (p *Pipeline) Snapshot() capture.Snapshot {
	return p.session.Snapshot()
}

// State returns the capture lifecycle state.
func (p *Pipeline) State() fsm.State {
	return p.session.State()
}

// StopAndCollect stops capture, waits for every dispatched window to settle,
// then translates and assembles the transcript. A device lost mid-recording
// is not fatal here: buffered audio and its segments are still returned, with
// Result.DeviceLost set.
func (p *Pipeline) StopAndCollect(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if !p.started || p.settled {
		p.mu.Unlock()
		return Result{}, ErrPipelineUnavailable
	}
	p.settled = true
	done := p.done
	cancel := p.cancel
	p.mu.Unlock()

	recording, stopErr := p.session.Stop()
	deviceLost := errors.Is(stopErr, capture.ErrDeviceLost)
	if stopErr != nil && !deviceLost {
		cancel()
		return Result{}, stopErr
	}

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
		return Result{}, fmt.Errorf("collect segments: %w", ctx.Err())
	}
	cancel()

	p.mu.Lock()
	raw := p.segments
	p.mu.Unlock()

	var segments []translate.Segment
	if p.translator != nil && p.targetLang != "" {
		segments = p.translator.TranslateAll(ctx, raw, p.targetLang)
	} else {
		segments = translate.Passthrough(raw)
	}

	result := Result{
		Recording:  recording,
		Segments:   segments,
		Transcript: transcript.Assemble(segments, p.assembly),
		DeviceLost: deviceLost,
	}
	if p.logger != nil {
		p.logger.Info("pipeline settled",
			"recording_id", recording.ID,
			"segments", len(segments),
			"duration_ms", recording.Duration.Milliseconds(),
			"device_lost", deviceLost,
		)
	}
	return result, nil
}

// Cancel stops capture and aborts in-flight transcription without producing
// a result. Safe to call at any point after Start.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	if !p.started || p.settled {
		p.mu.Unlock()
		return ErrPipelineUnavailable
	}
	p.settled = true
	done := p.done
	cancel := p.cancel
	p.mu.Unlock()

	_, err := p.session.Stop()
	if err != nil && !errors.Is(err, capture.ErrDeviceLost) {
		if cancel != nil {
			cancel()
		}
		return err
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (p *Pipeline) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.settled
}
