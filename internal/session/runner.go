package session

import (
	"context"
	"errors"

	"github.com/parlo-dev/parlo/internal/capture"
	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/pipeline"
)

var (
	// ErrPipelineUnavailable indicates runtime pipeline wiring is missing.
	ErrPipelineUnavailable = errors.New("capture and transcription pipeline not wired")
	// ErrEmptyTranscript indicates stop completed but no usable speech was recognized.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
)

// Runner abstracts the capture/transcription pipeline the controller drives.
// pipeline.Pipeline satisfies it; tests inject fakes.
type Runner interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Snapshot() capture.Snapshot
	State() fsm.State
	StopAndCollect(ctx context.Context) (pipeline.Result, error)
	Cancel() error
}

// PlaceholderRunner is a no-op placeholder used in tests/fallback wiring.
type PlaceholderRunner struct{}

func (PlaceholderRunner) Start(context.Context) error  { return nil }
func (PlaceholderRunner) Pause() error                 { return nil }
func (PlaceholderRunner) Resume() error                { return nil }
func (PlaceholderRunner) Snapshot() capture.Snapshot   { return capture.Snapshot{State: fsm.StateIdle} }
func (PlaceholderRunner) State() fsm.State             { return fsm.StateIdle }
func (PlaceholderRunner) Cancel() error                { return nil }
func (PlaceholderRunner) StopAndCollect(context.Context) (pipeline.Result, error) {
	return pipeline.Result{}, ErrPipelineUnavailable
}
