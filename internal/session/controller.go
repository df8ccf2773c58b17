// Package session coordinates recording lifecycle commands, side effects,
// and the commit flow for one owner process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/pipeline"
)

type action int

const (
	actionStop action = iota + 1
	actionPause
	actionResume
	actionCancel
)

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State      fsm.State
	Transcript string
	Pipeline   pipeline.Result
	Cancelled  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Notifier is the session-facing subset of user feedback behavior.
type Notifier interface {
	ShowRecording(context.Context)
	ShowPaused(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// noopNotifier preserves session flow when no notifier is wired.
type noopNotifier struct{}

func (noopNotifier) ShowRecording(context.Context)     {}
func (noopNotifier) ShowPaused(context.Context)        {}
func (noopNotifier) ShowTranscribing(context.Context)  {}
func (noopNotifier) ShowError(context.Context, string) {}
func (noopNotifier) CueStop(context.Context)           {}
func (noopNotifier) CueComplete(context.Context)       {}
func (noopNotifier) CueCancel(context.Context)         {}
func (noopNotifier) Hide(context.Context)              {}

// Controller orchestrates one recording session and serves IPC commands
// against it. Lifecycle state lives in the pipeline's capture session; the
// controller only routes commands and side effects.
type Controller struct {
	logger   *slog.Logger
	runner   Runner
	commit   Committer
	notifier Notifier

	actions chan action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, runner Runner, committer Committer, notifier Notifier) *Controller {
	if runner == nil {
		runner = PlaceholderRunner{}
	}
	if committer == nil {
		committer = CommitFunc(func(context.Context, pipeline.Result) error { return nil })
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Controller{
		logger:   logger,
		runner:   runner,
		commit:   committer,
		notifier: notifier,
		actions:  make(chan action, 1),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	return c.runner.State()
}

// Run executes one owner lifecycle from start to stop/cancel/failure
// completion. Pause and resume commands loop back into the wait; stop and
// cancel settle the run.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	if err := c.runner.Start(ctx); err != nil {
		c.notifier.ShowError(ctx, "Unable to start recording")
		return c.finish(result, err)
	}

	c.notifier.ShowRecording(ctx)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.notifier.Hide(cleanupCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.runner.Cancel()
			c.notifier.CueCancel(context.Background())
			return c.finish(result, ctx.Err())

		case a := <-c.actions:
			switch a {
			case actionPause:
				if err := c.runner.Pause(); err != nil {
					c.logWarn("pause rejected", err)
					continue
				}
				c.notifier.ShowPaused(ctx)

			case actionResume:
				if err := c.runner.Resume(); err != nil {
					c.logWarn("resume rejected", err)
					continue
				}
				c.notifier.ShowRecording(ctx)

			case actionCancel:
				_ = c.runner.Cancel()
				c.notifier.CueCancel(context.Background())
				result.Cancelled = true
				return c.finish(result, nil)

			case actionStop:
				return c.stop(ctx, result)

			default:
				return c.finish(result, fmt.Errorf("unknown action %d", a))
			}
		}
	}
}

// stop settles the pipeline and commits its result.
func (c *Controller) stop(ctx context.Context, result Result) Result {
	c.notifier.ShowTranscribing(ctx)

	settled, err := c.runner.StopAndCollect(ctx)
	c.notifier.CueStop(context.Background())
	result.Pipeline = settled
	if err != nil {
		c.notifier.ShowError(context.Background(), "Transcription failed")
		return c.finish(result, err)
	}

	result.Transcript = settled.Transcript
	if strings.TrimSpace(settled.Transcript) == "" {
		c.notifier.ShowError(context.Background(), "No speech detected")
		return c.finish(result, ErrEmptyTranscript)
	}

	if err := c.commit.Commit(ctx, settled); err != nil {
		c.notifier.ShowError(context.Background(), "Saving transcript failed")
		return c.finish(result, err)
	}

	c.notifier.CueComplete(context.Background())
	return c.finish(result, nil)
}

// finish stamps terminal fields on the result.
func (c *Controller) finish(result Result, err error) Result {
	result.State = c.runner.State()
	result.Err = err
	result.FinishedAt = time.Now()
	return result
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		snapshot := c.runner.Snapshot()
		return ipc.Response{
			OK:         true,
			State:      string(snapshot.State),
			DurationMS: snapshot.DurationMS,
			SizeBytes:  snapshot.SizeBytes,
			Message:    "status",
		}
	case "toggle", "stop":
		return c.request(actionStop, "stop", fsm.StateRecording, fsm.StatePaused)
	case "pause":
		return c.request(actionPause, "pause", fsm.StateRecording)
	case "resume":
		return c.request(actionResume, "resume", fsm.StatePaused)
	case "cancel":
		return c.request(actionCancel, "cancel", fsm.StateRecording, fsm.StatePaused)
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// request enqueues an action when the current state permits it.
func (c *Controller) request(a action, name string, allowed ...fsm.State) ipc.Response {
	state := c.State()
	permitted := false
	for _, candidate := range allowed {
		if state == candidate {
			permitted = true
			break
		}
	}
	if !permitted {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", name, state)}
	}

	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: name + " requested"}
	default:
		// The buffered action may differ from this one; dropping it silently
		// with OK would let a stop commit past a racing cancel.
		return ipc.Response{OK: false, State: string(state), Error: "another action already pending"}
	}
}

func (c *Controller) logWarn(message string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(message, "error", err.Error())
}
