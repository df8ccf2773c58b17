// Package capture owns one recording lifecycle: device acquisition, the
// record/pause/resume/stop state machine, and chunk accumulation.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/fsm"
)

var (
	// ErrDeviceUnavailable means device acquisition failed; fatal to Start.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrInvalidState means a lifecycle call arrived out of order.
	ErrInvalidState = errors.New("invalid session state")
	// ErrDeviceLost means the device vanished mid-recording; buffered chunks
	// up to the loss are still returned.
	ErrDeviceLost = errors.New("audio device lost during recording")
)

// Source is the live device stream the session drains. audio.Capture
// satisfies it; tests inject fakes.
type Source interface {
	Chunks() <-chan []byte
	SetPaused(bool)
	Stop() error
	BytesCaptured() int64
}

// Acquirer opens a device source. The returned string describes the device.
type Acquirer func(ctx context.Context) (Source, string, error)

// DeviceAcquirer resolves input/fallback preferences and opens a Pulse capture.
func DeviceAcquirer(input, fallback string) Acquirer {
	return func(ctx context.Context) (Source, string, error) {
		selection, err := audio.SelectDevice(ctx, input, fallback)
		if err != nil {
			return nil, "", err
		}
		cap, err := audio.StartCapture(ctx, selection.Device)
		if err != nil {
			return nil, "", err
		}
		return cap, selection.Device.ID, nil
	}
}

// Recording is the immutable materialization of a finished session.
type Recording struct {
	ID        string
	Data      []byte
	MIMEType  string
	Duration  time.Duration
	Size      int64
	CreatedAt time.Time
}

// Snapshot is a side-effect-free state view, safe to poll at any rate.
type Snapshot struct {
	State      fsm.State
	DurationMS int64
	SizeBytes  int64
}

// Session drives one capture lifecycle. Exactly one session may own a device
// handle at a time; callers enforce that precondition.
type Session struct {
	acquire Acquirer
	logger  *slog.Logger
	now     func() time.Time

	mu                sync.Mutex
	state             fsm.State
	source            Source
	device            string
	startedAt         time.Time
	pausedAt          time.Time
	accumulatedPaused time.Duration
	chunks            [][]byte
	totalBytes        int64
	mimeType          string
	deviceLost        bool
	starting          bool
	final             *Recording

	onState func(fsm.State)
	tap     chan []byte
	drained chan struct{}
}

// NewSession constructs an idle session around a device acquirer.
func NewSession(acquire Acquirer, logger *slog.Logger) *Session {
	return &Session{
		acquire: acquire,
		logger:  logger,
		now:     time.Now,
		state:   fsm.StateIdle,
	}
}

// OnStateChange registers a callback invoked after every state transition.
// Must be called before Start.
func (s *Session) OnStateChange(fn func(fsm.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MIMEType returns the container negotiated at Start, empty before then.
func (s *Session) MIMEType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mimeType
}

// Tap returns the live chunk stream for downstream consumers. The channel is
// created at Start and closed once the source drains.
func (s *Session) Tap() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tap
}

// Start acquires the device, negotiates the container once, and transitions
// Idle -> Recording. Device acquisition failure is fatal to the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	next, err := fsm.Transition(s.state, fsm.EventStart)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if s.starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: start already in progress", ErrInvalidState)
	}
	// Holds the Idle check across the unlocked acquire so a concurrent Start
	// cannot double-acquire the device.
	s.starting = true
	s.mu.Unlock()

	source, device, err := s.acquire(ctx)
	if err != nil {
		s.mu.Lock()
		s.starting = false
		s.state, _ = fsm.Transition(s.state, fsm.EventFail)
		notify := s.onState
		state := s.state
		s.mu.Unlock()
		if notify != nil {
			notify(state)
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.mu.Lock()
	s.starting = false
	s.source = source
	s.device = device
	s.state = next
	s.startedAt = s.now()
	s.accumulatedPaused = 0
	s.mimeType = audio.NegotiateMIME([]string{audio.MIMEOggOpus, audio.MIMEWav})
	s.tap = make(chan []byte, 128)
	s.drained = make(chan struct{})
	notify := s.onState
	s.mu.Unlock()

	go s.drain()

	if notify != nil {
		notify(next)
	}
	if s.logger != nil {
		s.logger.Info("capture started", "device", device, "mime", s.MIMEType())
	}
	return nil
}

// drain appends source chunks in capture order and forwards them to the tap.
// A source channel that closes before Stop means the device was lost.
func (s *Session) drain() {
	defer close(s.drained)

	source := s.source
	for chunk := range source.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.totalBytes += int64(len(chunk))
		tap := s.tap
		s.mu.Unlock()

		if tap != nil {
			select {
			case tap <- chunk:
			default:
				// A lagging consumer must not stall capture accumulation.
				if s.logger != nil {
					s.logger.Warn("dropping live chunk for slow tap consumer")
				}
			}
		}
	}

	s.mu.Lock()
	tap := s.tap
	s.tap = nil
	lost := s.state == fsm.StateRecording || s.state == fsm.StatePaused
	if lost {
		s.deviceLost = true
		s.state, _ = fsm.Transition(s.state, fsm.EventFail)
	}
	notify := s.onState
	state := s.state
	s.mu.Unlock()

	if tap != nil {
		close(tap)
	}
	if lost {
		if s.logger != nil {
			s.logger.Error("capture source closed unexpectedly", "device", s.device)
		}
		if notify != nil {
			notify(state)
		}
	}
}

// Pause gates the device stream. Valid only while recording; paused wall-clock
// time never counts toward reported duration.
func (s *Session) Pause() error {
	s.mu.Lock()
	next, err := fsm.Transition(s.state, fsm.EventPause)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	s.state = next
	s.pausedAt = s.now()
	source := s.source
	notify := s.onState
	s.mu.Unlock()

	source.SetPaused(true)
	if notify != nil {
		notify(next)
	}
	return nil
}

// Resume reopens the stream gate and credits the elapsed pause interval.
func (s *Session) Resume() error {
	s.mu.Lock()
	next, err := fsm.Transition(s.state, fsm.EventResume)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	s.state = next
	s.accumulatedPaused += s.now().Sub(s.pausedAt)
	s.pausedAt = time.Time{}
	source := s.source
	notify := s.onState
	s.mu.Unlock()

	source.SetPaused(false)
	if notify != nil {
		notify(next)
	}
	return nil
}

// Stop finalizes the session: stops the device, waits for the drain to settle,
// and concatenates buffered chunks in capture order into one immutable
// recording. Stopped is terminal. After a mid-recording device loss Stop
// returns the buffered recording together with ErrDeviceLost.
func (s *Session) Stop() (Recording, error) {
	s.mu.Lock()
	if s.deviceLost {
		if s.final == nil {
			rec := s.materializeLocked()
			s.final = &rec
		}
		rec := *s.final
		s.mu.Unlock()
		return rec, ErrDeviceLost
	}

	next, err := fsm.Transition(s.state, fsm.EventStop)
	if err != nil {
		s.mu.Unlock()
		return Recording{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !s.pausedAt.IsZero() {
		s.accumulatedPaused += s.now().Sub(s.pausedAt)
		s.pausedAt = time.Time{}
	}
	s.state = next
	source := s.source
	drained := s.drained
	notify := s.onState
	s.mu.Unlock()

	if source != nil {
		_ = source.Stop()
	}
	if drained != nil {
		<-drained
	}

	s.mu.Lock()
	rec := s.materializeLocked()
	s.final = &rec
	s.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	if s.logger != nil {
		s.logger.Info("capture stopped",
			"recording_id", rec.ID,
			"duration_ms", rec.Duration.Milliseconds(),
			"size_bytes", rec.Size,
		)
	}
	return rec, nil
}

// materializeLocked concatenates chunks byte-for-byte into one blob.
func (s *Session) materializeLocked() Recording {
	data := make([]byte, 0, s.totalBytes)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}

	return Recording{
		ID:        uuid.NewString(),
		Data:      data,
		MIMEType:  s.mimeType,
		Duration:  s.elapsedLocked(),
		Size:      int64(len(data)),
		CreatedAt: s.now(),
	}
}

// Snapshot computes a poll-safe state view without side effects.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state,
		DurationMS: s.elapsedLocked().Milliseconds(),
		SizeBytes:  s.totalBytes,
	}
}

// elapsedLocked reports recorded duration, frozen while paused and after stop.
func (s *Session) elapsedLocked() time.Duration {
	switch s.state {
	case fsm.StateRecording:
		return s.now().Sub(s.startedAt) - s.accumulatedPaused
	case fsm.StatePaused:
		return s.pausedAt.Sub(s.startedAt) - s.accumulatedPaused
	case fsm.StateStopped:
		if s.final != nil {
			return s.final.Duration
		}
		if s.startedAt.IsZero() {
			return 0
		}
		return s.now().Sub(s.startedAt) - s.accumulatedPaused
	default:
		return 0
	}
}
