package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/fsm"
)

type fakeSource struct {
	mu      sync.Mutex
	ch      chan []byte
	paused  bool
	stopped bool
	bytes   int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 64)}
}

func (f *fakeSource) Chunks() <-chan []byte { return f.ch }

func (f *fakeSource) SetPaused(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.ch)
	}
	return nil
}

func (f *fakeSource) BytesCaptured() int64 { return f.bytes }

func (f *fakeSource) push(t *testing.T, chunk []byte) {
	t.Helper()
	select {
	case f.ch <- chunk:
	case <-time.After(time.Second):
		t.Fatal("push timed out")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func startedSession(t *testing.T, source *fakeSource) (*Session, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	session := NewSession(func(context.Context) (Source, string, error) {
		return source, "fake-device", nil
	}, nil)
	session.now = clock.Now

	require.NoError(t, session.Start(context.Background()))
	require.Equal(t, fsm.StateRecording, session.State())
	return session, clock
}

func waitForState(t *testing.T, session *Session, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s (still %s)", want, session.State())
}

func TestStopConcatenatesChunksBytePreserving(t *testing.T) {
	source := newFakeSource()
	session, _ := startedSession(t, source)

	chunks := [][]byte{{1, 2, 3}, {4, 5}, {6, 7, 8, 9}}
	total := 0
	for _, chunk := range chunks {
		source.push(t, chunk)
		total += len(chunk)
	}

	// Let the drain loop observe all chunks before stopping.
	deadline := time.Now().Add(2 * time.Second)
	for session.Snapshot().SizeBytes < int64(total) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	rec, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, int64(total), rec.Size)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, rec.Data)
	require.Equal(t, audio.MIMEWav, rec.MIMEType)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, fsm.StateStopped, session.State())
}

func TestPausedTimeDoesNotCountTowardDuration(t *testing.T) {
	source := newFakeSource()
	session, clock := startedSession(t, source)

	clock.Advance(2 * time.Second)
	before := session.Snapshot()
	require.Equal(t, int64(2000), before.DurationMS)

	require.NoError(t, session.Pause())
	require.Equal(t, fsm.StatePaused, session.State())

	clock.Advance(5 * time.Second)
	paused := session.Snapshot()
	require.Equal(t, before.DurationMS, paused.DurationMS)

	require.NoError(t, session.Resume())
	clock.Advance(time.Second)

	rec, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, rec.Duration)
}

func TestStopWhilePausedFreezesDuration(t *testing.T) {
	source := newFakeSource()
	session, clock := startedSession(t, source)

	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, session.Pause())
	clock.Advance(10 * time.Second)

	rec, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, rec.Duration)
}

func TestInvalidLifecycleCalls(t *testing.T) {
	source := newFakeSource()
	session, _ := startedSession(t, source)

	require.ErrorIs(t, session.Resume(), ErrInvalidState)
	require.ErrorIs(t, session.Start(context.Background()), ErrInvalidState)

	require.NoError(t, session.Pause())
	require.ErrorIs(t, session.Pause(), ErrInvalidState)

	_, err := session.Stop()
	require.NoError(t, err)

	require.ErrorIs(t, session.Pause(), ErrInvalidState)
	require.ErrorIs(t, session.Resume(), ErrInvalidState)
	_, err = session.Stop()
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStopFromIdleInvalid(t *testing.T) {
	session := NewSession(func(context.Context) (Source, string, error) {
		return newFakeSource(), "fake", nil
	}, nil)

	_, err := session.Stop()
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestDeviceAcquisitionFailureIsFatal(t *testing.T) {
	boom := errors.New("no permission")
	session := NewSession(func(context.Context) (Source, string, error) {
		return nil, "", boom
	}, nil)

	err := session.Start(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.Equal(t, fsm.StateStopped, session.State())
}

func TestMidRecordingDeviceLossKeepsBufferedChunks(t *testing.T) {
	source := newFakeSource()
	session, _ := startedSession(t, source)

	source.push(t, []byte{9, 9, 9})
	deadline := time.Now().Add(2 * time.Second)
	for session.Snapshot().SizeBytes < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Simulate the device vanishing: the source closes without Stop.
	close(source.ch)
	waitForState(t, session, fsm.StateStopped)

	rec, err := session.Stop()
	require.ErrorIs(t, err, ErrDeviceLost)
	require.Equal(t, []byte{9, 9, 9}, rec.Data)
}

func TestStateChangeNotifications(t *testing.T) {
	source := newFakeSource()
	clock := newFakeClock()

	var mu sync.Mutex
	var seen []fsm.State

	session := NewSession(func(context.Context) (Source, string, error) {
		return source, "fake", nil
	}, nil)
	session.now = clock.Now
	session.OnStateChange(func(state fsm.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, state)
	})

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Pause())
	require.NoError(t, session.Resume())
	_, err := session.Stop()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []fsm.State{
		fsm.StateRecording,
		fsm.StatePaused,
		fsm.StateRecording,
		fsm.StateStopped,
	}, seen)
}

func TestTapForwardsLiveChunks(t *testing.T) {
	source := newFakeSource()
	session, _ := startedSession(t, source)

	tap := session.Tap()
	require.NotNil(t, tap)

	source.push(t, []byte{1, 2})
	source.push(t, []byte{3})

	first := <-tap
	second := <-tap
	require.Equal(t, []byte{1, 2}, first)
	require.Equal(t, []byte{3}, second)

	_, err := session.Stop()
	require.NoError(t, err)

	_, open := <-tap
	require.False(t, open)
}

func TestConcurrentStartAcquiresDeviceOnce(t *testing.T) {
	source := newFakeSource()
	entered := make(chan struct{})
	release := make(chan struct{})
	acquisitions := 0

	session := NewSession(func(context.Context) (Source, string, error) {
		acquisitions++
		close(entered)
		<-release
		return source, "fake-device", nil
	}, nil)

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- session.Start(context.Background())
	}()

	// Second Start arrives while the first is still inside the acquirer.
	<-entered
	err := session.Start(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)

	close(release)
	require.NoError(t, <-firstErr)
	require.Equal(t, 1, acquisitions)
	require.Equal(t, fsm.StateRecording, session.State())

	_, err = session.Stop()
	require.NoError(t, err)
}
