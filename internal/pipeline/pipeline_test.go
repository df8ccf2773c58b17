package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/capture"
	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/transcribe"
	"github.com/parlo-dev/parlo/internal/transcript"
	"github.com/parlo-dev/parlo/internal/translate"
)

type fakeSource struct {
	ch       chan []byte
	mu       sync.Mutex
	bytes    int64
	stopOnce sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 64)}
}

func (f *fakeSource) push(chunk []byte) {
	f.mu.Lock()
	f.bytes += int64(len(chunk))
	f.mu.Unlock()
	f.ch <- chunk
}

func (f *fakeSource) Chunks() <-chan []byte { return f.ch }
func (f *fakeSource) SetPaused(bool)       {}
func (f *fakeSource) Stop() error {
	f.stopOnce.Do(func() { close(f.ch) })
	return nil
}
func (f *fakeSource) BytesCaptured() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes
}

// markerProvider maps the first PCM payload byte of each window to a word,
// so assertions do not depend on provider call order.
type markerProvider struct {
	words map[byte]string
}

func (p markerProvider) Transcribe(_ context.Context, blob []byte, _ string, _ string) (string, error) {
	if len(blob) <= 44 {
		return "", nil
	}
	return p.words[blob[44]], nil
}

func acquirerFor(source *fakeSource) capture.Acquirer {
	return func(context.Context) (capture.Source, string, error) {
		return source, "fake-device", nil
	}
}

func windowPCM(marker byte) []byte {
	pcm := make([]byte, 3000*audio.BytesPerMillisecond())
	for i := range pcm {
		pcm[i] = marker
	}
	return pcm
}

func newTestPipeline(source *fakeSource, provider transcribe.Provider, translator *translate.Translator, targetLang string) *Pipeline {
	session := capture.NewSession(acquirerFor(source), nil)
	streamer := transcribe.NewStreamer(provider, transcribe.Config{Language: "fr"}, nil)
	return New(session, streamer, translator, targetLang, transcript.Options{}, nil)
}

func TestPipelineEndToEnd(t *testing.T) {
	source := newFakeSource()
	provider := markerProvider{words: map[byte]string{1: "bonjour", 2: "le monde"}}
	p := newTestPipeline(source, provider, nil, "")

	require.NoError(t, p.Start(context.Background()))
	source.push(windowPCM(1))
	source.push(windowPCM(2))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := p.StopAndCollect(ctx)
	require.NoError(t, err)

	require.Equal(t, "bonjour le monde", result.Transcript)
	require.Len(t, result.Segments, 2)
	require.Equal(t, 0, result.Segments[0].Index)
	require.Equal(t, 1, result.Segments[1].Index)
	require.False(t, result.DeviceLost)
	require.Equal(t, int64(2*3000*audio.BytesPerMillisecond()), result.Recording.Size)
	require.Equal(t, fsm.StateStopped, p.State())
}

func TestPipelineNotifiesOnSegment(t *testing.T) {
	source := newFakeSource()
	provider := markerProvider{words: map[byte]string{1: "bonjour", 2: "le monde"}}
	p := newTestPipeline(source, provider, nil, "")

	var mu sync.Mutex
	var seen []int
	p.OnSegment(func(segment transcribe.Segment) {
		mu.Lock()
		seen = append(seen, segment.Index)
		mu.Unlock()
	})

	require.NoError(t, p.Start(context.Background()))
	source.push(windowPCM(1))
	source.push(windowPCM(2))

	_, err := p.StopAndCollect(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1}, seen)
}

func TestPipelineTranslatesWhenTargetConfigured(t *testing.T) {
	source := newFakeSource()
	provider := markerProvider{words: map[byte]string{1: "bonjour"}}
	translator := translate.New(upcaseProvider{}, nil)
	p := newTestPipeline(source, provider, translator, "en")

	require.NoError(t, p.Start(context.Background()))
	source.push(windowPCM(1))

	result, err := p.StopAndCollect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	require.Equal(t, "BONJOUR", result.Segments[0].TranslatedText)
	require.Equal(t, "BONJOUR", result.Transcript)
}

type upcaseProvider struct{}

func (upcaseProvider) Translate(_ context.Context, text, _, _ string) (string, error) {
	upper := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	return string(upper), nil
}

func TestPipelineDeviceLossKeepsBufferedWork(t *testing.T) {
	source := newFakeSource()
	provider := markerProvider{words: map[byte]string{1: "bonjour"}}
	p := newTestPipeline(source, provider, nil, "")

	require.NoError(t, p.Start(context.Background()))
	source.push(windowPCM(1))
	source.stopOnce.Do(func() { close(source.ch) }) // device vanishes mid-recording
	require.Eventually(t, func() bool { return p.State() == fsm.StateStopped }, 5*time.Second, time.Millisecond)

	result, err := p.StopAndCollect(context.Background())
	require.NoError(t, err)
	require.True(t, result.DeviceLost)
	require.Equal(t, "bonjour", result.Transcript)
	require.Equal(t, int64(3000*audio.BytesPerMillisecond()), result.Recording.Size)
}

func TestPipelineCancelDiscardsRun(t *testing.T) {
	source := newFakeSource()
	provider := markerProvider{words: map[byte]string{1: "bonjour"}}
	p := newTestPipeline(source, provider, nil, "")

	require.NoError(t, p.Start(context.Background()))
	source.push(windowPCM(1))
	require.NoError(t, p.Cancel())

	_, err := p.StopAndCollect(context.Background())
	require.ErrorIs(t, err, ErrPipelineUnavailable)
}

func TestPipelineLifecycleGuards(t *testing.T) {
	source := newFakeSource()
	p := newTestPipeline(source, markerProvider{}, nil, "")

	_, err := p.StopAndCollect(context.Background())
	require.ErrorIs(t, err, ErrPipelineUnavailable)
	require.ErrorIs(t, p.Pause(), ErrPipelineUnavailable)

	require.NoError(t, p.Start(context.Background()))
	require.Error(t, p.Start(context.Background()))

	require.NoError(t, p.Pause())
	require.NoError(t, p.Resume())

	_, err = p.StopAndCollect(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, p.Resume(), ErrPipelineUnavailable)
}

func TestPipelineStartFailureIsFatal(t *testing.T) {
	session := capture.NewSession(func(context.Context) (capture.Source, string, error) {
		return nil, "", context.DeadlineExceeded
	}, nil)
	streamer := transcribe.NewStreamer(markerProvider{}, transcribe.Config{}, nil)
	p := New(session, streamer, nil, "", transcript.Options{}, nil)

	require.Error(t, p.Start(context.Background()))
	require.Equal(t, fsm.StateStopped, p.State())
	_, err := p.StopAndCollect(context.Background())
	require.ErrorIs(t, err, ErrPipelineUnavailable)
}
