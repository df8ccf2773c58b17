package transcribe

import (
	"context"
	"errors"
	"log/slog"

	"github.com/parlo-dev/parlo/internal/audio"
)

// Batcher transcribes one finished recording by splitting it into equal
// fixed-duration windows.
type Batcher struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewBatcher builds a batch transcriber around one provider.
func NewBatcher(provider Provider, cfg Config, logger *slog.Logger) *Batcher {
	return &Batcher{provider: provider, cfg: cfg.withDefaults(), logger: logger}
}

// TranscribeRecording slices raw PCM into windows, dispatches them with the
// shared bounded-concurrency runner, and returns the finite segment list in
// logical order.
func (b *Batcher) TranscribeRecording(ctx context.Context, pcm []byte) ([]Segment, error) {
	if len(pcm) == 0 {
		return nil, errors.New("recording is empty")
	}

	windowBytes := int(b.cfg.Window.Milliseconds()) * audio.BytesPerMillisecond()
	windows := make(chan window)

	go func() {
		defer close(windows)

		index := 0
		cursorMS := int64(0)
		for offset := 0; offset < len(pcm); offset += windowBytes {
			end := offset + windowBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			slice := pcm[offset:end]
			durMS := int64(len(slice) / audio.BytesPerMillisecond())
			windows <- window{
				index:   index,
				pcm:     slice,
				startMS: cursorMS,
				endMS:   cursorMS + durMS,
			}
			index++
			cursorMS += durMS
		}
	}()

	results := runWindows(ctx, b.provider, b.cfg, b.logger, windows)
	out := make(chan Segment, b.cfg.MaxInFlight)
	go emitSegments(ctx, results, b.cfg.Language, out)

	segments := make([]Segment, 0)
	for segment := range out {
		segments = append(segments, segment)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return segments, nil
}
