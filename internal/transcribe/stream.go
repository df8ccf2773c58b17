package transcribe

import (
	"context"
	"log/slog"

	"github.com/parlo-dev/parlo/internal/audio"
)

// Streamer transcribes a live PCM chunk stream window by window. Not
// restartable: create a new Streamer per capture session.
type Streamer struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewStreamer builds a streaming transcriber around one provider.
func NewStreamer(provider Provider, cfg Config, logger *slog.Logger) *Streamer {
	return &Streamer{provider: provider, cfg: cfg.withDefaults(), logger: logger}
}

// Run consumes live chunks until the stream closes and emits segments in
// logical order. Windows are cut at a fixed duration; a trailing partial
// window is flushed at stream end. The returned channel closes once every
// dispatched window has settled.
func (s *Streamer) Run(ctx context.Context, chunks <-chan []byte) <-chan Segment {
	out := make(chan Segment, s.cfg.MaxInFlight)
	windows := make(chan window)

	windowBytes := int(s.cfg.Window.Milliseconds()) * audio.BytesPerMillisecond()

	go func() {
		defer close(windows)

		var buffer []byte
		index := 0
		cursorMS := int64(0)

		cut := func(pcm []byte) {
			durMS := int64(len(pcm) / audio.BytesPerMillisecond())
			windows <- window{
				index:   index,
				pcm:     pcm,
				startMS: cursorMS,
				endMS:   cursorMS + durMS,
			}
			index++
			cursorMS += durMS
		}

		for chunk := range chunks {
			buffer = append(buffer, chunk...)
			for len(buffer) >= windowBytes {
				pcm := make([]byte, windowBytes)
				copy(pcm, buffer[:windowBytes])
				buffer = buffer[windowBytes:]
				cut(pcm)
			}
		}
		if len(buffer) > 0 {
			cut(append([]byte(nil), buffer...))
		}
	}()

	results := runWindows(ctx, s.provider, s.cfg, s.logger, windows)
	go emitSegments(ctx, results, s.cfg.Language, out)

	return out
}
