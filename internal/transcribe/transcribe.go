// Package transcribe slices captured audio into bounded time windows and
// produces ordered transcript segments from an external speech-to-text
// provider.
package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parlo-dev/parlo/internal/audio"
)

// Segment is one window's transcription result. Index is dense in capture
// order: windows that transcribe to blank text are dropped, and surviving
// segments are renumbered so consumers see strictly increasing, gap-free
// indices. StartMS/EndMS carry the window's temporal position.
type Segment struct {
	Index          int
	Text           string
	StartMS        int64
	EndMS          int64
	SourceLanguage string
}

// Provider performs one speech-to-text call over a bounded audio window.
type Provider interface {
	Transcribe(ctx context.Context, audioBlob []byte, mimeType string, language string) (string, error)
}

const (
	// DefaultWindow is the fixed transcription window duration.
	DefaultWindow = 3 * time.Second
	// DefaultMaxInFlight caps concurrent provider calls per session.
	DefaultMaxInFlight = 4
)

// Config controls window slicing and dispatch.
type Config struct {
	Window      time.Duration
	MaxInFlight int
	Language    string
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	return c
}

// window is one dispatchable slice of PCM with its capture-order position.
type window struct {
	index   int
	pcm     []byte
	startMS int64
	endMS   int64
}

// result pairs a window with its provider outcome.
type result struct {
	window window
	text   string
}

// runWindows dispatches windows with bounded concurrency and reorders
// completions back into capture order. A failed window yields empty text and
// never stalls later windows. The returned channel closes after the final
// window settles.
func runWindows(
	ctx context.Context,
	provider Provider,
	cfg Config,
	logger *slog.Logger,
	windows <-chan window,
) <-chan result {
	results := make(chan result, cfg.MaxInFlight)
	unordered := make(chan result, cfg.MaxInFlight)

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.MaxInFlight)

	go func() {
		for win := range windows {
			sem <- struct{}{}
			wg.Add(1)
			go func(win window) {
				defer wg.Done()
				defer func() { <-sem }()

				blob := audio.EncodeWAV(win.pcm, audio.SampleRate, audio.Channels)
				text, err := provider.Transcribe(ctx, blob, audio.MIMEWav, cfg.Language)
				if err != nil {
					// Best-effort transcript: a failed window degrades to
					// empty text and the pipeline keeps moving.
					if logger != nil {
						logger.Warn("window transcription failed",
							"window", win.index,
							"error", err.Error(),
						)
					}
					text = ""
				}
				select {
				case unordered <- result{window: win, text: text}:
				case <-ctx.Done():
				}
			}(win)
		}
		wg.Wait()
		close(unordered)
	}()

	go func() {
		defer close(results)

		pending := make(map[int]result)
		next := 0
		for res := range unordered {
			pending[res.window.index] = res
			for {
				ordered, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				select {
				case results <- ordered:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}

// emitSegments converts ordered window results into dense-indexed segments,
// dropping blank text. Emission stops silently once ctx is cancelled so a
// stopped session with no listener discards late completions.
func emitSegments(
	ctx context.Context,
	results <-chan result,
	language string,
	out chan<- Segment,
) {
	defer close(out)

	index := 0
	for res := range results {
		text := strings.TrimSpace(res.text)
		if text == "" {
			continue
		}
		segment := Segment{
			Index:          index,
			Text:           text,
			StartMS:        res.window.startMS,
			EndMS:          res.window.endMS,
			SourceLanguage: language,
		}
		select {
		case out <- segment:
			index++
		case <-ctx.Done():
			return
		}
	}
}
