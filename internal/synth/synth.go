// Package synth converts segment text into playable audio through
// interchangeable external text-to-speech providers.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/translate"
)

var (
	// ErrEmptyInput means synthesis was requested for blank text.
	ErrEmptyInput = errors.New("synthesis input is empty")
	// ErrInvalidVoice means the voice is not in the provider/language catalog.
	ErrInvalidVoice = errors.New("voice not in provider catalog")
	// ErrNoContent means no segment yielded audio for a voiceover.
	ErrNoContent = errors.New("no synthesizable content")
	// ErrUnknownProvider means settings name a provider with no binding.
	ErrUnknownProvider = errors.New("unknown synthesis provider")
)

// ProviderError wraps an upstream synthesis failure. Synthesis is the
// terminal producer of user-facing audio, so there is no safe fallback and
// the error propagates.
type ProviderError struct {
	Provider ProviderName
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("synthesis provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Format is the output container for synthesized audio.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
)

// MIMEType maps the format to its transport MIME type.
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return audio.MIMEWav
	case FormatOpus:
		return audio.MIMEOggOpus
	default:
		return "application/octet-stream"
	}
}

// Speed bounds accepted by every provider binding.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Settings is the provider-agnostic synthesis configuration, validated
// before any dispatch.
type Settings struct {
	Provider ProviderName
	Voice    string
	Language string
	Speed    float64
	Format   Format
}

// Normalize repairs a dangling voice selection: when the configured voice is
// not present in the (provider, language) catalog, the selection resets to
// that catalog's first entry. Returns the repaired settings and whether a
// reset happened. A stale voice must never reach the provider.
func Normalize(settings Settings) (Settings, bool) {
	if hasVoice(settings.Provider, settings.Language, settings.Voice) {
		return settings, false
	}
	voices := catalogs[settings.Provider][settings.Language]
	if len(voices) == 0 {
		return settings, false
	}
	settings.Voice = voices[0]
	return settings, true
}

// Validate enforces the settings invariants shared by all providers.
func Validate(settings Settings) error {
	if _, ok := catalogs[settings.Provider]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider)
	}
	if settings.Speed < MinSpeed || settings.Speed > MaxSpeed {
		return fmt.Errorf("speed %.2f outside [%.2f, %.2f]", settings.Speed, MinSpeed, MaxSpeed)
	}
	switch settings.Format {
	case FormatMP3, FormatWAV, FormatOpus:
	default:
		return fmt.Errorf("unsupported output format %q", settings.Format)
	}
	if !hasVoice(settings.Provider, settings.Language, settings.Voice) {
		return fmt.Errorf("%w: %q for %s/%s", ErrInvalidVoice, settings.Voice, settings.Provider, settings.Language)
	}
	return nil
}

// Request is one provider synthesis call.
type Request struct {
	Text     string
	Voice    string
	Language string
	Speed    float64
	Format   Format
}

// Client performs one synthesis call against a concrete provider.
type Client interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// VoiceoverAsset is the ordered concatenation of per-segment audio in one
// fixed format.
type VoiceoverAsset struct {
	Data         []byte
	Format       Format
	MIMEType     string
	SegmentCount int
}

// Player plays one finished blob; audio.Player satisfies it.
type Player interface {
	Play(ctx context.Context, data []byte, mimeType string) error
}

// Synthesizer routes validated settings to provider bindings.
type Synthesizer struct {
	clients map[ProviderName]Client
	player  Player
	logger  *slog.Logger
}

// New builds a synthesizer over provider bindings. The player may be nil
// when playback is not wired.
func New(clients map[ProviderName]Client, player Player, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{clients: clients, player: player, logger: logger}
}

// Synthesize converts text to audio bytes. Fails on blank input, invalid
// settings, or any provider failure; never partially succeeds.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, settings Settings) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if err := Validate(settings); err != nil {
		return nil, err
	}

	client, ok := s.clients[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no client binding", ErrUnknownProvider, settings.Provider)
	}

	data, err := client.Synthesize(ctx, Request{
		Text:     text,
		Voice:    settings.Voice,
		Language: settings.Language,
		Speed:    settings.Speed,
		Format:   settings.Format,
	})
	if err != nil {
		return nil, &ProviderError{Provider: settings.Provider, Err: err}
	}
	return data, nil
}

// PlayImmediate synthesizes then plays through the platform output. The
// player owns and releases its staging resources on the first terminal
// event, including interrupted playback.
func (s *Synthesizer) PlayImmediate(ctx context.Context, text string, settings Settings) error {
	if s.player == nil {
		return errors.New("no audio player configured")
	}
	data, err := s.Synthesize(ctx, text, settings)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, data, settings.Format.MIMEType())
}

// SynthesizeVoiceover synthesizes segments strictly sequentially in their
// given order, skips blank effective text without reordering, and
// concatenates the audio into one asset. Sequential dispatch respects
// provider rate limits and keeps concatenation order trivially correct.
func (s *Synthesizer) SynthesizeVoiceover(ctx context.Context, segments []translate.Segment, settings Settings) (VoiceoverAsset, error) {
	if err := Validate(settings); err != nil {
		return VoiceoverAsset{}, err
	}

	parts := make([][]byte, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.EffectiveText())
		if text == "" {
			continue
		}
		data, err := s.Synthesize(ctx, text, settings)
		if err != nil {
			return VoiceoverAsset{}, fmt.Errorf("segment %d: %w", segment.Index, err)
		}
		parts = append(parts, data)
	}

	if len(parts) == 0 {
		return VoiceoverAsset{}, ErrNoContent
	}

	data, err := concatenate(parts, settings.Format)
	if err != nil {
		return VoiceoverAsset{}, err
	}

	if s.logger != nil {
		s.logger.Info("voiceover assembled",
			"segments", len(parts),
			"bytes", len(data),
			"format", string(settings.Format),
		)
	}
	return VoiceoverAsset{
		Data:         data,
		Format:       settings.Format,
		MIMEType:     settings.Format.MIMEType(),
		SegmentCount: len(parts),
	}, nil
}

// concatenate merges per-segment buffers in order. WAV needs its RIFF header
// rewritten; framed formats concatenate directly.
func concatenate(parts [][]byte, format Format) ([]byte, error) {
	if format == FormatWAV {
		return audio.ConcatWAV(parts)
	}
	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make([]byte, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}
