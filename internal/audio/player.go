package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Player hands synthesized audio to an external playback command. The blob is
// staged in a temp file owned by the player and removed on the first terminal
// event, including interrupted playback.
type Player struct {
	argv []string
}

// NewPlayer builds a player around a playback argv (for example ["paplay"]).
func NewPlayer(argv []string) (*Player, error) {
	if len(argv) == 0 {
		return nil, errors.New("playback command is empty")
	}
	return &Player{argv: append([]string(nil), argv...)}, nil
}

// Play writes the blob to a temp file and blocks until playback finishes or
// the context cancels. The temp file is always removed before returning.
func (p *Player) Play(ctx context.Context, data []byte, mimeType string) error {
	if len(data) == 0 {
		return errors.New("no audio data to play")
	}

	file, err := os.CreateTemp("", "parlo-play-*"+extensionFor(mimeType))
	if err != nil {
		return fmt.Errorf("stage playback file: %w", err)
	}
	path := file.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write playback file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close playback file: %w", err)
	}

	args := append(append([]string(nil), p.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback command %q: %w: %s", p.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// extensionFor maps a MIME type to a playback file extension hint.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	default:
		return ".bin"
	}
}
