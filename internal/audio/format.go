package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Well-known capture container MIME types.
const (
	MIMEWav     = "audio/wav"
	MIMEOggOpus = "audio/ogg;codecs=opus"
)

// Encoder wraps raw PCM into one container format.
type Encoder interface {
	MIMEType() string
	Encode(pcm []byte, sampleRate int, channels int) ([]byte, error)
}

var encoders = map[string]Encoder{
	MIMEWav: wavEncoder{},
}

// RegisterEncoder installs a container encoder, overriding any existing entry.
// Intended for optional compressed codecs wired at startup.
func RegisterEncoder(enc Encoder) {
	encoders[enc.MIMEType()] = enc
}

// NegotiateMIME resolves the session container once at capture start: the
// first preferred type with a registered encoder wins, WAV is the fallback.
func NegotiateMIME(preferred []string) string {
	for _, mime := range preferred {
		if _, ok := encoders[mime]; ok {
			return mime
		}
	}
	return MIMEWav
}

// Encode wraps PCM bytes in the negotiated container.
func Encode(mime string, pcm []byte, sampleRate int, channels int) ([]byte, error) {
	enc, ok := encoders[mime]
	if !ok {
		return nil, fmt.Errorf("no encoder registered for %q", mime)
	}
	return enc.Encode(pcm, sampleRate, channels)
}

type wavEncoder struct{}

func (wavEncoder) MIMEType() string { return MIMEWav }

func (wavEncoder) Encode(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	return EncodeWAV(pcm, sampleRate, channels), nil
}

const wavHeaderSize = 44

// EncodeWAV prefixes raw little-endian s16 PCM with a minimal WAV header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, wavHeaderSize+len(pcm))
	header := out[:wavHeaderSize]
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	copy(out[wavHeaderSize:], pcm)
	return out
}

// WAVData returns the PCM payload of a canonical 44-byte-header WAV blob.
func WAVData(blob []byte) ([]byte, error) {
	if len(blob) < wavHeaderSize {
		return nil, errors.New("wav blob shorter than header")
	}
	if !bytes.Equal(blob[0:4], []byte("RIFF")) || !bytes.Equal(blob[8:12], []byte("WAVE")) {
		return nil, errors.New("not a RIFF/WAVE blob")
	}
	return blob[wavHeaderSize:], nil
}

// ConcatWAV merges WAV blobs into one by concatenating PCM payloads under a
// rewritten header. All blobs must share the first blob's sample format; the
// header fields of the first blob are reused verbatim.
func ConcatWAV(blobs [][]byte) ([]byte, error) {
	if len(blobs) == 0 {
		return nil, errors.New("no wav blobs to concatenate")
	}

	total := 0
	payloads := make([][]byte, 0, len(blobs))
	for i, blob := range blobs {
		data, err := WAVData(blob)
		if err != nil {
			return nil, fmt.Errorf("wav blob %d: %w", i, err)
		}
		payloads = append(payloads, data)
		total += len(data)
	}

	out := make([]byte, wavHeaderSize, wavHeaderSize+total)
	copy(out, blobs[0][:wavHeaderSize])
	for _, data := range payloads {
		out = append(out, data...)
	}
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+total))
	binary.LittleEndian.PutUint32(out[40:44], uint32(total))
	return out, nil
}
