package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// HTTPProvider calls a whisper-style transcription endpoint: multipart form
// upload of one audio window, JSON {"text": ...} response.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPProvider builds a provider for one endpoint/model pair.
func NewHTTPProvider(endpoint, apiKey, model string) (*HTTPProvider, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("transcription endpoint is empty")
	}
	return &HTTPProvider{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Transcribe uploads one audio window and returns the recognized text.
func (p *HTTPProvider) Transcribe(ctx context.Context, audioBlob []byte, mimeType string, language string) (string, error) {
	if len(audioBlob) == 0 {
		return "", errors.New("audio window is empty")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileNameFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioBlob); err != nil {
		return "", fmt.Errorf("write audio payload: %w", err)
	}
	if p.model != "" {
		if err := writer.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("write model field: %w", err)
		}
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return decoded.Text, nil
}

// fileNameFor keeps the upload name consistent with the window container.
func fileNameFor(mimeType string) string {
	if strings.Contains(mimeType, "ogg") || strings.Contains(mimeType, "opus") {
		return "window.ogg"
	}
	return "window.wav"
}
