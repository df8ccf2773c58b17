package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// HTTPClient calls a JSON synthesis endpoint and returns raw audio bytes:
// POST {input, voice, language, speed, response_format} -> audio body.
type HTTPClient struct {
	provider   ProviderName
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a synthesis binding for one provider endpoint.
func NewHTTPClient(provider ProviderName, endpoint, apiKey string) (*HTTPClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("synthesis endpoint for %s is empty", provider)
	}
	return &HTTPClient{
		provider:   provider,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

type synthesisRequest struct {
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Language       string  `json:"language,omitempty"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize performs one synthesis call and returns the audio body.
func (c *HTTPClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	payload, err := json.Marshal(synthesisRequest{
		Input:          req.Text,
		Voice:          req.Voice,
		Language:       req.Language,
		Speed:          req.Speed,
		ResponseFormat: string(req.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("synthesis endpoint returned empty body")
	}
	return data, nil
}
