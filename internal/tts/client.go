package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client performs text->audio synthesis against an external HTTP service.
// The response body is returned verbatim as playable audio bytes.
type Client struct {
	URL       string
	AuthToken string
	Language  string
	HTTP      *http.Client
}

func NewClient(url, authToken, language string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		URL:       url,
		AuthToken: authToken,
		Language:  language,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Synthesize posts the sanitized text and returns the audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("tts client not configured")
	}
	body, _ := json.Marshal(map[string]string{"text": text, "lang": c.Language})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts returned status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read body: %w", err)
	}
	return audio, nil
}
