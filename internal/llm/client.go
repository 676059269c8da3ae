package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// voiceInstructions keeps replies short and plain so they survive synthesis.
const voiceInstructions = "Voice mode: reply briefly (1-2 short sentences), plain text only, no emojis, no markdown."

// Client calls a responses-style conversational backend. Without a token it
// degrades to echoing the transcript, which keeps the voice loop usable
// against an unconfigured gateway.
type Client struct {
	URL             string
	Token           string
	Model           string
	MaxOutputTokens int
	HTTP            *http.Client
}

func NewClient(url, token, model string, maxOutputTokens int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		URL:             url,
		Token:           token,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
		HTTP:            &http.Client{Timeout: timeout},
	}
}

type message struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsePayload struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

// Ask sends the transcript to the backend and returns the reply text.
// sessionUser is an opaque correlation token for conversational continuity.
// Non-2xx responses are a hard failure for this call only.
func (c *Client) Ask(ctx context.Context, input, sessionUser string) (string, error) {
	if c.Token == "" {
		return "I heard: " + input, nil
	}

	payload := map[string]interface{}{
		"model":        c.Model,
		"instructions": voiceInstructions,
		"input": []message{{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: input}},
		}},
		"max_output_tokens": c.MaxOutputTokens,
	}
	if sessionUser != "" {
		payload["user"] = sessionUser
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var out responsePayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("backend decode: %w", err)
	}
	text := extractText(out)
	if text == "" {
		return "I heard: " + input, nil
	}
	return text, nil
}

// extractText prefers the flat output_text field, then concatenates the
// output_text parts of message-typed output items in order.
func extractText(out responsePayload) string {
	if t := strings.TrimSpace(out.OutputText); t != "" {
		return t
	}
	var chunks []string
	for _, item := range out.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" && part.Text != "" {
				chunks = append(chunks, part.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(chunks, " "))
}
