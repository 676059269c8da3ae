package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url, "test-token", "test-model", 120, 5*time.Second)
}

func TestAskFlatOutputText(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]string{"output_text": "It's 3 PM."})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	reply, err := c.Ask(context.Background(), "what time is it", "discord-voice:g:u:1")
	require.NoError(t, err)
	require.Equal(t, "It's 3 PM.", reply)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, "discord-voice:g:u:1", gotPayload["user"])
	require.Equal(t, "test-model", gotPayload["model"])
	require.EqualValues(t, 120, gotPayload["max_output_tokens"])
}

func TestAskConcatenatesMessageParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"output": []map[string]interface{}{
				{"type": "reasoning"},
				{"type": "message", "content": []map[string]string{
					{"type": "output_text", "text": "Hello"},
					{"type": "refusal", "text": "nope"},
					{"type": "output_text", "text": "there."},
				}},
			},
		})
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Ask(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, "Hello there.", reply)
}

func TestAskNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Ask(context.Background(), "hi", "")
	require.Error(t, err)
}

func TestAskWithoutTokenEchoes(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/unused", "", "m", 120, time.Second)
	reply, err := c.Ask(context.Background(), "what time is it", "")
	require.NoError(t, err)
	require.Equal(t, "I heard: what time is it", reply)
}
