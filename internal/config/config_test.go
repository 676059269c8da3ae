package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()

	require.Equal(t, "python3 scripts/stt_worker.py", c.STT.WorkerCmd)
	require.Equal(t, "tiny.en", c.STT.Model)
	require.Equal(t, 15000, c.STT.TimeoutMs)
	require.Equal(t, 120, c.Backend.MaxOutputTokens)
	require.Equal(t, "en", c.TTS.Language)

	require.Equal(t, 48000, c.Voice.SampleRate)
	require.Equal(t, 2, c.Voice.Channels)
	require.Equal(t, 800, c.Voice.CooldownMs)
	require.Equal(t, 5000, c.Voice.DedupWindowMs)
	require.Equal(t, 650, c.Voice.SilenceMs)
	require.Equal(t, 4, c.Voice.MinTranscriptChars)
	require.Equal(t, 180, c.Voice.ReplyMaxChars)
	require.Equal(t, 8000, c.Voice.PlaybackStartWaitMs)
	require.Equal(t, 15000, c.Voice.JoinWaitMs)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("VOICE_POST_TTS_COOLDOWN_MS", "1200")
	t.Setenv("MIN_TRANSCRIPT_CHARS", "6")
	t.Setenv("STT_WORKER_CMD", "/usr/bin/python3 /opt/worker.py")
	t.Setenv("BACKEND_RESPONSES_URL", "http://127.0.0.1:18789/v1/responses")

	c := Load()

	require.Equal(t, "tok", c.Discord.Token)
	require.Equal(t, 1200, c.Voice.CooldownMs)
	require.Equal(t, 6, c.Voice.MinTranscriptChars)
	require.Equal(t, "/usr/bin/python3 /opt/worker.py", c.STT.WorkerCmd)
	require.Equal(t, "http://127.0.0.1:18789/v1/responses", c.Backend.URL)
}
