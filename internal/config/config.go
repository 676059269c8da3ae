package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the bridge needs: Discord credentials, the
// recognition worker command, the conversational backend and synthesis
// endpoints, and the voice tuning knobs. The tuning defaults are empirical
// (not derived from a model) and deliberately stay overridable via env.
type Config struct {
	Discord struct {
		Token   string
		AppID   string
		GuildID string
	}
	STT struct {
		WorkerCmd string // e.g. "python3 scripts/stt_worker.py"
		Model     string
		Compute   string
		TimeoutMs int
	}
	Backend struct {
		URL             string
		Token           string
		Model           string
		MaxOutputTokens int
		TimeoutMs       int
	}
	TTS struct {
		URL       string
		AuthToken string
		Language  string
		TimeoutMs int
	}
	Voice struct {
		SampleRate          int
		Channels            int
		CooldownMs          int
		DedupWindowMs       int
		SilenceMs           int
		MinTranscriptChars  int
		ReplyMaxChars       int
		PlaybackStartWaitMs int
		JoinWaitMs          int
	}
	Metrics struct {
		Addr string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("stt.worker_cmd", "python3 scripts/stt_worker.py")
	v.SetDefault("stt.model", "tiny.en")
	v.SetDefault("stt.compute", "int8")
	v.SetDefault("stt.timeout_ms", 15000)

	v.SetDefault("backend.model", "openclaw:main")
	v.SetDefault("backend.max_output_tokens", 120)
	v.SetDefault("backend.timeout_ms", 20000)

	v.SetDefault("tts.language", "en")
	v.SetDefault("tts.timeout_ms", 10000)

	v.SetDefault("voice.sample_rate", 48000)
	v.SetDefault("voice.channels", 2)
	v.SetDefault("voice.cooldown_ms", 800)
	v.SetDefault("voice.dedup_window_ms", 5000)
	v.SetDefault("voice.silence_ms", 650)
	v.SetDefault("voice.min_transcript_chars", 4)
	v.SetDefault("voice.reply_max_chars", 180)
	v.SetDefault("voice.playback_start_wait_ms", 8000)
	v.SetDefault("voice.join_wait_ms", 15000)

	// Map envs
	v.BindEnv("discord.token", "DISCORD_TOKEN")
	v.BindEnv("discord.app_id", "DISCORD_CLIENT_ID")
	v.BindEnv("discord.guild_id", "DISCORD_GUILD_ID")

	v.BindEnv("stt.worker_cmd", "STT_WORKER_CMD")
	v.BindEnv("stt.model", "STT_MODEL")
	v.BindEnv("stt.compute", "STT_COMPUTE")
	v.BindEnv("stt.timeout_ms", "STT_TIMEOUT_MS")

	v.BindEnv("backend.url", "BACKEND_RESPONSES_URL")
	v.BindEnv("backend.token", "BACKEND_TOKEN")
	v.BindEnv("backend.model", "BACKEND_MODEL")
	v.BindEnv("backend.max_output_tokens", "BACKEND_MAX_OUTPUT_TOKENS")
	v.BindEnv("backend.timeout_ms", "BACKEND_TIMEOUT_MS")

	v.BindEnv("tts.url", "TTS_URL")
	v.BindEnv("tts.auth_token", "TTS_AUTH_TOKEN")
	v.BindEnv("tts.language", "TTS_LANGUAGE")
	v.BindEnv("tts.timeout_ms", "TTS_TIMEOUT_MS")

	v.BindEnv("voice.sample_rate", "VOICE_SAMPLE_RATE")
	v.BindEnv("voice.channels", "VOICE_CHANNELS")
	v.BindEnv("voice.cooldown_ms", "VOICE_POST_TTS_COOLDOWN_MS")
	v.BindEnv("voice.dedup_window_ms", "VOICE_DEDUP_WINDOW_MS")
	v.BindEnv("voice.silence_ms", "VOICE_SILENCE_MS")
	v.BindEnv("voice.min_transcript_chars", "MIN_TRANSCRIPT_CHARS")
	v.BindEnv("voice.reply_max_chars", "VOICE_REPLY_MAX_CHARS")
	v.BindEnv("voice.playback_start_wait_ms", "VOICE_PLAYBACK_START_WAIT_MS")
	v.BindEnv("voice.join_wait_ms", "VOICE_JOIN_WAIT_MS")

	v.BindEnv("metrics.addr", "METRICS_ADDR")

	var c Config
	c.Discord.Token = v.GetString("discord.token")
	c.Discord.AppID = v.GetString("discord.app_id")
	c.Discord.GuildID = v.GetString("discord.guild_id")

	c.STT.WorkerCmd = v.GetString("stt.worker_cmd")
	c.STT.Model = v.GetString("stt.model")
	c.STT.Compute = v.GetString("stt.compute")
	c.STT.TimeoutMs = v.GetInt("stt.timeout_ms")

	c.Backend.URL = v.GetString("backend.url")
	c.Backend.Token = v.GetString("backend.token")
	c.Backend.Model = v.GetString("backend.model")
	c.Backend.MaxOutputTokens = v.GetInt("backend.max_output_tokens")
	c.Backend.TimeoutMs = v.GetInt("backend.timeout_ms")

	c.TTS.URL = v.GetString("tts.url")
	c.TTS.AuthToken = v.GetString("tts.auth_token")
	c.TTS.Language = v.GetString("tts.language")
	c.TTS.TimeoutMs = v.GetInt("tts.timeout_ms")

	c.Voice.SampleRate = v.GetInt("voice.sample_rate")
	c.Voice.Channels = v.GetInt("voice.channels")
	c.Voice.CooldownMs = v.GetInt("voice.cooldown_ms")
	c.Voice.DedupWindowMs = v.GetInt("voice.dedup_window_ms")
	c.Voice.SilenceMs = v.GetInt("voice.silence_ms")
	c.Voice.MinTranscriptChars = v.GetInt("voice.min_transcript_chars")
	c.Voice.ReplyMaxChars = v.GetInt("voice.reply_max_chars")
	c.Voice.PlaybackStartWaitMs = v.GetInt("voice.playback_start_wait_ms")
	c.Voice.JoinWaitMs = v.GetInt("voice.join_wait_ms")

	c.Metrics.Addr = v.GetString("metrics.addr")

	return c
}

// Cooldown returns the post-reply cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Voice.CooldownMs) * time.Millisecond
}

// DedupWindow returns the duplicate-transcript suppression window.
func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.Voice.DedupWindowMs) * time.Millisecond
}

// Silence returns the trailing-silence threshold that finalizes an utterance.
func (c Config) Silence() time.Duration {
	return time.Duration(c.Voice.SilenceMs) * time.Millisecond
}

// STTTimeout returns the per-request recognition deadline.
func (c Config) STTTimeout() time.Duration {
	return time.Duration(c.STT.TimeoutMs) * time.Millisecond
}

// PlaybackStartWait bounds how long a reply may take to start playing.
func (c Config) PlaybackStartWait() time.Duration {
	return time.Duration(c.Voice.PlaybackStartWaitMs) * time.Millisecond
}

// JoinWait bounds the voice connection readiness wait.
func (c Config) JoinWait() time.Duration {
	return time.Duration(c.Voice.JoinWaitMs) * time.Millisecond
}
