package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/discord-voice-bridge/internal/config"
	"github.com/discord-voice-bridge/internal/llm"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/stt"
	"github.com/discord-voice-bridge/internal/tts"
	"github.com/discord-voice-bridge/internal/voice"
)

// bot ties the Discord session to the voice controller and tracks the single
// voice connection the process holds at a time.
type bot struct {
	dg     *discordgo.Session
	cfg    config.Config
	ctrl   *voice.Controller
	player *voice.DiscordPlayer

	mu sync.Mutex
	vc *discordgo.VoiceConnection
}

func main() {
	_ = godotenv.Load()
	sugar := logging.Init()
	defer func() { _ = logging.Sync() }()

	cfg := config.Load()
	if cfg.Discord.Token == "" {
		logging.FatalExitf("DISCORD_TOKEN required")
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logging.FatalExitf("discordgo.New failed", "err", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	player := voice.NewDiscordPlayer(cfg.Voice.SampleRate, cfg.Voice.Channels, cfg.PlaybackStartWait(), "")
	backend := llm.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Model, cfg.Backend.MaxOutputTokens, time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
	synth := tts.NewClient(cfg.TTS.URL, cfg.TTS.AuthToken, cfg.TTS.Language, time.Duration(cfg.TTS.TimeoutMs)*time.Millisecond)

	newWorker := func() stt.Transcriber {
		return stt.NewWorker(
			strings.Fields(cfg.STT.WorkerCmd),
			[]string{"STT_MODEL=" + cfg.STT.Model, "STT_COMPUTE=" + cfg.STT.Compute},
			cfg.STTTimeout(),
		)
	}

	ctrl := voice.NewController(voice.Options{
		Cooldown:           cfg.Cooldown(),
		DedupWindow:        cfg.DedupWindow(),
		Silence:            cfg.Silence(),
		MinTranscriptChars: cfg.Voice.MinTranscriptChars,
		ReplyMaxChars:      cfg.Voice.ReplyMaxChars,
		SampleRate:         cfg.Voice.SampleRate,
		Channels:           cfg.Voice.Channels,
	}, backend, synth, player, newWorker)

	b := &bot{dg: dg, cfg: cfg, ctrl: ctrl, player: player}

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logging.Infow("discord session ready", "user.id", r.User.ID, "user.name", r.User.Username)
	})
	dg.AddHandler(b.handleInteraction)

	if err := dg.Open(); err != nil {
		logging.FatalExitf("discord session open failed", "err", err)
	}

	if err := b.registerCommands(); err != nil {
		logging.FatalExitf("command registration failed", "err", err)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logging.Infow("metrics listener starting", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logging.Errorw("metrics listener failed", "err", err)
			}
		}()
	}

	logging.Infow("bot running, press ctrl-c to exit")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Infow("shutdown signal received")
	ctrl.Close()
	b.mu.Lock()
	if b.vc != nil {
		if err := b.vc.Disconnect(); err != nil {
			logging.Warnw("voice disconnect error", "err", err)
		}
		b.vc = nil
	}
	b.mu.Unlock()
	if err := dg.Close(); err != nil {
		logging.Warnw("discord session close error", "err", err)
	}
	if sugar != nil {
		_ = sugar.Sync()
	}
}
