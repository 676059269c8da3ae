package voice

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
	"github.com/discord-voice-bridge/internal/stt"
)

// ReplyBackend produces a conversational reply for a transcript.
type ReplyBackend interface {
	Ask(ctx context.Context, input, sessionUser string) (string, error)
}

// Synthesizer turns reply text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Options carries the tunables of the utterance pipeline. Zero values are
// replaced with the production defaults by NewController.
type Options struct {
	Cooldown           time.Duration
	DedupWindow        time.Duration
	Silence            time.Duration
	MinTranscriptChars int
	ReplyMaxChars      int
	SampleRate         int
	Channels           int
	NewDecoder         func() (Decoder, error)
}

func (o *Options) applyDefaults() {
	if o.Cooldown == 0 {
		o.Cooldown = 800 * time.Millisecond
	}
	if o.DedupWindow == 0 {
		o.DedupWindow = 5000 * time.Millisecond
	}
	if o.Silence == 0 {
		o.Silence = 650 * time.Millisecond
	}
	if o.MinTranscriptChars == 0 {
		o.MinTranscriptChars = 4
	}
	if o.ReplyMaxChars == 0 {
		o.ReplyMaxChars = 180
	}
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
	if o.Channels == 0 {
		o.Channels = 2
	}
	if o.NewDecoder == nil {
		sr, ch := o.SampleRate, o.Channels
		o.NewDecoder = func() (Decoder, error) { return NewOpusDecoder(sr, ch) }
	}
}

// Controller owns the session registry and drives the capture-transcribe-reply
// pipeline. Discord event handlers and slash commands call into it; it never
// touches discordgo beyond the speaking-update payload type.
type Controller struct {
	opts      Options
	registry  *Registry
	backend   ReplyBackend
	synth     Synthesizer
	player    Player
	newWorker func() stt.Transcriber

	now func() time.Time

	mu        sync.Mutex
	ssrcUsers map[uint32]string
}

func NewController(opts Options, backend ReplyBackend, synth Synthesizer, player Player, newWorker func() stt.Transcriber) *Controller {
	opts.applyDefaults()
	return &Controller{
		opts:      opts,
		registry:  NewRegistry(),
		backend:   backend,
		synth:     synth,
		player:    player,
		newWorker: newWorker,
		now:       time.Now,
		ssrcUsers: make(map[uint32]string),
	}
}

// Start enables voice chat in guildID for userID, replacing any existing
// session for that guild.
func (c *Controller) Start(guildID, userID string) *Session {
	if prev := c.registry.Remove(guildID); prev != nil {
		prev.Close()
	}

	sess := &Session{
		GuildID: guildID,
		UserID:  userID,
		Token:   fmt.Sprintf("discord-voice:%s:%s:%d", guildID, userID, c.now().UnixMilli()),
		worker:  c.newWorker(),
		queue:   NewTaskQueue(),
		enabled: true,
	}
	sess.seg = NewSegmenter(c.opts.Silence, c.opts.Channels, c.opts.NewDecoder, func(pcm []byte) {
		if !sess.Enabled() {
			return
		}
		if sess.queue.Enqueue(func() { c.processUtterance(sess, pcm) }) {
			metrics.UtterancesQueued.Inc()
		}
	})

	c.registry.Put(sess)
	logging.Infow("voice session started", logging.SessionFields(guildID, userID)...)
	return sess
}

// Stop disables and tears down the session for guildID. No-op when absent.
func (c *Controller) Stop(guildID string) {
	if sess := c.registry.Remove(guildID); sess != nil {
		sess.Close()
	}
}

// Status describes the session for a guild.
type Status struct {
	Enabled           bool
	UserID            string
	LastTranscriptAge time.Duration
	CooldownRemaining time.Duration
}

func (c *Controller) Status(guildID string) Status {
	sess := c.registry.Get(guildID)
	if sess == nil {
		return Status{}
	}
	now := c.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	st := Status{Enabled: sess.enabled, UserID: sess.UserID}
	if !sess.lastTranscriptAt.IsZero() {
		st.LastTranscriptAge = now.Sub(sess.lastTranscriptAt)
	}
	if now.Before(sess.cooldownUntil) {
		st.CooldownRemaining = sess.cooldownUntil.Sub(now)
	}
	return st
}

// Speak synthesizes and plays a one-shot line, outside any session pipeline.
func (c *Controller) Speak(ctx context.Context, text string) error {
	clean := SanitizeReply(text, c.opts.ReplyMaxChars)
	if clean == "" {
		return fmt.Errorf("nothing to say after sanitizing")
	}
	audio, err := c.synth.Synthesize(ctx, clean)
	if err != nil {
		metrics.SynthesisErrors.Inc()
		return err
	}
	return c.player.Play(ctx, audio)
}

// HandleSpeakingUpdate gates capture starts: only the authorized speaker of an
// enabled, non-cooldown session opens a capture.
func (c *Controller) HandleSpeakingUpdate(guildID string, su *discordgo.VoiceSpeakingUpdate) {
	ssrc := uint32(su.SSRC)
	c.mu.Lock()
	c.ssrcUsers[ssrc] = su.UserID
	c.mu.Unlock()

	if !su.Speaking {
		return
	}
	sess := c.registry.Get(guildID)
	if sess == nil || !sess.Enabled() {
		return
	}
	if su.UserID != sess.UserID {
		metrics.CapturesIgnoredSpeaker.Inc()
		return
	}
	if sess.InCooldown(c.now()) {
		metrics.CapturesIgnoredCooldown.Inc()
		logging.Debugw("capture suppressed by cooldown", logging.SessionFields(guildID, su.UserID)...)
		return
	}
	if sess.seg.Open(ssrc) {
		metrics.CapturesOpened.Inc()
	}
}

// HandleOpusPacket routes a received voice frame to the session's segmenter.
// Frames whose SSRC is known to belong to another user are dropped before the
// segmenter sees them.
func (c *Controller) HandleOpusPacket(guildID string, ssrc uint32, frame []byte) {
	sess := c.registry.Get(guildID)
	if sess == nil || !sess.Enabled() {
		return
	}
	c.mu.Lock()
	user, known := c.ssrcUsers[ssrc]
	c.mu.Unlock()
	if known && user != sess.UserID {
		return
	}
	sess.seg.Push(ssrc, frame)
}

// Close tears down every session. Used during shutdown.
func (c *Controller) Close() {
	for _, sess := range c.registry.Drain() {
		sess.Close()
	}
}

// processUtterance runs on the session queue: transcribe, filter, ask the
// backend, synthesize, play. Filters drop the utterance silently (with a
// metric); pipeline errors are logged and the utterance is abandoned.
func (c *Controller) processUtterance(sess *Session, pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	fields := logging.SessionFields(sess.GuildID, sess.UserID)

	wavPath, err := stt.WriteTempWAV(pcm, c.opts.SampleRate, c.opts.Channels)
	if err != nil {
		logging.Errorw("temp wav write failed", append(fields, "err", err)...)
		return
	}
	defer os.Remove(wavPath)

	ctx := context.Background()
	text, err := sess.worker.Transcribe(ctx, wavPath)
	if err != nil {
		metrics.RecognitionErrors.Inc()
		logging.Errorw("transcription failed", append(fields, "err", err)...)
		return
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < c.opts.MinTranscriptChars {
		metrics.TranscriptsShort.Inc()
		return
	}

	now := c.now()
	norm := strings.ToLower(text)
	if sess.isDuplicate(norm, now, c.opts.DedupWindow) {
		metrics.TranscriptsDuplicate.Inc()
		logging.Debugw("duplicate transcript dropped", append(fields, "transcript", text)...)
		return
	}
	sess.markTranscript(norm, now)
	metrics.Transcripts.Inc()
	logging.Infow("transcript", append(fields, "text", text)...)

	reply, err := c.backend.Ask(ctx, text, sess.Token)
	if err != nil {
		metrics.BackendErrors.Inc()
		logging.Errorw("backend request failed", append(fields, "err", err)...)
		return
	}

	clean := SanitizeReply(reply, c.opts.ReplyMaxChars)
	if clean != "" {
		audio, err := c.synth.Synthesize(ctx, clean)
		if err != nil {
			metrics.SynthesisErrors.Inc()
			logging.Errorw("synthesis failed", append(fields, "err", err)...)
			return
		}
		if err := c.player.Play(ctx, audio); err != nil {
			logging.Errorw("playback failed", append(fields, "err", err)...)
			return
		}
		metrics.RepliesSpoken.Inc()
	}
	// Cooldown starts whether or not anything was spoken, so the next
	// capture does not pick up the tail of this exchange.
	sess.markReply(c.now(), c.opts.Cooldown)
}
