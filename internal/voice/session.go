package voice

import (
	"sync"
	"time"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/stt"
)

// Session is the per-guild voice chat record: one authorized speaker, one
// recognition worker, one strictly-ordered processing queue. The worker
// process itself starts lazily on the first utterance.
type Session struct {
	GuildID string
	UserID  string
	Token   string // opaque backend correlation token

	worker stt.Transcriber
	queue  *TaskQueue
	seg    *Segmenter

	mu               sync.Mutex
	enabled          bool
	lastTranscript   string
	lastTranscriptAt time.Time
	lastReplyAt      time.Time
	cooldownUntil    time.Time
}

// Enabled reports whether the session still accepts new utterances.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// InCooldown reports whether new capture starts are suppressed, so the bot
// does not transcribe the tail of its own reply.
func (s *Session) InCooldown(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.cooldownUntil)
}

// isDuplicate reports whether norm equals the previous normalized transcript
// within the dedup window.
func (s *Session) isDuplicate(norm string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return norm != "" && norm == s.lastTranscript && now.Sub(s.lastTranscriptAt) < window
}

func (s *Session) markTranscript(norm string, now time.Time) {
	s.mu.Lock()
	s.lastTranscript = norm
	s.lastTranscriptAt = now
	s.mu.Unlock()
}

func (s *Session) markReply(now time.Time, cooldown time.Duration) {
	s.mu.Lock()
	s.lastReplyAt = now
	until := now.Add(cooldown)
	// cooldownUntil only moves forward
	if until.After(s.cooldownUntil) {
		s.cooldownUntil = until
	}
	s.mu.Unlock()
}

// Close disables the session, releases captures, stops the worker (failing
// in-flight recognition), and shuts the queue down. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = false
	s.mu.Unlock()

	s.seg.Close()
	s.worker.Stop()
	s.queue.Close()
	logging.Infow("voice session closed", logging.SessionFields(s.GuildID, s.UserID)...)
}
