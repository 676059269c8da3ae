package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_captures_opened_total",
		Help: "Captures opened on speaking-start events",
	})

	CapturesIgnoredCooldown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_captures_ignored_cooldown_total",
		Help: "Speaking-start events ignored inside the post-reply cooldown",
	})

	CapturesIgnoredSpeaker = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_captures_ignored_speaker_total",
		Help: "Speaking-start events ignored for non-authorized speakers",
	})

	UtterancesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_utterances_queued_total",
		Help: "Finalized utterances enqueued for processing",
	})

	Transcripts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_transcripts_total",
		Help: "Non-empty transcripts returned by the recognition worker",
	})

	TranscriptsShort = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_transcripts_short_total",
		Help: "Transcripts dropped for being under the minimum length",
	})

	TranscriptsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_transcripts_duplicate_total",
		Help: "Transcripts suppressed by the duplicate window",
	})

	WorkerStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_worker_starts_total",
		Help: "Recognition worker process spawns, including respawns after a crash",
	})

	RecognitionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_recognition_errors_total",
		Help: "Recognition requests that failed (timeout, crash, stop)",
	})

	BackendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_backend_errors_total",
		Help: "Conversational backend calls that failed",
	})

	SynthesisErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_synthesis_errors_total",
		Help: "Synthesis or playback attempts that failed",
	})

	RepliesSpoken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_replies_spoken_total",
		Help: "Replies synthesized and played back",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_queue_depth",
		Help: "Utterance tasks waiting across all sessions",
	})
)
