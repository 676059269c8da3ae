package voice

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/google/uuid"
)

// Decoder turns one encoded audio frame into PCM samples. It reports the
// number of samples per channel written into pcm.
type Decoder interface {
	Decode(frame []byte, pcm []int16) (int, error)
}

// Sink receives a finalized utterance as PCM16LE bytes.
type Sink func(pcm []byte)

// capture accumulates decoded samples for one speaker stream (SSRC) from
// speaking-start until the trailing-silence window elapses.
type capture struct {
	ssrc          uint32
	dec           Decoder
	correlationID string
	samples       []int16
	started       time.Time
	lastFrame     time.Time
}

// Segmenter owns the per-speaker captures of one session. Frames are pushed
// as they arrive; a background flusher finalizes a capture once no frame has
// been seen for the silence window, emitting the utterance to the sink.
// Empty captures are released without emitting. A speaking-start for an SSRC
// that already has an open capture is ignored; the open capture keeps
// accumulating.
type Segmenter struct {
	silence    time.Duration
	channels   int
	newDecoder func() (Decoder, error)
	sink       Sink

	mu       sync.Mutex
	captures map[uint32]*capture

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSegmenter(silence time.Duration, channels int, newDecoder func() (Decoder, error), sink Sink) *Segmenter {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Segmenter{
		silence:    silence,
		channels:   channels,
		newDecoder: newDecoder,
		sink:       sink,
		captures:   make(map[uint32]*capture),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.flushExpired()
			}
		}
	}()
	return s
}

// Open starts a capture for ssrc. Returns false when a capture is already
// open for that SSRC or the decoder cannot be created.
func (s *Segmenter) Open(ssrc uint32) bool {
	s.mu.Lock()
	if _, ok := s.captures[ssrc]; ok {
		s.mu.Unlock()
		logging.Debugw("ignoring speaking-start for open capture", "ssrc", ssrc)
		return false
	}
	s.mu.Unlock()

	dec, err := s.newDecoder()
	if err != nil {
		logging.Errorw("decoder create failed", "ssrc", ssrc, "err", err)
		return false
	}
	now := time.Now()
	c := &capture{
		ssrc:          ssrc,
		dec:           dec,
		correlationID: uuid.NewString(),
		started:       now,
		lastFrame:     now,
	}
	s.mu.Lock()
	if _, ok := s.captures[ssrc]; ok {
		s.mu.Unlock()
		return false
	}
	s.captures[ssrc] = c
	s.mu.Unlock()
	logging.Debugw("capture opened", "ssrc", ssrc, "correlation_id", c.correlationID)
	return true
}

// Push decodes a frame into the open capture for ssrc. Frames for an SSRC
// without an open capture are dropped. On decode error the capture is
// released without emitting.
func (s *Segmenter) Push(ssrc uint32, frame []byte) {
	s.mu.Lock()
	c, ok := s.captures[ssrc]
	if !ok {
		s.mu.Unlock()
		return
	}

	pcm := make([]int16, 960*s.channels)
	n, err := c.dec.Decode(frame, pcm)
	if err != nil {
		delete(s.captures, ssrc)
		s.mu.Unlock()
		logging.Errorw("opus decode error", "ssrc", ssrc, "correlation_id", c.correlationID, "err", err)
		return
	}
	c.samples = append(c.samples, pcm[:n*s.channels]...)
	c.lastFrame = time.Now()
	s.mu.Unlock()
}

// ActiveCaptures reports the number of open captures.
func (s *Segmenter) ActiveCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

func (s *Segmenter) flushExpired() {
	now := time.Now()
	var done []*capture
	s.mu.Lock()
	for ssrc, c := range s.captures {
		if now.Sub(c.lastFrame) >= s.silence {
			delete(s.captures, ssrc)
			done = append(done, c)
		}
	}
	s.mu.Unlock()

	for _, c := range done {
		s.finalize(c)
	}
}

// finalize emits the accumulated samples to the sink. Empty utterances are
// discarded before reaching the processing queue.
func (s *Segmenter) finalize(c *capture) {
	if len(c.samples) == 0 {
		logging.Debugw("discarding empty capture", "ssrc", c.ssrc, "correlation_id", c.correlationID)
		return
	}
	pcm := make([]byte, len(c.samples)*2)
	for i, v := range c.samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(v))
	}
	durMs := (len(c.samples) / s.channels) * 1000 / 48000
	logging.Debugw("utterance finalized", "ssrc", c.ssrc, "correlation_id", c.correlationID, "samples", len(c.samples), "duration_ms", durMs)
	s.sink(pcm)
}

// Close releases all open captures without emitting and stops the flusher.
func (s *Segmenter) Close() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	n := len(s.captures)
	s.captures = make(map[uint32]*capture)
	s.mu.Unlock()
	if n > 0 {
		logging.Debugw("released captures on close", "count", n)
	}
}
