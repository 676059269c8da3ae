//go:build opus
// +build opus

package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/hraban/opus"
)

const frameSamples = 960 // 20ms at 48kHz, per channel

// DiscordPlayer speaks prepared audio into a Discord voice connection. The
// synthesis service returns container audio (mp3/ogg), so frames are first
// decoded to raw PCM through ffmpeg, then opus-encoded onto OpusSend.
type DiscordPlayer struct {
	sampleRate int
	channels   int
	startWait  time.Duration
	ffmpegPath string

	mu            sync.Mutex
	vc            *discordgo.VoiceConnection
	cancelCurrent context.CancelFunc
}

func NewDiscordPlayer(sampleRate, channels int, startWait time.Duration, ffmpegPath string) *DiscordPlayer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &DiscordPlayer{
		sampleRate: sampleRate,
		channels:   channels,
		startWait:  startWait,
		ffmpegPath: ffmpegPath,
	}
}

// SetConnection points the player at the active voice connection.
func (p *DiscordPlayer) SetConnection(vc *discordgo.VoiceConnection) {
	p.mu.Lock()
	p.vc = vc
	p.mu.Unlock()
}

// Play decodes, encodes, and streams audio, preempting any active playback.
func (p *DiscordPlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	if p.cancelCurrent != nil {
		p.cancelCurrent()
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancelCurrent = cancel
	vc := p.vc
	p.mu.Unlock()
	defer cancel()

	if vc == nil {
		return errors.New("no voice connection")
	}

	pcm, err := p.decodeToPCM(ctx, audio)
	if err != nil {
		return err
	}

	enc, err := opus.NewEncoder(p.sampleRate, p.channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	if err := vc.Speaking(true); err != nil {
		logging.Warnw("speaking(true) failed", "err", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			logging.Warnw("speaking(false) failed", "err", err)
		}
	}()

	samplesPerFrame := frameSamples * p.channels
	buf := make([]byte, 1024)
	first := true
	for off := 0; off < len(pcm); off += samplesPerFrame {
		end := off + samplesPerFrame
		if end > len(pcm) {
			break // drop the trailing partial frame
		}
		n, err := enc.Encode(pcm[off:end], buf)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		if first {
			// Bounded wait for playback to start so a wedged voice
			// connection fails the task instead of hanging the queue.
			select {
			case vc.OpusSend <- pkt:
				first = false
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.startWait):
				return errors.New("playback start timed out")
			}
			continue
		}
		select {
		case vc.OpusSend <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// decodeToPCM shells out to ffmpeg to turn container audio into raw
// interleaved s16le samples at the player's rate and channel count.
func (p *DiscordPlayer) decodeToPCM(ctx context.Context, audio []byte) ([]int16, error) {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(p.sampleRate),
		"-ac", strconv.Itoa(p.channels),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(audio)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	pcm := make([]int16, len(out)/2)
	for i := range pcm {
		pcm[i] = int16(uint16(out[2*i]) | uint16(out[2*i+1])<<8)
	}
	return pcm, nil
}
