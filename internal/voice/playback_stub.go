//go:build !opus
// +build !opus

package voice

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordPlayer stub for builds without libopus. The session engine and its
// tests use the Player interface with fakes; real playback needs the opus
// build tag.
type DiscordPlayer struct{}

func NewDiscordPlayer(sampleRate, channels int, startWait time.Duration, ffmpegPath string) *DiscordPlayer {
	return &DiscordPlayer{}
}

func (p *DiscordPlayer) SetConnection(vc *discordgo.VoiceConnection) {}

func (p *DiscordPlayer) Play(ctx context.Context, audio []byte) error {
	return errors.New("playback requires the opus build tag")
}
