package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-bridge/internal/logging"
)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "join",
		Description: "Join your current voice channel",
	},
	{
		Name:        "leave",
		Description: "Leave the voice channel and end voice chat",
	},
	{
		Name:        "say",
		Description: "Speak a line of text in the voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: "What to say",
				Required:    true,
			},
		},
	},
	{
		Name:        "voicechat",
		Description: "Control hands-free voice chat",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "state",
				Description: "on, off, or status",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "on", Value: "on"},
					{Name: "off", Value: "off"},
					{Name: "status", Value: "status"},
				},
			},
		},
	},
}

// registerCommands overwrites the command set. When DISCORD_GUILD_ID is set
// the commands register instantly in that guild; otherwise they register
// globally and propagate on Discord's schedule.
func (b *bot) registerCommands() error {
	appID := b.cfg.Discord.AppID
	if appID == "" {
		appID = b.dg.State.User.ID
	}
	_, err := b.dg.ApplicationCommandBulkOverwrite(appID, b.cfg.Discord.GuildID, commands)
	if err == nil {
		logging.Infow("slash commands registered", "guild.id", b.cfg.Discord.GuildID)
	}
	return err
}

func (b *bot) handleInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := ic.ApplicationCommandData()

	var reply string
	var err error
	switch data.Name {
	case "join":
		err = b.joinMemberVoice(ic)
		if err == nil {
			reply = "Joined your voice channel."
		}
	case "leave":
		b.leaveVoice(ic.GuildID)
		reply = "Left the voice channel."
	case "say":
		text := data.Options[0].StringValue()
		err = b.ctrl.Speak(context.Background(), text)
		if err == nil {
			reply = "Said it."
		}
	case "voicechat":
		reply, err = b.handleVoiceChat(ic, data.Options[0].StringValue())
	default:
		return
	}

	if err != nil {
		logging.Warnw("command failed", "command", data.Name, "err", err)
		reply = "Something went wrong: " + err.Error()
	}
	respErr := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if respErr != nil {
		logging.Warnw("interaction respond failed", "command", data.Name, "err", respErr)
	}
}

func (b *bot) handleVoiceChat(ic *discordgo.InteractionCreate, state string) (string, error) {
	guildID := ic.GuildID
	userID := interactionUserID(ic)

	switch state {
	case "on":
		if err := b.joinMemberVoice(ic); err != nil {
			return "", err
		}
		b.ctrl.Start(guildID, userID)
		return "Voice chat is on. Just talk; I'll answer.", nil
	case "off":
		b.ctrl.Stop(guildID)
		return "Voice chat is off.", nil
	case "status":
		st := b.ctrl.Status(guildID)
		if !st.Enabled {
			return "Voice chat is off.", nil
		}
		msg := fmt.Sprintf("Voice chat is on for <@%s>.", st.UserID)
		if st.LastTranscriptAge > 0 {
			msg += fmt.Sprintf(" Last heard %s ago.", st.LastTranscriptAge.Round(time.Second))
		}
		if st.CooldownRemaining > 0 {
			msg += fmt.Sprintf(" Cooling down for %s.", st.CooldownRemaining.Round(100*time.Millisecond))
		}
		return msg, nil
	default:
		return "", fmt.Errorf("unknown state %q", state)
	}
}

// joinMemberVoice connects to the caller's current voice channel, wiring the
// speaking handler and the inbound packet pump into the controller. Reuses an
// existing connection to the same channel.
func (b *bot) joinMemberVoice(ic *discordgo.InteractionCreate) error {
	guildID := ic.GuildID
	userID := interactionUserID(ic)
	if userID == "" {
		return errors.New("cannot determine caller")
	}

	channelID, err := b.memberVoiceChannel(guildID, userID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.vc != nil && b.vc.ChannelID == channelID {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return fmt.Errorf("voice join: %w", err)
	}
	if err := waitReady(vc, b.cfg.JoinWait()); err != nil {
		_ = vc.Disconnect()
		return err
	}

	vc.AddHandler(func(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		b.ctrl.HandleSpeakingUpdate(guildID, su)
	})
	go func() {
		for pkt := range vc.OpusRecv {
			b.ctrl.HandleOpusPacket(guildID, pkt.SSRC, pkt.Opus)
		}
	}()

	b.player.SetConnection(vc)
	b.mu.Lock()
	b.vc = vc
	b.mu.Unlock()
	logging.Infow("joined voice channel", "guild.id", guildID, "channel.id", channelID)
	return nil
}

func (b *bot) leaveVoice(guildID string) {
	b.ctrl.Stop(guildID)
	b.mu.Lock()
	vc := b.vc
	b.vc = nil
	b.mu.Unlock()
	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			logging.Warnw("voice disconnect error", "err", err)
		}
	}
}

// memberVoiceChannel looks up the voice channel userID currently occupies.
func (b *bot) memberVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("guild lookup: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", errors.New("you need to be in a voice channel first")
}

// waitReady polls the connection until the voice websocket reports ready.
func waitReady(vc *discordgo.VoiceConnection, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return errors.New("voice connection did not become ready in time")
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}
