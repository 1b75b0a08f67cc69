// Package discord adapts the Discord gateway for the bot: outbound sends for
// the log sink and reminder delivery, plus the inbound bump detector.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	kit "bumpbot/internal/transport"
	logx "bumpbot/pkg/logx"
)

type Session struct {
	s   *discordgo.Session
	log logx.Logger
}

func New(token string, log logx.Logger) (*Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages
	return &Session{s: s, log: log}, nil
}

// Raw exposes the underlying discordgo session for handler registration.
func (d *Session) Raw() *discordgo.Session { return d.s }

func (d *Session) Open() error {
	if err := d.s.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

func (d *Session) Close() error { return d.s.Close() }

// SendText implements transport.Adapter.
func (d *Session) SendText(ctx context.Context, to kit.ChannelTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	send := &discordgo.MessageSend{Content: text}
	if opt != nil && opt.SuppressMentions {
		send.AllowedMentions = &discordgo.MessageAllowedMentions{}
	}
	m, err := d.s.ChannelMessageSendComplex(to.ChannelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

// SendReminder posts the bump reminder into the channel, pinging roleID when
// set.
func (d *Session) SendReminder(ctx context.Context, channelID, roleID string) error {
	send := &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title:       "Time to bump!",
			Description: "The cooldown is over. Run `/bump` to bump the server again.",
			Color:       0x5865f2,
		},
	}
	if roleID != "" {
		send.Content = fmt.Sprintf("<@&%s>", roleID)
		send.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: []string{roleID}}
	}
	_, err := d.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	return err
}
