package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"bumpbot/internal/reminder"
	logx "bumpbot/pkg/logx"
)

// Disboard's application id; its bump confirmations are the trigger event.
const disboardAppID = "302050872383242240"

const serviceDisboard = "Disboard"

// Bumper watches for successful bumps and arms the per-guild reminder.
type Bumper struct {
	log   logx.Logger
	sess  *Session
	coord *reminder.Coordinator
	store reminder.Store

	delay  time.Duration
	roleID string
}

func NewBumper(sess *Session, coord *reminder.Coordinator, store reminder.Store, delay time.Duration, roleID string, log logx.Logger) *Bumper {
	return &Bumper{
		log:    log,
		sess:   sess,
		coord:  coord,
		store:  store,
		delay:  delay,
		roleID: roleID,
	}
}

// Attach registers the gateway handlers.
func (b *Bumper) Attach() {
	b.sess.Raw().AddHandler(b.onMessageCreate)
	b.sess.Raw().AddHandler(b.onChannelDelete)
}

// TaskFactory rebuilds delivery tasks for restored reminders.
func (b *Bumper) TaskFactory() reminder.TaskFactory {
	return func(_, channelID, _, _, _ string) reminder.DeliveryTask {
		return b.deliveryTask(channelID)
	}
}

func (b *Bumper) deliveryTask(channelID string) reminder.DeliveryTask {
	return func(ctx context.Context) error {
		return b.sess.SendReminder(ctx, channelID, b.roleID)
	}
}

func (b *Bumper) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID != disboardAppID || m.GuildID == "" {
		return
	}
	if !isBumpDone(m.Message) {
		return
	}

	req := reminder.ArmRequest{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		ServiceName: serviceDisboard,
		Delay:       b.delay,
	}
	if _, err := b.coord.Arm(context.Background(), req, b.deliveryTask(m.ChannelID)); err != nil {
		b.log.Error("failed to arm bump reminder",
			logx.String("guild_id", m.GuildID),
			logx.String("channel_id", m.ChannelID),
			logx.Err(err))
	}
}

// isBumpDone recognizes Disboard's bump confirmation embed.
func isBumpDone(m *discordgo.Message) bool {
	for _, e := range m.Embeds {
		if e != nil && strings.Contains(e.Description, "Bump done") {
			return true
		}
	}
	return false
}

// onChannelDelete invalidates reminders whose delivery target just vanished.
func (b *Bumper) onChannelDelete(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil || c.GuildID == "" {
		return
	}
	ctx := context.Background()

	rec, err := b.store.FindPendingByGuild(ctx, c.GuildID)
	if err != nil {
		b.log.Warn("pending lookup failed on channel delete",
			logx.String("guild_id", c.GuildID), logx.Err(err))
		return
	}
	if rec != nil && rec.ChannelID == c.ID {
		b.coord.Cancel(ctx, c.GuildID)
	}
	// Sweep stragglers that were never armed in memory.
	if n, err := b.store.CancelByGuildAndChannel(ctx, c.GuildID, c.ID); err != nil {
		b.log.Warn("bulk cancel failed on channel delete",
			logx.String("guild_id", c.GuildID), logx.Err(err))
	} else if n > 0 {
		b.log.Info("invalidated reminders for deleted channel",
			logx.String("guild_id", c.GuildID),
			logx.String("channel_id", c.ID),
			logx.Int64("count", n))
	}
}
