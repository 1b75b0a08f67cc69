package transport

import "context"

// ChannelTarget identifies a channel to deliver into.
type ChannelTarget struct {
	ChannelID string
}

// MessageRef points at a delivered message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

type SendOptions struct {
	// SuppressMentions strips role/user pings from the rendered text.
	SuppressMentions bool
}

// Adapter is the minimal send surface the core needs from a chat backend.
// The concrete implementation lives in internal/discord.
type Adapter interface {
	SendText(ctx context.Context, to ChannelTarget, text string, opt *SendOptions) (MessageRef, error)
}
