package reminder

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s == StatusSent || s == StatusCancelled }

// Record is the durable shape of one reminder. At most one record per guild
// may be pending at any time; the store's Create enforces this atomically.
type Record struct {
	ID      string
	GuildID string

	// ChannelID is the delivery target. Immutable after creation.
	ChannelID string

	// MessageID and PanelMessageID are optional correlation ids used by the
	// delivery task; opaque here.
	MessageID      string
	PanelMessageID string

	// ServiceName is a free-form tag, e.g. "Disboard". Opaque here.
	ServiceName string

	// ScheduledAt is when the reminder should fire. Immutable: a new arm
	// supersedes the old record instead of rescheduling it.
	ScheduledAt time.Time

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateParams struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	PanelMessageID string
	ServiceName    string
	ScheduledAt    time.Time
}
