package reminder

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bumpbot/internal/timer"
	logx "bumpbot/pkg/logx"
)

// DeliveryTask performs the actual reminder delivery. Its error is the sole
// signal deciding the sent/cancelled transition.
type DeliveryTask func(ctx context.Context) error

// TaskFactory rebuilds a delivery task from a restored record's fields. It is
// supplied by the caller at startup and closes over whatever external
// resources real delivery needs.
type TaskFactory func(guildID, channelID, messageID, panelMessageID, serviceName string) DeliveryTask

type ArmRequest struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	PanelMessageID string
	ServiceName    string

	// Delay until the reminder fires, from now.
	Delay time.Duration
}

type armedEntry struct {
	jobID    string
	recordID string
}

// Coordinator owns the guild -> {job, record} mapping and is the consistency
// boundary between the in-memory timer registry and the durable store.
type Coordinator struct {
	log    logx.Logger
	timers *timer.Registry
	store  Store

	mu    sync.Mutex
	armed map[string]armedEntry
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewCoordinator(store Store, timers *timer.Registry, log logx.Logger) *Coordinator {
	return &Coordinator{
		log:    log,
		timers: timers,
		store:  store,
		armed:  map[string]armedEntry{},
		locks:  map[string]*sync.Mutex{},
		now:    time.Now,
	}
}

// guildLock serializes Arm/Cancel/restore work per guild, so two concurrent
// arms for the same guild cannot interleave their store round-trips.
func (c *Coordinator) guildLock(guildID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lk, ok := c.locks[guildID]
	if !ok {
		lk = &sync.Mutex{}
		c.locks[guildID] = lk
	}
	return lk
}

func jobID(guildID string) string { return "bump:" + guildID }

// Arm schedules a reminder for the guild, superseding any existing one. If
// the record cannot be persisted, nothing is armed and the error propagates:
// a reminder that only exists in memory would be lost by the next crash.
func (c *Coordinator) Arm(ctx context.Context, req ArmRequest, task DeliveryTask) (*Record, error) {
	lk := c.guildLock(req.GuildID)
	lk.Lock()
	defer lk.Unlock()

	if c.dropArmed(ctx, req.GuildID) {
		c.log.Info("reminder superseded", logx.String("guild_id", req.GuildID))
	}

	scheduledAt := c.now().Add(req.Delay)
	rec, err := c.store.Create(ctx, CreateParams{
		GuildID:        req.GuildID,
		ChannelID:      req.ChannelID,
		MessageID:      req.MessageID,
		PanelMessageID: req.PanelMessageID,
		ServiceName:    req.ServiceName,
		ScheduledAt:    scheduledAt,
	})
	if err != nil {
		return nil, err
	}

	c.armRecord(rec, task)
	c.log.Info("reminder armed",
		logx.String("guild_id", rec.GuildID),
		logx.String("channel_id", rec.ChannelID),
		logx.Time("scheduled_at", rec.ScheduledAt),
	)
	return rec, nil
}

// armRecord publishes the map entry, then registers the tracked one-shot.
// Callers hold the guild lock. The entry must exist before the job does: an
// immediately-firing job deletes its own entry, and publishing afterwards
// would leave that deletion a no-op and the entry stale.
func (c *Coordinator) armRecord(rec *Record, task DeliveryTask) {
	id := jobID(rec.GuildID)
	c.mu.Lock()
	c.armed[rec.GuildID] = armedEntry{jobID: id, recordID: rec.ID}
	c.mu.Unlock()
	c.timers.RegisterOnce(id, rec.ScheduledAt.Sub(c.now()), c.tracked(rec.GuildID, rec.ID, task))
}

// tracked wraps a delivery task so that its outcome always lands in the
// durable record: sent on success, cancelled on failure, never left pending.
// The registry always sees a clean completion.
func (c *Coordinator) tracked(guildID, recordID string, task DeliveryTask) timer.Task {
	return func(ctx context.Context) error {
		// The one-shot has fired (or is firing synchronously on restore);
		// the map entry, if it still points at this record, is now stale.
		c.mu.Lock()
		if e, ok := c.armed[guildID]; ok && e.recordID == recordID {
			delete(c.armed, guildID)
		}
		c.mu.Unlock()

		status := StatusSent
		if err := task(ctx); err != nil {
			c.log.Warn("reminder delivery failed",
				logx.String("guild_id", guildID), logx.Err(err))
			status = StatusCancelled
		}

		if err := c.store.UpdateStatus(ctx, recordID, status); err != nil {
			c.log.Warn("reminder status update failed",
				logx.String("guild_id", guildID),
				logx.String("status", string(status)),
				logx.Err(err))
		}
		if status == StatusSent {
			c.log.Info("reminder delivered", logx.String("guild_id", guildID))
		}
		return nil
	}
}

// Cancel disarms the guild's reminder. It reports whether one was armed.
func (c *Coordinator) Cancel(ctx context.Context, guildID string) bool {
	lk := c.guildLock(guildID)
	lk.Lock()
	defer lk.Unlock()

	if !c.dropArmed(ctx, guildID) {
		return false
	}
	c.log.Info("reminder cancelled", logx.String("guild_id", guildID))
	return true
}

// dropArmed removes the timer and the map entry BEFORE the durable write.
// If the write then fails we are left with no phantom timer and a pending
// record that restart-time reconciliation will pick up, which is the safe
// side of the inconsistency.
func (c *Coordinator) dropArmed(ctx context.Context, guildID string) bool {
	c.mu.Lock()
	e, ok := c.armed[guildID]
	if ok {
		delete(c.armed, guildID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	c.timers.Cancel(e.jobID)
	if err := c.store.UpdateStatus(ctx, e.recordID, StatusCancelled); err != nil {
		c.log.Warn("reminder cancellation not persisted",
			logx.String("guild_id", guildID), logx.Err(err))
	}
	return true
}

// RestoreOnStartup reconciles durable pending records with the empty
// post-restart registry. It returns the number of reminders restored
// (delivered immediately plus re-armed).
func (c *Coordinator) RestoreOnStartup(ctx context.Context, factory TaskFactory) (int, error) {
	pending, err := c.store.FindAllPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// Normally at most one pending record exists per guild; a crash between
	// the supersede and the insert can leave stragglers. Keep the newest.
	latest := map[string]Record{}
	var dupes []Record
	for _, rec := range pending {
		cur, ok := latest[rec.GuildID]
		switch {
		case !ok:
			latest[rec.GuildID] = rec
		case rec.ScheduledAt.After(cur.ScheduledAt):
			dupes = append(dupes, cur)
			latest[rec.GuildID] = rec
		default:
			dupes = append(dupes, rec)
		}
	}

	// Discard stragglers in parallel before any rearming, so rescheduling
	// observes a deduplicated view.
	if len(dupes) > 0 {
		var g errgroup.Group
		for _, d := range dupes {
			d := d
			g.Go(func() error {
				if err := c.store.UpdateStatus(ctx, d.ID, StatusCancelled); err != nil {
					c.log.Warn("duplicate pending reminder not discarded",
						logx.String("guild_id", d.GuildID), logx.Err(err))
				}
				return nil
			})
		}
		_ = g.Wait()
		c.log.Info("discarded duplicate pending reminders", logx.Int("count", len(dupes)))
	}

	restored := 0
	for _, rec := range latest {
		task := factory(rec.GuildID, rec.ChannelID, rec.MessageID, rec.PanelMessageID, rec.ServiceName)

		lk := c.guildLock(rec.GuildID)
		lk.Lock()
		if rec.ScheduledAt.After(c.now()) {
			c.armRecord(&rec, task)
			c.log.Info("reminder restored",
				logx.String("guild_id", rec.GuildID),
				logx.Time("scheduled_at", rec.ScheduledAt))
		} else {
			// Overdue: deliver right away, synchronously, including the
			// terminal status transition.
			_ = c.tracked(rec.GuildID, rec.ID, task)(ctx)
			c.log.Info("overdue reminder delivered on restore",
				logx.String("guild_id", rec.GuildID))
		}
		lk.Unlock()
		restored++
	}
	return restored, nil
}

// ClearAll cancels every armed guild in parallel. Individual durable-write
// failures are logged by Cancel and do not abort the others.
func (c *Coordinator) ClearAll(ctx context.Context) {
	c.mu.Lock()
	guilds := make([]string, 0, len(c.armed))
	for g := range c.armed {
		guilds = append(guilds, g)
	}
	c.mu.Unlock()

	var g errgroup.Group
	for _, guildID := range guilds {
		guildID := guildID
		g.Go(func() error {
			c.Cancel(ctx, guildID)
			return nil
		})
	}
	_ = g.Wait()
	if len(guilds) > 0 {
		c.log.Info("cleared armed reminders", logx.Int("count", len(guilds)))
	}
}

// Armed reports the record id currently armed for the guild, if any.
func (c *Coordinator) Armed(guildID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.armed[guildID]
	return e.recordID, ok
}
