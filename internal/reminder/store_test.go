package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bumpbot/internal/storage"
	logx "bumpbot/pkg/logx"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "bump.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db, logx.Nop())
}

func TestCreateSupersedesPending(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Now()

	first, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c1", ScheduledAt: now.Add(2 * time.Hour), ServiceName: "Disboard"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c2", ScheduledAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find first: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("first record status = %q, want cancelled", got.Status)
	}

	pending, err := st.FindPendingByGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if pending == nil || pending.ID != second.ID {
		t.Fatalf("pending = %+v, want record %s", pending, second.ID)
	}
	if pending.ChannelID != "c2" {
		t.Fatalf("pending channel = %q, want c2", pending.ChannelID)
	}

	all, err := st.FindAllPending(ctx)
	if err != nil {
		t.Fatalf("find all pending: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one pending record, got %d", len(all))
	}
}

func TestFindAllPendingOrdered(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Now()

	for i, g := range []string{"g3", "g1", "g2"} {
		_, err := st.Create(ctx, CreateParams{
			GuildID:     g,
			ChannelID:   "c",
			ScheduledAt: now.Add(time.Duration(3-i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create %s: %v", g, err)
		}
	}

	all, err := st.FindAllPending(ctx)
	if err != nil {
		t.Fatalf("find all pending: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ScheduledAt.Before(all[i-1].ScheduledAt) {
			t.Fatalf("pending not ordered by scheduled_at: %v before %v",
				all[i].ScheduledAt, all[i-1].ScheduledAt)
		}
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	st := openTestStore(t)
	err := st.UpdateStatus(context.Background(), "missing", StatusSent)
	if err == nil {
		t.Fatalf("expected error updating unknown record")
	}
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %T: %v", err, err)
	}
}

func TestCancelByGuildAndChannel(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Now()

	if _, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c1", ScheduledAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Create(ctx, CreateParams{GuildID: "g2", ChannelID: "c1", ScheduledAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := st.CancelByGuildAndChannel(ctx, "g1", "c1")
	if err != nil {
		t.Fatalf("cancel by guild+channel: %v", err)
	}
	if n != 1 {
		t.Fatalf("cancelled %d records, want 1", n)
	}

	if p, _ := st.FindPendingByGuild(ctx, "g1"); p != nil {
		t.Fatalf("g1 still has pending record %+v", p)
	}
	if p, _ := st.FindPendingByGuild(ctx, "g2"); p == nil {
		t.Fatalf("g2 lost its pending record")
	}
}

func TestUpdateStatusTerminalIsSticky(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	rec, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c1", ScheduledAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.UpdateStatus(ctx, rec.ID, StatusSent); err != nil {
		t.Fatalf("update to sent: %v", err)
	}

	// sent and cancelled are final; a late writer must not flip them.
	if err := st.UpdateStatus(ctx, rec.ID, StatusCancelled); err == nil {
		t.Fatalf("expected error updating terminal record")
	}
	got, err := st.FindByID(ctx, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("find: %v %v", got, err)
	}
	if got.Status != StatusSent {
		t.Fatalf("status = %q, want sent to stick", got.Status)
	}
}

func TestCancelByGuild(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	rec, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c1", ScheduledAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := st.CancelByGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("cancel by guild: %v", err)
	}
	if n != 1 {
		t.Fatalf("cancelled %d records, want 1", n)
	}
	got, err := st.FindByID(ctx, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("find: %v %v", got, err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	// Idempotent on an empty guild.
	if n, err := st.CancelByGuild(ctx, "g1"); err != nil || n != 0 {
		t.Fatalf("second cancel: n=%d err=%v", n, err)
	}
	if p, err := st.FindPendingByGuild(ctx, "g1"); err != nil || p != nil {
		t.Fatalf("pending after cancel = %+v err=%v", p, err)
	}
}

func TestCleanupOldSkipsPending(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	base := time.Now().Add(-72 * time.Hour)
	st.now = func() time.Time { return base }

	oldPending, err := st.Create(ctx, CreateParams{GuildID: "g1", ChannelID: "c1", ScheduledAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sent, err := st.Create(ctx, CreateParams{GuildID: "g2", ChannelID: "c1", ScheduledAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.UpdateStatus(ctx, sent.ID, StatusSent); err != nil {
		t.Fatalf("update status: %v", err)
	}

	st.now = time.Now
	n, err := st.CleanupOld(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleanup deleted %d records, want 1", n)
	}

	if got, _ := st.FindByID(ctx, sent.ID); got != nil {
		t.Fatalf("terminal record survived cleanup: %+v", got)
	}
	if got, _ := st.FindByID(ctx, oldPending.ID); got == nil {
		t.Fatalf("pending record was deleted by cleanup")
	}
}
