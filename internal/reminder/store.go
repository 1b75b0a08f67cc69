package reminder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	logx "bumpbot/pkg/logx"
)

// Store is the durable persistence API for reminder records.
type Store interface {
	// Create atomically cancels any existing pending record for the guild and
	// inserts a new pending one. This is the only write path that creates
	// records, which is what keeps the single-pending-per-guild invariant.
	Create(ctx context.Context, p CreateParams) (*Record, error)

	FindByID(ctx context.Context, id string) (*Record, error)
	FindPendingByGuild(ctx context.Context, guildID string) (*Record, error)
	// FindAllPending returns pending records ordered by scheduled_at ascending.
	FindAllPending(ctx context.Context) ([]Record, error)

	// UpdateStatus transitions a pending record to the given status. Terminal
	// records are left untouched and an error is returned: sent and cancelled
	// are final.
	UpdateStatus(ctx context.Context, id string, status Status) error
	CancelByGuild(ctx context.Context, guildID string) (int64, error)
	CancelByGuildAndChannel(ctx context.Context, guildID, channelID string) (int64, error)

	// CleanupOld deletes sent/cancelled records whose updated_at is older than
	// the retention window. Pending records are never a deletion target.
	CleanupOld(ctx context.Context, retention time.Duration) (int64, error)
}

type SQLStore struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time
}

func NewSQLStore(db *sql.DB, log logx.Logger) *SQLStore {
	return &SQLStore{db: db, log: log, now: time.Now}
}

const recordCols = `id, guild_id, channel_id, message_id, panel_message_id, service_name, scheduled_at, status, created_at, updated_at`

func (s *SQLStore) Create(ctx context.Context, p CreateParams) (*Record, error) {
	now := s.now()
	rec := &Record{
		ID:             uuid.NewString(),
		GuildID:        p.GuildID,
		ChannelID:      p.ChannelID,
		MessageID:      p.MessageID,
		PanelMessageID: p.PanelMessageID,
		ServiceName:    p.ServiceName,
		ScheduledAt:    p.ScheduledAt,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("create", p.GuildID, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Supersede any pending record first, inside the same transaction.
	_, err = tx.ExecContext(ctx,
		`UPDATE reminders SET status = ?, updated_at = ? WHERE guild_id = ? AND status = ?`,
		StatusCancelled, now.UnixMilli(), p.GuildID, StatusPending,
	)
	if err != nil {
		return nil, storeErr("create: supersede pending", p.GuildID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reminders(`+recordCols+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.GuildID, rec.ChannelID,
		nullStr(rec.MessageID), nullStr(rec.PanelMessageID), nullStr(rec.ServiceName),
		rec.ScheduledAt.UnixMilli(), rec.Status, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, storeErr("create: insert", p.GuildID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("create: commit", p.GuildID, err)
	}
	return rec, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM reminders WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find by id", "", err)
	}
	return rec, nil
}

func (s *SQLStore) FindPendingByGuild(ctx context.Context, guildID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM reminders
		 WHERE guild_id = ? AND status = ?
		 ORDER BY scheduled_at DESC LIMIT 1`,
		guildID, StatusPending)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find pending by guild", guildID, err)
	}
	return rec, nil
}

func (s *SQLStore) FindAllPending(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordCols+` FROM reminders
		 WHERE status = ? ORDER BY scheduled_at ASC`,
		StatusPending)
	if err != nil {
		return nil, storeErr("find all pending", "", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("find all pending: scan", "", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find all pending", "", err)
	}
	return out, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, s.now().UnixMilli(), id, StatusPending)
	if err != nil {
		return storeErr("update status", "", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr("update status", "", sql.ErrNoRows)
	}
	return nil
}

func (s *SQLStore) CancelByGuild(ctx context.Context, guildID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ?, updated_at = ? WHERE guild_id = ? AND status = ?`,
		StatusCancelled, s.now().UnixMilli(), guildID, StatusPending)
	if err != nil {
		return 0, storeErr("cancel by guild", guildID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLStore) CancelByGuildAndChannel(ctx context.Context, guildID, channelID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ?, updated_at = ?
		 WHERE guild_id = ? AND channel_id = ? AND status = ?`,
		StatusCancelled, s.now().UnixMilli(), guildID, channelID, StatusPending)
	if err != nil {
		return 0, storeErr("cancel by guild and channel", guildID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLStore) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE status IN (?, ?) AND updated_at < ?`,
		StatusSent, StatusCancelled, cutoff)
	if err != nil {
		return 0, storeErr("cleanup old", "", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                        Record
		messageID, panelID, svc    sql.NullString
		scheduled, created, update int64
	)
	err := row.Scan(
		&rec.ID, &rec.GuildID, &rec.ChannelID,
		&messageID, &panelID, &svc,
		&scheduled, &rec.Status, &created, &update,
	)
	if err != nil {
		return nil, err
	}
	rec.MessageID = messageID.String
	rec.PanelMessageID = panelID.String
	rec.ServiceName = svc.String
	rec.ScheduledAt = time.UnixMilli(scheduled)
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(update)
	return &rec, nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
