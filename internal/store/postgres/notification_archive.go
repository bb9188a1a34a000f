package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablr/orderwatch/internal/domain"
)

// NotificationArchive implements domain.NotificationArchive using PostgreSQL.
// It is the durable dispatch history; the bounded feed in Redis can be
// rewritten, archive rows cannot.
type NotificationArchive struct {
	pool *pgxpool.Pool
}

// NewNotificationArchive creates a NotificationArchive backed by the given
// connection pool.
func NewNotificationArchive(pool *pgxpool.Pool) *NotificationArchive {
	return &NotificationArchive{pool: pool}
}

// Append inserts one archive row per dispatched record. Re-inserting the same
// (role, record id) pair is a no-op so a retried cycle cannot double-log.
func (a *NotificationArchive) Append(ctx context.Context, role domain.Role, cycleID string, recs []domain.NotificationRecord) error {
	if len(recs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO notification_archive
			(role, cycle_id, record_id, type, title, message, order_id, amount, address, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (role, record_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(query,
			string(role), cycleID, rec.ID, string(rec.Type),
			rec.Title, rec.Message, rec.OrderID, rec.Amount, rec.Address,
			rec.Timestamp,
		)
	}

	br := a.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append archive rows: %w", err)
		}
	}
	return nil
}

// ListBefore returns archive rows dispatched before the cutoff, oldest first,
// up to limit rows.
func (a *NotificationArchive) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ArchivedNotification, error) {
	const query = `
		SELECT id, role, cycle_id, record_id, type, title, message, order_id, amount, address, dispatched_at
		FROM notification_archive
		WHERE dispatched_at < $1
		ORDER BY dispatched_at ASC
		LIMIT $2`

	rows, err := a.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list archive rows: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchivedNotification
	for rows.Next() {
		var n domain.ArchivedNotification
		var role, typ string
		if err := rows.Scan(
			&n.ID, &role, &n.CycleID, &n.RecordID, &typ,
			&n.Title, &n.Message, &n.OrderID, &n.Amount, &n.Address,
			&n.DispatchedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan archive row: %w", err)
		}
		n.Role = domain.Role(role)
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list archive rows: %w", err)
	}
	return out, nil
}

// DeleteBefore removes archive rows dispatched before the cutoff and returns
// the number of rows deleted.
func (a *NotificationArchive) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx,
		"DELETE FROM notification_archive WHERE dispatched_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete archive rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.NotificationArchive = (*NotificationArchive)(nil)
