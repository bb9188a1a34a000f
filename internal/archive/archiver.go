// Package archive offloads aged dispatch-history rows from Postgres to
// S3-compatible cold storage as JSONL objects.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// batchSize bounds how many rows one JSONL object carries.
const batchSize = 5000

// Archiver moves notification archive rows older than the retention window to
// cold storage, then deletes them from Postgres.
type Archiver struct {
	archive       domain.NotificationArchive
	blob          domain.BlobWriter
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewArchiver creates a new Archiver.
func NewArchiver(archive domain.NotificationArchive, blob domain.BlobWriter, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		archive:       archive,
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// archivedRow is the JSONL line format written to cold storage.
type archivedRow struct {
	ID           int64     `json:"id"`
	Role         string    `json:"role"`
	CycleID      string    `json:"cycleId"`
	RecordID     string    `json:"recordId"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	OrderID      string    `json:"orderId"`
	Amount       float64   `json:"amount"`
	Address      string    `json:"address"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

// Run executes a single archive run. Rows older than the retention window are
// read oldest-first in batches; each batch is uploaded as one JSONL object and
// deleted only after the upload succeeds, so an interrupted run loses nothing.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var total int64
	for {
		rows, err := a.archive.ListBefore(ctx, cutoff, batchSize)
		if err != nil {
			return fmt.Errorf("archive: list rows before %v: %w", cutoff, err)
		}
		if len(rows) == 0 {
			break
		}

		key := a.objectKey(rows[0].DispatchedAt)
		body, err := encodeJSONL(rows)
		if err != nil {
			return fmt.Errorf("archive: encode batch: %w", err)
		}
		if err := a.blob.Put(ctx, key, bytes.NewReader(body), "application/x-ndjson"); err != nil {
			return fmt.Errorf("archive: upload %s: %w", key, err)
		}

		// Rows are oldest-first, so everything dispatched before the last
		// row's timestamp is in this upload.
		batchEnd := rows[len(rows)-1].DispatchedAt.Add(time.Nanosecond)
		deleted, err := a.archive.DeleteBefore(ctx, batchEnd)
		if err != nil {
			return fmt.Errorf("archive: delete rows before %v: %w", batchEnd, err)
		}

		total += deleted
		a.logger.Info("archived batch",
			slog.String("object", key),
			slog.Int("rows", len(rows)),
			slog.Int64("deleted", deleted),
		)

		if len(rows) < batchSize {
			break
		}
	}

	a.logger.Info("archive run complete", slog.Int64("rows_archived", total))
	return nil
}

// objectKey builds the cold-storage key for a batch starting at the given
// dispatch time, e.g. "notifications/2026/06/notifications-20260615T030405.jsonl".
func (a *Archiver) objectKey(start time.Time) string {
	return fmt.Sprintf("notifications/%04d/%02d/notifications-%s.jsonl",
		start.Year(), start.Month(), start.UTC().Format("20060102T150405"))
}

func encodeJSONL(rows []domain.ArchivedNotification) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(archivedRow{
			ID:           r.ID,
			Role:         string(r.Role),
			CycleID:      r.CycleID,
			RecordID:     r.RecordID,
			Type:         string(r.Type),
			Title:        r.Title,
			Message:      r.Message,
			OrderID:      r.OrderID,
			Amount:       r.Amount,
			Address:      r.Address,
			DispatchedAt: r.DispatchedAt,
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RunCron runs the archiver on a cron schedule until the context is cancelled.
// It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week"
//
// Example: "0 3 1 * *" runs at 3:00 AM on the 1st of every month.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.now())
		if err != nil {
			return fmt.Errorf("archive: parse cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
