// Package worker runs the background consumers of confirmed-expense events.
package worker

import (
	"context"
	"fmt"
	"time"

	"spendbot/internal/amqp"
	"spendbot/internal/cache"
	"spendbot/internal/log"
	"spendbot/internal/sheets"
)

const (
	seenEvents   = 10000
	seenEventTTL = 24 * time.Hour
)

// ExportWorker appends every confirmed expense to a spreadsheet.
type ExportWorker struct {
	sheets sheets.RowAppender
	loc    *time.Location
	seen   *cache.LRUCache[struct{}]
	logger *log.Logger
}

func NewExportWorker(appender sheets.RowAppender, loc *time.Location, logger *log.Logger) *ExportWorker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		sheets: appender,
		loc:    loc,
		seen:   cache.NewLRUCache[struct{}](seenEvents, seenEventTTL),
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the processed-event cache for periodic sweeping.
func (w *ExportWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleConfirmed exports the entries of one event. Redelivered events that
// were already exported are acknowledged without writing rows again.
func (w *ExportWorker) HandleConfirmed(ctx context.Context, msg *amqp.ExpensesConfirmedMessage) error {
	logger := log.FromContextOr(ctx, w.logger).WithComponent(log.ComponentWorker)

	if w.exported(msg.EventID) {
		logger.InfoContext(ctx, "Skipping already exported event",
			log.FieldEventID, msg.EventID,
			log.FieldUserID, msg.UserID)
		return nil
	}

	records := msg.Records()
	rows := make([]sheets.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, sheets.RowFromRecord(msg.UserID, rec, w.loc))
	}

	logger.InfoContext(ctx, "Processing confirmed expenses",
		log.FieldEventID, msg.EventID,
		log.FieldUserID, msg.UserID,
		log.FieldCount, len(rows))

	updated, err := w.sheets.AppendRows(ctx, rows)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to export expenses",
			log.FieldEventID, msg.EventID,
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		return fmt.Errorf("export event %s: %w", msg.EventID, err)
	}

	if msg.EventID != "" {
		w.seen.Set(msg.EventID, struct{}{})
	}
	logger.InfoContext(ctx, "Exported expenses",
		log.FieldEventID, msg.EventID,
		log.FieldCount, len(rows),
		"range", updated)
	return nil
}

func (w *ExportWorker) exported(eventID string) bool {
	if eventID == "" {
		return false
	}
	_, ok := w.seen.Get(eventID)
	return ok
}
