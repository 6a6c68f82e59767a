// Package sheets exports confirmed expenses as spreadsheet rows.
package sheets

import (
	"context"
	"time"

	"spendbot/internal/core"
)

// Row is one exported expense: date, time, user id, category, amount.
type Row struct {
	Date     string
	Time     string
	UserID   int64
	Category string
	Amount   core.Money
}

const (
	DateLayout = "02.01.2006"
	TimeLayout = "15:04"
)

// RowAppender appends rows at the end of an expense sheet.
type RowAppender interface {
	AppendRows(ctx context.Context, rows []Row) (updatedRange string, err error)
}

// RowFromRecord renders rec in loc.
func RowFromRecord(userID int64, rec core.ExpenseRecord, loc *time.Location) Row {
	if loc == nil {
		loc = time.Local
	}
	at := rec.OccurredAt.In(loc)
	return Row{
		Date:     at.Format(DateLayout),
		Time:     at.Format(TimeLayout),
		UserID:   userID,
		Category: rec.Category,
		Amount:   rec.Amount,
	}
}

// Values returns the row as sheet cell values.
func (r Row) Values() []any {
	return []any{r.Date, r.Time, r.UserID, r.Category, r.Amount.Decimal().InexactFloat64()}
}
