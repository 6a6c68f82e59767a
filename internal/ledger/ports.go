// Package ledger holds the durable per-user expense history.
//
// Every backend keeps the same contract: reads never fail the caller and
// history only grows through MergeAppend.
package ledger

import (
	"context"
	"errors"

	"spendbot/internal/core"
)

// ErrPersist wraps every failure to write the ledger.
var ErrPersist = errors.New("persist ledger")

// Repository is the port the conversation and reporting layers depend on.
type Repository interface {
	// Load returns the whole map. A missing, empty or unreadable store yields
	// an empty map; the problem is logged, not returned.
	Load(ctx context.Context) core.LedgerData

	// Save replaces the stored contents with data.
	Save(ctx context.Context, data core.LedgerData) error

	// History returns the confirmed records of a user, oldest first.
	History(ctx context.Context, userID int64) []core.ExpenseRecord

	// User returns the stored entry of a user or core.NewUserLedger().
	User(ctx context.Context, userID int64) core.UserLedger

	// MergeAppend appends entries after the existing history of userID and
	// returns the resulting ledger entry.
	MergeAppend(ctx context.Context, userID int64, entries []core.ExpenseRecord) (core.UserLedger, error)

	// SetAnchor records the message id of the user's menu.
	SetAnchor(ctx context.Context, userID int64, menuID int) error
}

func appendEntries(u core.UserLedger, entries []core.ExpenseRecord) core.UserLedger {
	out := u.Clone()
	out.Spendings = append(out.Spendings, entries...)
	return out
}

func lookup(data core.LedgerData, userID int64) core.UserLedger {
	if u, ok := data[userID]; ok {
		if u.Spendings == nil {
			u.Spendings = []core.ExpenseRecord{}
		}
		return u
	}
	return core.NewUserLedger()
}
