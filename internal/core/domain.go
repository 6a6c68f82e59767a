package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

type (
	// ExpenseRecord is a single confirmed or pending spending entry.
	ExpenseRecord struct {
		Category   string
		Amount     Money
		OccurredAt time.Time
	}

	// UserLedger is the durable state kept for one chat user.
	UserLedger struct {
		MenuID    int
		Spendings []ExpenseRecord
	}

	// LedgerData maps a user id to its ledger entry.
	LedgerData map[int64]UserLedger
)

var (
	ErrInvalidInput  = errors.New("expected 'category amount'")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
)

// category, one whitespace run, amount with at most two fractional digits
var expenseInputPattern = regexp.MustCompile(`^(\S+)\s+(\d+(?:[.,]\d{1,2})?)$`)

// NewUserLedger returns the ledger entry of a user that was never seen before.
func NewUserLedger() UserLedger {
	return UserLedger{MenuID: 0, Spendings: []ExpenseRecord{}}
}

// ParseExpenseInput interprets free text typed while entering spendings.
// The record is stamped with now.
func ParseExpenseInput(text string, now time.Time) (ExpenseRecord, error) {
	m := expenseInputPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ExpenseRecord{}, ErrInvalidInput
	}
	amount, err := ParseAmount(m[2])
	if err != nil {
		return ExpenseRecord{}, err
	}
	rec := ExpenseRecord{Category: m[1], Amount: amount, OccurredAt: now}
	if err := rec.Validate(); err != nil {
		return ExpenseRecord{}, err
	}
	return rec, nil
}

func (r ExpenseRecord) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone returns a copy whose history can be appended to without aliasing.
func (u UserLedger) Clone() UserLedger {
	out := UserLedger{MenuID: u.MenuID, Spendings: make([]ExpenseRecord, len(u.Spendings))}
	copy(out.Spendings, u.Spendings)
	return out
}

// Total sums the amounts of the given records.
func Total(records []ExpenseRecord) Money {
	var sum Money
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}
