// Package session tracks the transient conversation state of each user.
package session

import (
	"time"

	"spendbot/internal/core"
)

// Phase is the conversational mode a user is in.
type Phase int

const (
	Idle Phase = iota
	Menu
	EnteringSpendings
	Analytics
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Menu:
		return "menu"
	case EnteringSpendings:
		return "entering_spendings"
	case Analytics:
		return "analytics"
	default:
		return "unknown"
	}
}

// Session is the in-memory state of one user. Pending entries are never
// visible to reports until committed to the ledger.
type Session struct {
	UserID   int64
	Phase    Phase
	Pending  []core.ExpenseRecord
	AnchorID int
	LastSeen time.Time
}

// HasAnchor reports whether a menu message is known for the user.
func (s *Session) HasAnchor() bool {
	return s.AnchorID != 0
}

// BeginEntry starts a new spendings sub-session, discarding anything pending.
func (s *Session) BeginEntry() {
	s.Pending = nil
	s.Phase = EnteringSpendings
}

// AddPending appends a parsed record to the pending list.
func (s *Session) AddPending(rec core.ExpenseRecord) {
	s.Pending = append(s.Pending, rec)
}

// PendingSnapshot returns a copy of the pending records.
func (s *Session) PendingSnapshot() []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, len(s.Pending))
	copy(out, s.Pending)
	return out
}

// Committed is called once pending records reached the ledger. The session
// is left as if freshly loaded: nothing pending, back at the menu.
func (s *Session) Committed() {
	s.Pending = nil
	s.Phase = Menu
}
