package ledger

import (
	"context"
	"sync"

	"spendbot/internal/core"
)

// MemoryStore is a Repository living only in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data core.LedgerData
	// FailWrites makes every write return ErrPersist.
	FailWrites bool
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: core.LedgerData{}}
}

func (s *MemoryStore) Load(_ context.Context) core.LedgerData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneData(s.data)
}

func (s *MemoryStore) Save(_ context.Context, data core.LedgerData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrPersist
	}
	s.data = cloneData(data)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, userID int64) []core.ExpenseRecord {
	return s.User(ctx, userID).Spendings
}

func (s *MemoryStore) User(_ context.Context, userID int64) core.UserLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.data, userID).Clone()
}

func (s *MemoryStore) MergeAppend(_ context.Context, userID int64, entries []core.ExpenseRecord) (core.UserLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return core.UserLedger{}, ErrPersist
	}
	u := appendEntries(lookup(s.data, userID), entries)
	s.data[userID] = u
	return u.Clone(), nil
}

func (s *MemoryStore) SetAnchor(_ context.Context, userID int64, menuID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrPersist
	}
	u := lookup(s.data, userID)
	u.MenuID = menuID
	s.data[userID] = u
	return nil
}

func cloneData(in core.LedgerData) core.LedgerData {
	out := make(core.LedgerData, len(in))
	for id, u := range in {
		out[id] = u.Clone()
	}
	return out
}
