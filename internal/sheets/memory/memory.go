// Package memory keeps exported rows in process, for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "spendbot/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.Row

	// Err, when set, is returned by AppendRows.
	Err error
}

var _ ports.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendRows stores rows and returns a synthetic range.
func (s *Store) AppendRows(_ context.Context, rows []ports.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	if len(rows) == 0 {
		return "", nil
	}
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.rows...)
}
