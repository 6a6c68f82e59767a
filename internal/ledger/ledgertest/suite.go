// Package ledgertest provides a behavioural test suite shared by every
// ledger.Repository implementation.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
)

// RepositorySuite exercises the Repository contract. Set NewRepository and
// run it with suite.Run.
type RepositorySuite struct {
	suite.Suite

	NewRepository func(t *testing.T) ledger.Repository

	repo ledger.Repository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.NewRepository(s.T())
}

// Record builds a record stamped at millisecond precision, the resolution
// every backend keeps.
func Record(category string, cents int64, at time.Time) core.ExpenseRecord {
	return core.ExpenseRecord{
		Category:   category,
		Amount:     core.Money{Cents: cents},
		OccurredAt: time.UnixMilli(at.UnixMilli()),
	}
}

func (s *RepositorySuite) requireSameRecords(want, got []core.ExpenseRecord) {
	s.Require().Len(got, len(want))
	for i := range want {
		s.Equal(want[i].Category, got[i].Category, "category at %d", i)
		s.Equal(want[i].Amount, got[i].Amount, "amount at %d", i)
		s.Equal(want[i].OccurredAt.UnixMilli(), got[i].OccurredAt.UnixMilli(), "date at %d", i)
	}
}

func (s *RepositorySuite) TestLoadEmpty() {
	data := s.repo.Load(s.ctx)
	s.NotNil(data)
	s.Empty(data)
}

func (s *RepositorySuite) TestUnknownUser() {
	u := s.repo.User(s.ctx, 42)
	s.Equal(0, u.MenuID)
	s.NotNil(u.Spendings)
	s.Empty(u.Spendings)

	h := s.repo.History(s.ctx, 42)
	s.NotNil(h)
	s.Empty(h)
}

func (s *RepositorySuite) TestMergeAppendPreservesOrder() {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := []core.ExpenseRecord{
		Record("food", 1050, base),
		Record("food", 500, base.Add(time.Minute)),
	}
	second := []core.ExpenseRecord{
		Record("transport", 2000, base.Add(24*time.Hour)),
	}

	u, err := s.repo.MergeAppend(s.ctx, 1, first)
	s.Require().NoError(err)
	s.Len(u.Spendings, 2)

	u, err = s.repo.MergeAppend(s.ctx, 1, second)
	s.Require().NoError(err)
	s.requireSameRecords(append(first, second...), u.Spendings)
	s.requireSameRecords(append(first, second...), s.repo.History(s.ctx, 1))
}

func (s *RepositorySuite) TestMergeAppendLeavesOtherUsersAlone() {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.repo.MergeAppend(s.ctx, 1, []core.ExpenseRecord{Record("a", 100, at)})
	s.Require().NoError(err)
	_, err = s.repo.MergeAppend(s.ctx, 2, []core.ExpenseRecord{Record("b", 200, at)})
	s.Require().NoError(err)

	data := s.repo.Load(s.ctx)
	s.Len(data, 2)
	s.requireSameRecords([]core.ExpenseRecord{Record("a", 100, at)}, data[1].Spendings)
	s.requireSameRecords([]core.ExpenseRecord{Record("b", 200, at)}, data[2].Spendings)
}

func (s *RepositorySuite) TestMergeAppendNothing() {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.repo.MergeAppend(s.ctx, 1, []core.ExpenseRecord{Record("a", 100, at)})
	s.Require().NoError(err)

	u, err := s.repo.MergeAppend(s.ctx, 1, nil)
	s.Require().NoError(err)
	s.Len(u.Spendings, 1)
	s.Len(s.repo.History(s.ctx, 1), 1)
}

func (s *RepositorySuite) TestSetAnchorKeepsHistory() {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.repo.MergeAppend(s.ctx, 7, []core.ExpenseRecord{Record("a", 100, at)})
	s.Require().NoError(err)

	s.Require().NoError(s.repo.SetAnchor(s.ctx, 7, 555))
	u := s.repo.User(s.ctx, 7)
	s.Equal(555, u.MenuID)
	s.Len(u.Spendings, 1)

	s.Require().NoError(s.repo.SetAnchor(s.ctx, 8, 12))
	s.Equal(12, s.repo.User(s.ctx, 8).MenuID)
	s.Empty(s.repo.History(s.ctx, 8))
}

func (s *RepositorySuite) TestSaveReplacesContents() {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.repo.MergeAppend(s.ctx, 1, []core.ExpenseRecord{Record("a", 100, at)})
	s.Require().NoError(err)

	replacement := core.LedgerData{
		2: {MenuID: 9, Spendings: []core.ExpenseRecord{Record("b", 250, at), Record("c", 1, at)}},
	}
	s.Require().NoError(s.repo.Save(s.ctx, replacement))

	data := s.repo.Load(s.ctx)
	s.Len(data, 1)
	s.NotContains(data, int64(1))
	s.Equal(9, data[2].MenuID)
	s.requireSameRecords(replacement[2].Spendings, data[2].Spendings)
}

func (s *RepositorySuite) TestAmountsKeepExactCents() {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var recs []core.ExpenseRecord
	for i := 0; i < 100; i++ {
		recs = append(recs, Record("coffee", 10, at))
	}
	recs = append(recs, Record("big", 123456789, at), Record("odd", 1099, at))
	_, err := s.repo.MergeAppend(s.ctx, 3, recs)
	s.Require().NoError(err)

	got := s.repo.History(s.ctx, 3)
	s.requireSameRecords(recs, got)
	s.Equal(int64(100*10+123456789+1099), core.Total(got).Cents)
}

func (s *RepositorySuite) TestConcurrentMergeAppendLosesNothing() {
	const users, perUser = 8, 5
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, users*perUser)
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				_, err := s.repo.MergeAppend(s.ctx, userID, []core.ExpenseRecord{Record("x", int64(i+1), at)})
				errs <- err
			}
		}(int64(u))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	data := s.repo.Load(s.ctx)
	s.Len(data, users)
	for u := 1; u <= users; u++ {
		hist := data[int64(u)].Spendings
		s.Require().Len(hist, perUser, "user %d", u)
		for i, r := range hist {
			s.Equal(int64(i+1), r.Amount.Cents, "user %d entry %d", u, i)
		}
	}
}
