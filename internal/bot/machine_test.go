package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/log"
	"spendbot/internal/services"
	"spendbot/internal/session"
)

type call struct {
	op        string
	userID    int64
	messageID int
	screen    Screen
}

type fakeTransport struct {
	calls   []call
	nextID  int
	sendErr error
	editErr error
}

func (f *fakeTransport) Send(_ context.Context, userID int64, s Screen) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.calls = append(f.calls, call{op: "send", userID: userID, messageID: f.nextID, screen: s})
	return f.nextID, nil
}

func (f *fakeTransport) Edit(_ context.Context, userID int64, messageID int, s Screen) error {
	f.calls = append(f.calls, call{op: "edit", userID: userID, messageID: messageID, screen: s})
	return f.editErr
}

func (f *fakeTransport) Delete(_ context.Context, userID int64, messageID int) error {
	f.calls = append(f.calls, call{op: "delete", userID: userID, messageID: messageID})
	return nil
}

func (f *fakeTransport) last() call {
	return f.calls[len(f.calls)-1]
}

func (f *fakeTransport) lastEdit(t *testing.T) call {
	t.Helper()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == "edit" {
			return f.calls[i]
		}
	}
	t.Fatal("no edit recorded")
	return call{}
}

func (f *fakeTransport) reset() {
	f.calls = nil
}

type panickingTransport struct{ fakeTransport }

func (p *panickingTransport) Edit(context.Context, int64, int, Screen) error {
	panic("boom")
}

type harness struct {
	machine   *Machine
	transport *fakeTransport
	ledger    *ledger.MemoryStore
	sessions  *session.Store
	now       time.Time
}

const user int64 = 100

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{nextID: 500},
		ledger:    ledger.NewMemoryStore(),
		now:       time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC),
	}
	h.sessions = session.NewStore(100, time.Hour, nil, session.WithClock(func() time.Time { return h.now }))
	svc := services.NewExpenseService(h.ledger, nil, nil)
	h.machine = NewMachine(h.sessions, h.ledger, svc, h.transport, NewScreens("RUB", time.UTC), log.Discard(),
		WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, ok := h.sessions.Get(user)
	require.True(t, ok)
	return s
}

func buttons(s Screen) []Action {
	var out []Action
	for _, row := range s.Buttons {
		for _, b := range row {
			out = append(out, b.Action)
		}
	}
	return out
}

func TestStart_SendsMenuAndPersistsAnchor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.machine.Start(ctx, user)

	c := h.transport.last()
	assert.Equal(t, "send", c.op)
	assert.Equal(t, []Action{ActionEnterSpendings, ActionEnterAnalytics}, buttons(c.screen))
	assert.Equal(t, session.Menu, h.session(t).Phase)
	assert.Equal(t, c.messageID, h.session(t).AnchorID)
	assert.Equal(t, c.messageID, h.ledger.User(ctx, user).MenuID)

	h.machine.Start(ctx, user)
	assert.Equal(t, h.transport.last().messageID, h.ledger.User(ctx, user).MenuID, "anchor follows the newest menu")
}

func TestStart_SendFailureLeavesNoAnchor(t *testing.T) {
	h := newHarness(t)
	h.transport.sendErr = errors.New("network")

	h.machine.Start(context.Background(), user)

	assert.False(t, h.session(t).HasAnchor())
	assert.Equal(t, 0, h.ledger.User(context.Background(), user).MenuID)
}

func TestEntryFlow_ConfirmAppendsInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day0 := h.now.AddDate(0, 0, -3)
	_, err := h.ledger.MergeAppend(ctx, user, []core.ExpenseRecord{{Category: "old", Amount: core.Money{Cents: 1}, OccurredAt: day0}})
	require.NoError(t, err)

	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)

	edit := h.transport.lastEdit(t)
	assert.Equal(t, anchor, edit.messageID)
	assert.Contains(t, edit.screen.Text, "No entries yet.")
	assert.Equal(t, []Action{ActionReturnToMenu}, buttons(edit.screen))

	inputs := []string{"food 10.50", "taxi 7", "coffee 3,2"}
	for i, in := range inputs {
		h.transport.reset()
		h.machine.HandleText(ctx, user, 1000+i, in)

		require.Len(t, h.transport.calls, 2)
		assert.Equal(t, "edit", h.transport.calls[0].op)
		assert.Equal(t, call{op: "delete", userID: user, messageID: 1000 + i}, h.transport.calls[1])
		assert.Equal(t, []Action{ActionCancelSpendings, ActionConfirm, ActionReturnToMenu}, buttons(h.transport.calls[0].screen))
	}
	text := h.transport.lastEdit(t).screen.Text
	assert.Contains(t, text, "1. food: 10.50 (14.03.2025)")
	assert.Contains(t, text, "2. taxi: 7.00 (14.03.2025)")
	assert.Contains(t, text, "3. coffee: 3.20 (14.03.2025)")

	h.transport.reset()
	h.machine.HandleAction(ctx, user, anchor, ActionConfirm)

	hist := h.ledger.History(ctx, user)
	require.Len(t, hist, 4)
	assert.Equal(t, "old", hist[0].Category)
	for i, want := range []struct {
		cat   string
		cents int64
	}{{"food", 1050}, {"taxi", 700}, {"coffee", 320}} {
		assert.Equal(t, want.cat, hist[i+1].Category)
		assert.Equal(t, want.cents, hist[i+1].Amount.Cents)
		assert.True(t, hist[i+1].OccurredAt.Equal(h.now))
	}

	edit = h.transport.lastEdit(t)
	assert.Contains(t, edit.screen.Text, "Added: 3 (20.70 RUB)")
	assert.Contains(t, edit.screen.Text, "All time: 4 entries, 20.71 RUB")
	assert.Empty(t, h.session(t).Pending)
	assert.Equal(t, session.Menu, h.session(t).Phase)
}

func TestCancelDiscardsPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID

	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")
	h.machine.HandleText(ctx, user, 2, "food 20")
	h.machine.HandleAction(ctx, user, anchor, ActionCancelSpendings)

	assert.Empty(t, h.session(t).Pending)
	assert.Contains(t, h.transport.lastEdit(t).screen.Text, "No entries yet.")

	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.transport.reset()
	h.machine.HandleAction(ctx, user, anchor, ActionConfirm)

	assert.Empty(t, h.ledger.History(ctx, user))
	c := h.transport.last()
	assert.Equal(t, "send", c.op)
	assert.Equal(t, NothingToConfirmText, c.screen.Text)
}

func TestReenteringSpendingsDiscardsPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID

	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")
	h.machine.HandleAction(ctx, user, anchor, ActionReturnToMenu)
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)

	assert.Empty(t, h.session(t).Pending)
}

func TestConfirmEmptyDoesNotTouchLedgerOrAnchor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.transport.reset()

	h.machine.HandleAction(ctx, user, anchor, ActionConfirm)

	require.Len(t, h.transport.calls, 1)
	assert.Equal(t, "send", h.transport.calls[0].op)
	assert.Equal(t, NothingToConfirmText, h.transport.calls[0].screen.Text)
	assert.NotContains(t, h.transport.calls[0].screen.Text, "saved")
	assert.Empty(t, h.ledger.History(ctx, user))
	assert.Equal(t, anchor, h.session(t).AnchorID)
	assert.Equal(t, session.EnteringSpendings, h.session(t).Phase)
}

func TestMalformedInputsKeepPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")
	before := h.transport.lastEdit(t).screen

	for i, bad := range []string{"just words", "food -5"} {
		h.transport.reset()
		h.machine.HandleText(ctx, user, 10+i, bad)

		require.Len(t, h.session(t).Pending, 1)
		edit := h.transport.lastEdit(t)
		assert.True(t, strings.HasPrefix(edit.screen.Text, before.Text), "listing unchanged")
		assert.Contains(t, edit.screen.Text, "⚠️ Invalid input")
		assert.Equal(t, buttons(before), buttons(edit.screen))
		assert.Equal(t, "delete", h.transport.last().op)
	}
}

func TestMalformedInputWithNoPendingHasNoConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	h.machine.HandleAction(ctx, user, h.session(t).AnchorID, ActionEnterSpendings)

	h.machine.HandleText(ctx, user, 1, "food 1.234")

	edit := h.transport.lastEdit(t)
	assert.Empty(t, h.session(t).Pending)
	assert.Equal(t, []Action{ActionReturnToMenu}, buttons(edit.screen))
	assert.Contains(t, edit.screen.Text, "No entries yet.")
}

func TestConfirmFailureKeepsPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")

	h.ledger.FailWrites = true
	h.machine.HandleAction(ctx, user, anchor, ActionConfirm)

	edit := h.transport.lastEdit(t)
	assert.Equal(t, anchor, edit.messageID)
	assert.Contains(t, edit.screen.Text, "Could not save")
	assert.Contains(t, buttons(edit.screen), ActionReturnToMenu)
	assert.Len(t, h.session(t).Pending, 1)

	h.ledger.FailWrites = false
	h.machine.HandleAction(ctx, user, anchor, ActionConfirm)
	assert.Len(t, h.ledger.History(ctx, user), 1)
	assert.Empty(t, h.session(t).Pending)
}

func TestTextOutsideEntryShowsMenuNotice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterAnalytics)
	h.transport.reset()

	h.machine.HandleText(ctx, user, 77, "food 10")

	require.Len(t, h.transport.calls, 2)
	edit := h.transport.calls[0]
	assert.Equal(t, anchor, edit.messageID)
	assert.Contains(t, edit.screen.Text, NoticeUnexpectedMessage)
	assert.Equal(t, call{op: "delete", userID: user, messageID: 77}, h.transport.calls[1])
	assert.Equal(t, session.Menu, h.session(t).Phase)
	assert.Empty(t, h.session(t).Pending)
}

func TestTextWithoutAnchorIsDropped(t *testing.T) {
	h := newHarness(t)

	h.machine.HandleText(context.Background(), user, 5, "food 10")

	require.Len(t, h.transport.calls, 1)
	assert.Equal(t, call{op: "delete", userID: user, messageID: 5}, h.transport.calls[0])
}

func TestActionWithoutAnchorAdoptsPressedMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.machine.HandleAction(ctx, user, 42, ActionEnterAnalytics)

	assert.Equal(t, 42, h.session(t).AnchorID)
	assert.Equal(t, 42, h.ledger.User(ctx, user).MenuID)
	assert.Equal(t, 42, h.transport.lastEdit(t).messageID)
	assert.Equal(t, session.Analytics, h.session(t).Phase)
}

func TestSessionSeededFromLedgerAnchor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ledger.SetAnchor(ctx, user, 321))

	h.machine.HandleText(ctx, user, 9, "hello")

	edit := h.transport.lastEdit(t)
	assert.Equal(t, 321, edit.messageID)
	assert.Contains(t, edit.screen.Text, NoticeUnexpectedMessage)
}

func TestAnalyticsScreens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day1 := h.now.AddDate(0, 0, -2)
	_, err := h.ledger.MergeAppend(ctx, user, []core.ExpenseRecord{
		{Category: "food", Amount: core.Money{Cents: 1050}, OccurredAt: day1},
		{Category: "food", Amount: core.Money{Cents: 500}, OccurredAt: day1},
		{Category: "transport", Amount: core.Money{Cents: 2000}, OccurredAt: day1.AddDate(0, 0, 1)},
		{Category: "last-month", Amount: core.Money{Cents: 100}, OccurredAt: h.now.AddDate(0, -1, 0)},
	})
	require.NoError(t, err)

	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID

	h.machine.HandleAction(ctx, user, anchor, ActionEnterAnalytics)
	edit := h.transport.lastEdit(t)
	assert.Contains(t, edit.screen.Text, "Entries: 4")
	assert.Contains(t, edit.screen.Text, "Total: 36.50 RUB")
	assert.Equal(t, []Action{ActionMonthReport, ActionCategoryReport, ActionReturnToMenu}, buttons(edit.screen))
	assert.Equal(t, session.Analytics, h.session(t).Phase)

	h.machine.HandleAction(ctx, user, anchor, ActionMonthReport)
	edit = h.transport.lastEdit(t)
	assert.Contains(t, edit.screen.Text, "March 2025")
	assert.Contains(t, edit.screen.Text, "Total: 35.50 RUB")
	assert.NotContains(t, edit.screen.Text, "last-month")
	assert.Equal(t, []Action{ActionCancelAnalytics}, buttons(edit.screen))
	assert.Equal(t, session.Analytics, h.session(t).Phase)

	h.machine.HandleAction(ctx, user, anchor, ActionCategoryReport)
	edit = h.transport.lastEdit(t)
	assert.Contains(t, edit.screen.Text, "🥇 transport")
	assert.Contains(t, edit.screen.Text, "(54.8%)")
	assert.Equal(t, session.Analytics, h.session(t).Phase)

	h.machine.HandleAction(ctx, user, anchor, ActionCancelAnalytics)
	assert.Contains(t, h.transport.lastEdit(t).screen.Text, "Entries: 4")

	h.machine.HandleAction(ctx, user, anchor, ActionReturnToMenu)
	assert.Equal(t, session.Menu, h.session(t).Phase)
	assert.Equal(t, []Action{ActionEnterSpendings, ActionEnterAnalytics}, buttons(h.transport.lastEdit(t).screen))
}

func TestPendingInvisibleToReports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")

	h.machine.HandleAction(ctx, user, anchor, ActionCategoryReport)

	assert.Contains(t, h.transport.lastEdit(t).screen.Text, "no saved expenses")
}

func TestUnknownActionIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	h.transport.reset()

	h.machine.HandleAction(ctx, user, h.session(t).AnchorID, ActionUnknown)

	assert.Empty(t, h.transport.calls)
	assert.Equal(t, session.Menu, h.session(t).Phase)
}

func TestEditFailureStillDeletesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	h.machine.HandleAction(ctx, user, h.session(t).AnchorID, ActionEnterSpendings)
	h.transport.editErr = errors.New("message is not modified")
	h.transport.reset()

	h.machine.HandleText(ctx, user, 3, "food 10")

	assert.Equal(t, "delete", h.transport.last().op)
	assert.Len(t, h.session(t).Pending, 1)
}

func TestPanicIsContained(t *testing.T) {
	pt := &panickingTransport{fakeTransport{nextID: 1}}
	store := session.NewStore(10, time.Hour, nil)
	repo := ledger.NewMemoryStore()
	m := NewMachine(store, repo, services.NewExpenseService(repo, nil, nil), pt, NewScreens("", time.UTC), nil)
	ctx := context.Background()

	m.Start(ctx, user)
	assert.NotPanics(t, func() {
		m.HandleAction(ctx, user, 2, ActionEnterSpendings)
	})
	assert.NotPanics(t, func() {
		m.HandleText(ctx, user, 3, "food 1")
	})
}

func TestSessionExpiryReseedsFromLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.machine.Start(ctx, user)
	anchor := h.session(t).AnchorID
	h.machine.HandleAction(ctx, user, anchor, ActionEnterSpendings)
	h.machine.HandleText(ctx, user, 1, "food 10")

	h.now = h.now.Add(2 * time.Hour)
	h.machine.HandleText(ctx, user, 2, "food 20")

	sess := h.session(t)
	assert.Equal(t, anchor, sess.AnchorID)
	assert.Empty(t, sess.Pending)
	assert.Contains(t, h.transport.lastEdit(t).screen.Text, NoticeUnexpectedMessage)
}
