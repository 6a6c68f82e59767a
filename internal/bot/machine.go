// Package bot implements the conversation: what each command, message and
// button press does to a user's session and which screen is shown next.
//
// Every user is bound to one anchor message that is edited in place. The
// machine is driven by a single dispatcher, so sessions need no locking.
package bot

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"spendbot/internal/analytics"
	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/log"
	"spendbot/internal/services"
	"spendbot/internal/session"
)

// Committer persists confirmed entries.
type Committer interface {
	Confirm(ctx context.Context, userID int64, pending []core.ExpenseRecord) (services.CommitResult, error)
}

// Machine is the per-user conversation state machine.
type Machine struct {
	sessions  *session.Store
	ledger    ledger.Repository
	committer Committer
	transport Transport
	screens   Screens
	now       func() time.Time
	logger    *log.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(sessions *session.Store, repo ledger.Repository, committer Committer, transport Transport, screens Screens, logger *log.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = log.Discard()
	}
	m := &Machine{
		sessions:  sessions,
		ledger:    repo,
		committer: committer,
		transport: transport,
		screens:   screens,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentBot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start shows a fresh menu message and makes it the user's anchor.
func (m *Machine) Start(ctx context.Context, userID int64) {
	defer m.recoverEvent(ctx, "start", userID)

	sess := m.session(ctx, userID)
	sess.Phase = session.Menu

	id, err := m.transport.Send(ctx, userID, m.screens.Menu(""))
	if err != nil {
		m.log(ctx).ErrorContext(ctx, "Failed to send menu",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpSend,
			log.FieldErrorType, log.ErrorTypeTransport,
			log.FieldError, err)
		return
	}
	sess.AnchorID = id

	if err := m.ledger.SetAnchor(ctx, userID, id); err != nil {
		m.log(ctx).WarnContext(ctx, "Failed to persist menu anchor",
			log.FieldUserID, userID,
			log.FieldMessageID, id,
			log.FieldOperation, log.OpAnchor,
			log.FieldError, err)
	}
}

// HandleText interprets a free-text message. The message is always deleted
// afterwards.
func (m *Machine) HandleText(ctx context.Context, userID int64, messageID int, text string) {
	defer m.recoverEvent(ctx, "text", userID)

	sess := m.session(ctx, userID)
	if !sess.HasAnchor() {
		m.log(ctx).WarnContext(ctx, "No menu message for user, dropping input",
			log.FieldUserID, userID,
			log.FieldMessageID, messageID)
		m.delete(ctx, userID, messageID)
		return
	}

	if sess.Phase == session.EnteringSpendings {
		errLine := ""
		rec, err := core.ParseExpenseInput(text, m.now())
		if err != nil {
			errLine = inputErrorLine(err)
			m.log(ctx).DebugContext(ctx, "Rejected spending input",
				log.FieldUserID, userID,
				log.FieldErrorType, log.ErrorTypeValidation,
				log.FieldError, err)
		} else {
			sess.AddPending(rec)
		}
		m.edit(ctx, sess, m.screens.Entry(sess.Pending, errLine))
	} else {
		sess.Phase = session.Menu
		m.edit(ctx, sess, m.screens.Menu(NoticeUnexpectedMessage))
	}

	m.delete(ctx, userID, messageID)
}

// HandleAction applies a button press made on messageID.
func (m *Machine) HandleAction(ctx context.Context, userID int64, messageID int, action Action) {
	defer m.recoverEvent(ctx, "action", userID)

	if action == ActionUnknown {
		m.log(ctx).WarnContext(ctx, "Ignoring unknown action",
			log.FieldUserID, userID,
			log.FieldMessageID, messageID)
		return
	}

	sess := m.session(ctx, userID)
	if !sess.HasAnchor() {
		if messageID == 0 {
			m.log(ctx).WarnContext(ctx, "No menu message for user, ignoring action",
				log.FieldUserID, userID,
				log.FieldAction, action.String())
			return
		}
		m.adoptAnchor(ctx, sess, messageID)
	}

	m.log(ctx).DebugContext(ctx, "Handling action",
		log.FieldUserID, userID,
		log.FieldAction, action.String(),
		log.FieldPhase, sess.Phase.String())

	switch action {
	case ActionEnterSpendings, ActionCancelSpendings:
		sess.BeginEntry()
		m.edit(ctx, sess, m.screens.Entry(nil, ""))

	case ActionConfirm:
		m.confirm(ctx, sess)

	case ActionEnterAnalytics, ActionCancelAnalytics:
		sess.Phase = session.Analytics
		m.edit(ctx, sess, m.screens.Overview(analytics.Summarize(m.ledger.History(ctx, userID))))

	case ActionMonthReport:
		rep := analytics.Monthly(m.ledger.History(ctx, userID), m.now().In(m.screens.Location()))
		m.edit(ctx, sess, m.screens.MonthReport(rep))

	case ActionCategoryReport:
		m.edit(ctx, sess, m.screens.CategoryReport(analytics.ByCategory(m.ledger.History(ctx, userID))))

	case ActionReturnToMenu:
		sess.Phase = session.Menu
		m.edit(ctx, sess, m.screens.Menu(""))
	}
}

func (m *Machine) confirm(ctx context.Context, sess *session.Session) {
	if len(sess.Pending) == 0 {
		if _, err := m.transport.Send(ctx, sess.UserID, m.screens.NothingToConfirm()); err != nil {
			m.log(ctx).ErrorContext(ctx, "Failed to send notice",
				log.FieldUserID, sess.UserID,
				log.FieldOperation, log.OpSend,
				log.FieldError, err)
		}
		return
	}

	res, err := m.committer.Confirm(ctx, sess.UserID, sess.PendingSnapshot())
	if err != nil {
		m.log(ctx).ErrorContext(ctx, "Failed to confirm spendings",
			log.FieldUserID, sess.UserID,
			log.FieldOperation, log.OpConfirm,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldCount, len(sess.Pending),
			log.FieldError, err)
		m.edit(ctx, sess, m.screens.CommitFailed())
		return
	}

	sess.Committed()
	m.edit(ctx, sess, m.screens.Committed(res))
}

// log prefers the event logger the dispatcher put into ctx.
func (m *Machine) log(ctx context.Context) *log.Logger {
	return log.FromContextOr(ctx, m.logger).WithComponent(log.ComponentBot)
}

func (m *Machine) session(ctx context.Context, userID int64) *session.Session {
	if sess, ok := m.sessions.Get(userID); ok {
		return sess
	}
	return m.sessions.Seed(userID, m.ledger.User(ctx, userID))
}

func (m *Machine) adoptAnchor(ctx context.Context, sess *session.Session, messageID int) {
	sess.AnchorID = messageID
	if sess.Phase == session.Idle {
		sess.Phase = session.Menu
	}
	m.log(ctx).InfoContext(ctx, "Adopted pressed message as menu anchor",
		log.FieldUserID, sess.UserID,
		log.FieldMessageID, messageID)
	if err := m.ledger.SetAnchor(ctx, sess.UserID, messageID); err != nil {
		m.log(ctx).WarnContext(ctx, "Failed to persist menu anchor",
			log.FieldUserID, sess.UserID,
			log.FieldOperation, log.OpAnchor,
			log.FieldError, err)
	}
}

func (m *Machine) edit(ctx context.Context, sess *session.Session, screen Screen) {
	if err := m.transport.Edit(ctx, sess.UserID, sess.AnchorID, screen); err != nil {
		m.log(ctx).ErrorContext(ctx, "Failed to edit menu message",
			log.FieldUserID, sess.UserID,
			log.FieldMessageID, sess.AnchorID,
			log.FieldOperation, log.OpEdit,
			log.FieldErrorType, log.ErrorTypeTransport,
			log.FieldError, err)
	}
}

func (m *Machine) delete(ctx context.Context, userID int64, messageID int) {
	if err := m.transport.Delete(ctx, userID, messageID); err != nil {
		m.log(ctx).WarnContext(ctx, "Failed to delete user message",
			log.FieldUserID, userID,
			log.FieldMessageID, messageID,
			log.FieldOperation, log.OpDelete,
			log.FieldError, err)
	}
}

// recoverEvent keeps a panic in one event from taking the process down.
func (m *Machine) recoverEvent(ctx context.Context, event string, userID int64) {
	if r := recover(); r != nil {
		m.log(ctx).ErrorContext(ctx, "Event handler panicked",
			"event", event,
			log.FieldUserID, userID,
			log.FieldErrorType, log.ErrorTypeInternal,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

func inputErrorLine(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Invalid amount: use a non-negative number with at most 2 decimals."
	default:
		return "Invalid input: expected 'category amount', e.g. food 10.50"
	}
}
