package services

import (
	"context"
	"errors"
	"fmt"

	"spendbot/internal/amqp"
	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/log"
)

// Publisher announces confirmed batches to downstream consumers.
type Publisher interface {
	PublishExpensesConfirmed(ctx context.Context, msg *amqp.ExpensesConfirmedMessage) error
}

// CommitResult summarises a confirmed batch.
type CommitResult struct {
	Added      int
	AddedTotal core.Money
	Count      int
	Total      core.Money
}

var ErrNothingToCommit = errors.New("nothing to commit")

// ExpenseService orchestrates expense operations across the ledger and AMQP
type ExpenseService struct {
	ledger    ledger.Repository
	publisher Publisher
	logger    *log.Logger
}

// NewExpenseService wires the ledger and an optional publisher. A nil
// publisher disables events.
func NewExpenseService(repo ledger.Repository, publisher Publisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		ledger:    repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Confirm appends pending to the user's history and publishes the batch.
// The ledger write is authoritative; a failed publish is only logged.
func (s *ExpenseService) Confirm(ctx context.Context, userID int64, pending []core.ExpenseRecord) (CommitResult, error) {
	if len(pending) == 0 {
		return CommitResult{}, ErrNothingToCommit
	}

	u, err := s.ledger.MergeAppend(ctx, userID, pending)
	if err != nil {
		return CommitResult{}, fmt.Errorf("save expenses: %w", err)
	}

	res := CommitResult{
		Added:      len(pending),
		AddedTotal: core.Total(pending),
		Count:      len(u.Spendings),
		Total:      core.Total(u.Spendings),
	}

	logger := log.FromContextOr(ctx, s.logger).
		WithComponent(log.ComponentLedger).
		WithFields(log.NewFields().WithUser(userID))
	logger.InfoContext(ctx, "Expenses confirmed",
		log.FieldCount, res.Added,
		log.FieldAmount, res.AddedTotal.String())

	if err := s.publish(ctx, userID, pending); err != nil {
		logger.ErrorContext(ctx, "Failed to publish expenses confirmed message",
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
		// Don't fail the confirm - expenses are saved in the ledger
	}

	return res, nil
}

func (s *ExpenseService) publish(ctx context.Context, userID int64, records []core.ExpenseRecord) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event")
		return nil
	}
	return s.publisher.PublishExpensesConfirmed(ctx, amqp.NewExpensesConfirmedMessage(userID, records))
}
