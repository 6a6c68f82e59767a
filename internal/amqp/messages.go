package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"spendbot/internal/core"
)

// ConfirmedEntry is one record of a confirmed batch.
type ConfirmedEntry struct {
	Category   string     `json:"category"`
	Amount     core.Money `json:"amount"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// ExpensesConfirmedMessage announces a batch of records that reached the ledger.
// Consumers get the full records and never read the ledger back.
type ExpensesConfirmedMessage struct {
	EventID   string           `json:"event_id"`
	UserID    int64            `json:"user_id"`
	Entries   []ConfirmedEntry `json:"entries"`
	Timestamp time.Time        `json:"timestamp"`
}

var errMissingUser = errors.New("message has no user id")

// NewExpensesConfirmedMessage wraps records into a message with a fresh event id.
func NewExpensesConfirmedMessage(userID int64, records []core.ExpenseRecord) *ExpensesConfirmedMessage {
	entries := make([]ConfirmedEntry, len(records))
	for i, r := range records {
		entries[i] = ConfirmedEntry{Category: r.Category, Amount: r.Amount, OccurredAt: r.OccurredAt}
	}
	return &ExpensesConfirmedMessage{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Entries:   entries,
		Timestamp: time.Now(),
	}
}

// Records converts the entries back into domain records.
func (m *ExpensesConfirmedMessage) Records() []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = core.ExpenseRecord{Category: e.Category, Amount: e.Amount, OccurredAt: e.OccurredAt}
	}
	return out
}

// ToJSON converts the message to JSON bytes
func (m *ExpensesConfirmedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpensesConfirmedMessageFromJSON decodes a message body.
func ExpensesConfirmedMessageFromJSON(data []byte) (*ExpensesConfirmedMessage, error) {
	var msg ExpensesConfirmedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == 0 {
		return nil, errMissingUser
	}
	return &msg, nil
}
