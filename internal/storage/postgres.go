package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_users (
    user_id BIGINT PRIMARY KEY,
    menu_id BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id           BIGSERIAL PRIMARY KEY,
    user_id      BIGINT      NOT NULL REFERENCES ledger_users(user_id) ON DELETE CASCADE,
    seq          BIGINT      NOT NULL,
    category     TEXT        NOT NULL,
    amount_cents BIGINT      NOT NULL CHECK (amount_cents >= 0),
    occurred_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, seq)
);
`

// PostgresRepository keeps the ledger in PostgreSQL. MergeAppend locks the
// user's row, so concurrent appends for one user are applied in turn and
// appends for different users do not block each other.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ ledger.Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, databaseURL string, logger *log.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "postgres"),
	}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context) core.LedgerData {
	data := core.LedgerData{}

	rows, err := r.pool.Query(ctx, `SELECT user_id, menu_id FROM ledger_users`)
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	var id int64
	var menuID int
	_, err = pgx.ForEachRow(rows, []any{&id, &menuID}, func() error {
		data[id] = core.UserLedger{MenuID: menuID, Spendings: []core.ExpenseRecord{}}
		return nil
	})
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}

	rows, err = r.pool.Query(ctx,
		`SELECT user_id, category, amount_cents, occurred_at FROM ledger_entries ORDER BY user_id, seq`)
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	var (
		category   string
		cents      int64
		occurredAt time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &category, &cents, &occurredAt}, func() error {
		u := data[id]
		u.Spendings = append(u.Spendings, core.ExpenseRecord{
			Category:   category,
			Amount:     core.Money{Cents: cents},
			OccurredAt: occurredAt,
		})
		data[id] = u
		return nil
	})
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	return data
}

func (r *PostgresRepository) Save(ctx context.Context, data core.LedgerData) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE ledger_entries, ledger_users`); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
		users := make([][]any, 0, len(data))
		for id, u := range data {
			users = append(users, []any{id, u.MenuID})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_users"},
			[]string{"user_id", "menu_id"}, pgx.CopyFromRows(users)); err != nil {
			return fmt.Errorf("copy users: %w", err)
		}
		for id, u := range data {
			if err := copyEntries(ctx, tx, id, 0, u.Spendings); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.persistError(ctx, log.OpSave, err)
	}
	return nil
}

func (r *PostgresRepository) History(ctx context.Context, userID int64) []core.ExpenseRecord {
	return r.User(ctx, userID).Spendings
}

func (r *PostgresRepository) User(ctx context.Context, userID int64) core.UserLedger {
	var u core.UserLedger
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		u, err = readPostgresUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		r.logLoadError(ctx, err)
		return core.NewUserLedger()
	}
	return u
}

func (r *PostgresRepository) MergeAppend(ctx context.Context, userID int64, entries []core.ExpenseRecord) (core.UserLedger, error) {
	var out core.UserLedger
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_users (user_id, menu_id) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT 1 FROM ledger_users WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		var last int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM ledger_entries WHERE user_id = $1`, userID).Scan(&last); err != nil {
			return fmt.Errorf("read last sequence: %w", err)
		}
		if err := copyEntries(ctx, tx, userID, last, entries); err != nil {
			return err
		}
		u, err := readPostgresUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return core.UserLedger{}, r.persistError(ctx, log.OpAppend, err)
	}
	return out, nil
}

func (r *PostgresRepository) SetAnchor(ctx context.Context, userID int64, menuID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ledger_users (user_id, menu_id) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET menu_id = EXCLUDED.menu_id`, userID, menuID)
	if err != nil {
		return r.persistError(ctx, log.OpAnchor, err)
	}
	return nil
}

func (r *PostgresRepository) logLoadError(ctx context.Context, err error) {
	r.logger.ErrorContext(ctx, "Failed to read ledger, returning empty result",
		log.FieldOperation, log.OpLoad,
		log.FieldErrorType, log.ErrorTypeStorage,
		log.FieldError, err)
}

func (r *PostgresRepository) persistError(ctx context.Context, op string, err error) error {
	r.logger.ErrorContext(ctx, "Failed to write ledger",
		log.FieldOperation, op,
		log.FieldErrorType, log.ErrorTypeStorage,
		log.FieldError, err)
	return fmt.Errorf("%w: %w", ledger.ErrPersist, err)
}

func readPostgresUser(ctx context.Context, tx pgx.Tx, userID int64) (core.UserLedger, error) {
	u := core.NewUserLedger()
	err := tx.QueryRow(ctx, `SELECT menu_id FROM ledger_users WHERE user_id = $1`, userID).Scan(&u.MenuID)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return core.UserLedger{}, fmt.Errorf("read user %d: %w", userID, err)
	}

	rows, err := tx.Query(ctx,
		`SELECT category, amount_cents, occurred_at FROM ledger_entries WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return core.UserLedger{}, fmt.Errorf("read entries of %d: %w", userID, err)
	}
	var (
		category   string
		cents      int64
		occurredAt time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&category, &cents, &occurredAt}, func() error {
		u.Spendings = append(u.Spendings, core.ExpenseRecord{
			Category:   category,
			Amount:     core.Money{Cents: cents},
			OccurredAt: occurredAt,
		})
		return nil
	})
	if err != nil {
		return core.UserLedger{}, fmt.Errorf("scan entries of %d: %w", userID, err)
	}
	return u, nil
}

func copyEntries(ctx context.Context, tx pgx.Tx, userID, after int64, entries []core.ExpenseRecord) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{userID, after + int64(i) + 1, e.Category, e.Amount.Cents, e.OccurredAt}
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_entries"},
		[]string{"user_id", "seq", "category", "amount_cents", "occurred_at"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy entries for %d: %w", userID, err)
	}
	return nil
}
