// Package storage provides SQL-backed ledger repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores one row per user and one row per expense.
// Appends for a user run in a single transaction.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ ledger.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection queues transactions
	// instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := migrateLedgerSchema(dbPath, logger); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) core.LedgerData {
	data := core.LedgerData{}

	users, err := r.db.QueryContext(ctx, `SELECT user_id, menu_id FROM ledger_users`)
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	for users.Next() {
		var id int64
		var menuID int
		if err := users.Scan(&id, &menuID); err != nil {
			users.Close()
			r.logLoadError(ctx, err)
			return core.LedgerData{}
		}
		data[id] = core.UserLedger{MenuID: menuID, Spendings: []core.ExpenseRecord{}}
	}
	users.Close()
	if err := users.Err(); err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, category, amount_cents, occurred_at FROM ledger_entries ORDER BY user_id, seq`)
	if err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		rec, err := scanEntry(rows, &id)
		if err != nil {
			r.logLoadError(ctx, err)
			return core.LedgerData{}
		}
		u := data[id]
		u.Spendings = append(u.Spendings, rec)
		data[id] = u
	}
	if err := rows.Err(); err != nil {
		r.logLoadError(ctx, err)
		return core.LedgerData{}
	}
	return data
}

func (r *SQLiteRepository) Save(ctx context.Context, data core.LedgerData) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_users`); err != nil {
			return fmt.Errorf("clear users: %w", err)
		}
		for id, u := range data {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ledger_users (user_id, menu_id) VALUES (?, ?)`, id, u.MenuID); err != nil {
				return fmt.Errorf("insert user %d: %w", id, err)
			}
			if err := insertEntries(ctx, tx, id, 0, u.Spendings); err != nil {
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

func (r *SQLiteRepository) History(ctx context.Context, userID int64) []core.ExpenseRecord {
	return r.User(ctx, userID).Spendings
}

func (r *SQLiteRepository) User(ctx context.Context, userID int64) core.UserLedger {
	u, err := readUser(ctx, r.db, userID)
	if err != nil {
		r.logLoadError(ctx, err)
		return core.NewUserLedger()
	}
	return u
}

func (r *SQLiteRepository) MergeAppend(ctx context.Context, userID int64, entries []core.ExpenseRecord) (core.UserLedger, error) {
	var out core.UserLedger
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_users (user_id, menu_id) VALUES (?, 0) ON CONFLICT(user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		var last int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM ledger_entries WHERE user_id = ?`, userID).Scan(&last); err != nil {
			return fmt.Errorf("read last sequence: %w", err)
		}
		if err := insertEntries(ctx, tx, userID, last, entries); err != nil {
			return err
		}
		u, err := readUser(ctx, tx, userID)
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

func (r *SQLiteRepository) SetAnchor(ctx context.Context, userID int64, menuID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_users (user_id, menu_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET menu_id = excluded.menu_id`, userID, menuID)
	if err != nil {
		return r.persistError(ctx, log.OpAnchor, err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) logLoadError(ctx context.Context, err error) {
	r.logger.ErrorContext(ctx, "Failed to read ledger, returning empty result",
		log.FieldOperation, log.OpLoad,
		log.FieldErrorType, log.ErrorTypeStorage,
		log.FieldError, err)
}

func (r *SQLiteRepository) persistError(ctx context.Context, op string, err error) error {
	r.logger.ErrorContext(ctx, "Failed to write ledger",
		log.FieldOperation, op,
		log.FieldErrorType, log.ErrorTypeStorage,
		log.FieldError, err)
	return fmt.Errorf("%w: %w", ledger.ErrPersist, err)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, userID *int64) (core.ExpenseRecord, error) {
	var (
		rec        core.ExpenseRecord
		cents      int64
		occurredAt int64
	)
	if err := s.Scan(userID, &rec.Category, &cents, &occurredAt); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("scan entry: %w", err)
	}
	rec.Amount = core.Money{Cents: cents}
	rec.OccurredAt = time.UnixMilli(occurredAt)
	return rec, nil
}

func readUser(ctx context.Context, q querier, userID int64) (core.UserLedger, error) {
	u := core.NewUserLedger()
	err := q.QueryRowContext(ctx, `SELECT menu_id FROM ledger_users WHERE user_id = ?`, userID).Scan(&u.MenuID)
	if err == sql.ErrNoRows {
		return u, nil
	}
	if err != nil {
		return core.UserLedger{}, fmt.Errorf("read user %d: %w", userID, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT user_id, category, amount_cents, occurred_at FROM ledger_entries WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return core.UserLedger{}, fmt.Errorf("read entries of %d: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		rec, err := scanEntry(rows, &id)
		if err != nil {
			return core.UserLedger{}, err
		}
		u.Spendings = append(u.Spendings, rec)
	}
	if err := rows.Err(); err != nil {
		return core.UserLedger{}, fmt.Errorf("iterate entries of %d: %w", userID, err)
	}
	return u, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, userID, after int64, entries []core.ExpenseRecord) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ledger_entries (user_id, seq, category, amount_cents, occurred_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, userID, after+int64(i)+1, e.Category, e.Amount.Cents, e.OccurredAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert entry for %d: %w", userID, err)
		}
	}
	return nil
}
