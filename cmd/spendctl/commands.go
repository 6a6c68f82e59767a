package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"spendbot/internal/analytics"
	"spendbot/internal/backend"
	"spendbot/internal/export"
	"spendbot/internal/ledger"
)

// Env is what every command runs against.
type Env struct {
	Ctx      context.Context
	Ledger   ledger.Repository
	Location *time.Location
	Currency string
	Out      io.Writer
	Now      func() time.Time

	// Open creates the target backend of copy.
	Open func(ctx context.Context, target backend.Config) (*backend.BackendResult, error)
	// Target returns the configured backend settings that copy starts from.
	Target func() (backend.Config, error)
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now().In(e.Location)
	}
	return time.Now().In(e.Location)
}

type Commands struct {
	Report ReportCmd `cmd:"" help:"Print an analytics report for one user."`
	Export ExportCmd `cmd:"" help:"Write one user's expenses to an xlsx workbook."`
	Copy   CopyCmd   `cmd:"" help:"Copy the whole ledger into another backend."`
}

type ReportCmd struct {
	Month      MonthReportCmd    `cmd:"" help:"Expenses of the current month grouped by day."`
	Categories CategoryReportCmd `cmd:"" help:"Expenses grouped by category."`
}

type MonthReportCmd struct {
	User int64 `help:"Chat user id." required:""`
}

func (cmd *MonthReportCmd) Run(env *Env) error {
	history := env.Ledger.History(env.Ctx, cmd.User)
	f := analytics.Formatter{Currency: env.Currency}
	_, err := fmt.Fprintln(env.Out, f.Monthly(analytics.Monthly(history, env.now())))
	return err
}

type CategoryReportCmd struct {
	User int64 `help:"Chat user id." required:""`
}

func (cmd *CategoryReportCmd) Run(env *Env) error {
	history := env.Ledger.History(env.Ctx, cmd.User)
	f := analytics.Formatter{Currency: env.Currency}
	_, err := fmt.Fprintln(env.Out, f.Categories(analytics.ByCategory(history)))
	return err
}

type ExportCmd struct {
	User int64  `help:"Chat user id." required:""`
	Out  string `help:"Output xlsx file." required:"" type:"path"`
}

func (cmd *ExportCmd) Run(env *Env) error {
	history := env.Ledger.History(env.Ctx, cmd.User)

	file, err := os.Create(cmd.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", cmd.Out, err)
	}
	if err := export.Write(file, history, env.Location); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", cmd.Out, err)
	}

	_, err = fmt.Fprintf(env.Out, "Exported %d entries to %s\n", len(history), cmd.Out)
	return err
}

type CopyCmd struct {
	To          string `help:"Target backend." required:"" enum:"file,sqlite,postgres"`
	LedgerFile  string `help:"Target JSON ledger file (file backend)."`
	SQLitePath  string `name:"sqlite-path" help:"Target database file (sqlite backend)."`
	DatabaseURL string `name:"database-url" help:"Target connection string (postgres backend)."`
}

func (cmd *CopyCmd) Run(env *Env) error {
	source, err := env.Target()
	if err != nil {
		return err
	}
	target := source.WithType(backend.BackendType(cmd.To))
	if cmd.LedgerFile != "" {
		target.LedgerFile = cmd.LedgerFile
	}
	if cmd.SQLitePath != "" {
		target.SQLiteDBPath = cmd.SQLitePath
	}
	if cmd.DatabaseURL != "" {
		target.DatabaseURL = cmd.DatabaseURL
	}

	if target == source {
		return fmt.Errorf("target is the configured %s backend itself", cmd.To)
	}

	dst, err := env.Open(env.Ctx, target)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cmd.To, err)
	}
	defer dst.Close()

	data := env.Ledger.Load(env.Ctx)
	if err := dst.Ledger.Save(env.Ctx, data); err != nil {
		return fmt.Errorf("save into %s backend: %w", cmd.To, err)
	}

	entries := 0
	for _, u := range data {
		entries += len(u.Spendings)
	}
	_, err = fmt.Fprintf(env.Out, "Copied %d users (%d entries) into the %s backend\n", len(data), entries, cmd.To)
	return err
}
