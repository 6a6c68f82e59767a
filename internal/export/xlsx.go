// Package export writes a user's ledger history as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"spendbot/internal/analytics"
	"spendbot/internal/core"
)

const (
	ExpensesSheet   = "Expenses"
	CategoriesSheet = "Categories"
)

var (
	expenseHeaders  = []string{"Date", "Time", "Category", "Amount"}
	categoryHeaders = []string{"Rank", "Category", "Entries", "Total", "Share %"}
)

// Workbook builds a workbook with every record on the Expenses sheet and the
// category report on the Categories sheet. Times are shown in loc.
func Workbook(history []core.ExpenseRecord, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()

	// NewFile starts with "Sheet1"; rename it instead of leaving it empty.
	if err := f.SetSheetName(f.GetSheetName(0), ExpensesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, ExpensesSheet, expenseHeaders); err != nil {
		return nil, err
	}
	for i, r := range history {
		at := r.OccurredAt.In(loc)
		row := i + 2
		if err := setRow(f, ExpensesSheet, row,
			at.Format(analytics.DayLayout),
			at.Format("15:04"),
			r.Category,
			r.Amount.Decimal().InexactFloat64()); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeader(f, CategoriesSheet, categoryHeaders); err != nil {
		return nil, err
	}
	rep := analytics.ByCategory(history)
	for i, c := range rep.Categories {
		pct, _ := rep.Percent(i).Float64()
		if err := setRow(f, CategoriesSheet, i+2,
			i+1,
			c.Category,
			c.Count,
			c.Total.Decimal().InexactFloat64(),
			pct); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, history []core.ExpenseRecord, loc *time.Location) error {
	f, err := Workbook(history, loc)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	return setRow(f, sheet, 1, values...)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
