// Package analytics turns a user's confirmed history into reports.
//
// All functions are pure: they read the records they are given and never
// touch the ledger or sessions. Sums are exact in cents; percentages and
// averages are computed with decimals and rounded only for display.
package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"spendbot/internal/core"
)

// Status tells whether a report has content.
type Status int

const (
	StatusOK Status = iota
	StatusNoExpenses
	StatusNoneThisMonth
)

// DayLayout is the day label format and grouping key.
const DayLayout = "02.01.2006"

type (
	// Overview is the all-time headline shown when entering analytics.
	Overview struct {
		Count int
		Total core.Money
	}

	// DayGroup collects the records of one calendar day.
	DayGroup struct {
		Date    time.Time
		Label   string
		Count   int
		Total   core.Money
		Entries []core.ExpenseRecord
	}

	// MonthlyReport covers the calendar month of the reference time.
	MonthlyReport struct {
		Status Status
		Year   int
		Month  time.Month
		Count  int
		Total  core.Money
		Days   []DayGroup
	}

	// CategoryStats aggregates one category over the whole history.
	CategoryStats struct {
		Category string
		Total    core.Money
		Count    int
	}

	// CategoryReport ranks categories by total spent.
	CategoryReport struct {
		Status     Status
		Count      int
		Total      core.Money
		Categories []CategoryStats
	}
)

var hundred = decimal.NewFromInt(100)

// Summarize counts and sums the whole history.
func Summarize(history []core.ExpenseRecord) Overview {
	return Overview{Count: len(history), Total: core.Total(history)}
}

// Monthly reports the records falling in the calendar month and year of now,
// evaluated in now's location. Days are listed newest first and so are the
// records inside a day.
func Monthly(history []core.ExpenseRecord, now time.Time) MonthlyReport {
	loc := now.Location()
	rep := MonthlyReport{Year: now.Year(), Month: now.Month()}
	if len(history) == 0 {
		rep.Status = StatusNoExpenses
		return rep
	}

	byDay := map[string]*DayGroup{}
	for _, r := range history {
		at := r.OccurredAt.In(loc)
		if at.Year() != rep.Year || at.Month() != rep.Month {
			continue
		}
		r.OccurredAt = at

		label := at.Format(DayLayout)
		g, ok := byDay[label]
		if !ok {
			g = &DayGroup{
				Date:  time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc),
				Label: label,
			}
			byDay[label] = g
		}
		g.Entries = append(g.Entries, r)
		g.Count++
		g.Total = g.Total.Add(r.Amount)

		rep.Count++
		rep.Total = rep.Total.Add(r.Amount)
	}

	if rep.Count == 0 {
		rep.Status = StatusNoneThisMonth
		return rep
	}

	rep.Days = make([]DayGroup, 0, len(byDay))
	for _, g := range byDay {
		slices.SortStableFunc(g.Entries, func(a, b core.ExpenseRecord) int {
			return b.OccurredAt.Compare(a.OccurredAt)
		})
		rep.Days = append(rep.Days, *g)
	}
	slices.SortFunc(rep.Days, func(a, b DayGroup) int {
		return b.Date.Compare(a.Date)
	})
	return rep
}

// ByCategory groups the whole history by category. Categories are ordered by
// total descending; equal totals are ordered by name.
func ByCategory(history []core.ExpenseRecord) CategoryReport {
	if len(history) == 0 {
		return CategoryReport{Status: StatusNoExpenses}
	}

	rep := CategoryReport{Count: len(history)}
	index := map[string]int{}
	for _, r := range history {
		i, ok := index[r.Category]
		if !ok {
			i = len(rep.Categories)
			index[r.Category] = i
			rep.Categories = append(rep.Categories, CategoryStats{Category: r.Category})
		}
		rep.Categories[i].Total = rep.Categories[i].Total.Add(r.Amount)
		rep.Categories[i].Count++
		rep.Total = rep.Total.Add(r.Amount)
	}

	slices.SortFunc(rep.Categories, func(a, b CategoryStats) int {
		if c := cmp.Compare(b.Total.Cents, a.Total.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return rep
}

// Percent returns the share of category i in the grand total, rounded to one
// decimal place. A zero grand total yields zero.
func (r CategoryReport) Percent(i int) decimal.Decimal {
	if r.Total.IsZero() || i < 0 || i >= len(r.Categories) {
		return decimal.Zero
	}
	return r.Categories[i].Total.Decimal().
		Mul(hundred).
		Div(r.Total.Decimal()).
		Round(1)
}

// Average is the grand total divided by the number of categories.
func (r CategoryReport) Average() core.Money {
	if len(r.Categories) == 0 {
		return core.Money{}
	}
	return core.MoneyFromDecimal(r.Total.Decimal().Div(decimal.NewFromInt(int64(len(r.Categories)))))
}

// Top returns the highest ranked category.
func (r CategoryReport) Top() CategoryStats {
	if len(r.Categories) == 0 {
		return CategoryStats{}
	}
	return r.Categories[0]
}

// Bottom returns the lowest ranked category.
func (r CategoryReport) Bottom() CategoryStats {
	if len(r.Categories) == 0 {
		return CategoryStats{}
	}
	return r.Categories[len(r.Categories)-1]
}
