package analytics

import (
	"fmt"
	"strings"

	"spendbot/internal/core"
)

var rankMarkers = []string{"🥇", "🥈", "🥉"}

// RankMarker returns the marker of the zero-based rank i.
func RankMarker(i int) string {
	if i >= 0 && i < len(rankMarkers) {
		return rankMarkers[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

// Formatter renders reports as chat text.
type Formatter struct {
	Currency string
}

func (f Formatter) money(m core.Money) string {
	if f.Currency == "" {
		return m.String()
	}
	return m.String() + " " + f.Currency
}

func entries(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return fmt.Sprintf("%d entries", n)
}

func (f Formatter) Overview(o Overview) string {
	var b strings.Builder
	b.WriteString("📈 Analytics\n\n")
	if o.Count == 0 {
		b.WriteString("You have no saved expenses yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "Entries: %d\n", o.Count)
	fmt.Fprintf(&b, "Total: %s\n\n", f.money(o.Total))
	b.WriteString("Choose a report.")
	return b.String()
}

func (f Formatter) Monthly(r MonthlyReport) string {
	switch r.Status {
	case StatusNoExpenses:
		return "You have no saved expenses yet."
	case StatusNoneThisMonth:
		return fmt.Sprintf("No expenses in %s %d.", r.Month, r.Year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Expenses for %s %d\n", r.Month, r.Year)
	fmt.Fprintf(&b, "Entries: %d\n", r.Count)
	fmt.Fprintf(&b, "Total: %s\n", f.money(r.Total))
	for _, d := range r.Days {
		fmt.Fprintf(&b, "\n%s (%s, %s)\n", d.Label, entries(d.Count), f.money(d.Total))
		for i, e := range d.Entries {
			fmt.Fprintf(&b, "  %d. %s: %s (%s)\n", i+1, e.Category, e.Amount, e.OccurredAt.Format("15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f Formatter) Categories(r CategoryReport) string {
	if r.Status == StatusNoExpenses {
		return "You have no saved expenses yet."
	}

	var b strings.Builder
	b.WriteString("📊 Expenses by category\n")
	fmt.Fprintf(&b, "Entries: %d\n", r.Count)
	fmt.Fprintf(&b, "Total: %s\n\n", f.money(r.Total))
	for i, c := range r.Categories {
		fmt.Fprintf(&b, "%s %s\n", RankMarker(i), c.Category)
		fmt.Fprintf(&b, "   %s, %s (%s%%)\n", entries(c.Count), f.money(c.Total), r.Percent(i).StringFixed(1))
	}

	top, bottom := r.Top(), r.Bottom()
	fmt.Fprintf(&b, "\nCategories: %d\n", len(r.Categories))
	fmt.Fprintf(&b, "Average per category: %s\n", f.money(r.Average()))
	fmt.Fprintf(&b, "Top: %s (%s)\n", top.Category, f.money(top.Total))
	fmt.Fprintf(&b, "Bottom: %s (%s)", bottom.Category, f.money(bottom.Total))
	return b.String()
}
