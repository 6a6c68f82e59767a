package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spendbot/internal/core"
)

func TestRankMarker(t *testing.T) {
	assert.Equal(t, "🥇", RankMarker(0))
	assert.Equal(t, "🥈", RankMarker(1))
	assert.Equal(t, "🥉", RankMarker(2))
	assert.Equal(t, "4.", RankMarker(3))
	assert.Equal(t, "11.", RankMarker(10))
}

func TestFormatter_Monthly(t *testing.T) {
	f := Formatter{Currency: "RUB"}
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "You have no saved expenses yet.", f.Monthly(Monthly(nil, now)))
	assert.Equal(t, "No expenses in March 2025.",
		f.Monthly(Monthly([]core.ExpenseRecord{rec("a", 1, now.AddDate(0, -1, 0))}, now)))

	got := f.Monthly(Monthly([]core.ExpenseRecord{
		rec("food", 1050, time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)),
		rec("taxi", 500, time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)),
		rec("rent", 2000, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)),
	}, now))
	want := "📅 Expenses for March 2025\n" +
		"Entries: 3\n" +
		"Total: 35.50 RUB\n" +
		"\n14.03.2025 (2 entries, 15.50 RUB)\n" +
		"  1. food: 10.50 (12:30)\n" +
		"  2. taxi: 5.00 (09:05)\n" +
		"\n01.03.2025 (1 entry, 20.00 RUB)\n" +
		"  1. rent: 20.00 (08:00)"
	assert.Equal(t, want, got)
}

func TestFormatter_Categories(t *testing.T) {
	f := Formatter{Currency: "RUB"}
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	got := f.Categories(ByCategory([]core.ExpenseRecord{
		rec("food", 1050, day1),
		rec("food", 500, day1),
		rec("transport", 2000, day1.AddDate(0, 0, 1)),
	}))
	want := "📊 Expenses by category\n" +
		"Entries: 3\n" +
		"Total: 35.50 RUB\n\n" +
		"🥇 transport\n" +
		"   1 entry, 20.00 RUB (56.3%)\n" +
		"🥈 food\n" +
		"   2 entries, 15.50 RUB (43.7%)\n" +
		"\nCategories: 2\n" +
		"Average per category: 17.75 RUB\n" +
		"Top: transport (20.00 RUB)\n" +
		"Bottom: food (15.50 RUB)"
	assert.Equal(t, want, got)
	assert.Equal(t, "You have no saved expenses yet.", f.Categories(ByCategory(nil)))
}

func TestFormatter_Overview(t *testing.T) {
	f := Formatter{}
	assert.Contains(t, f.Overview(Overview{}), "no saved expenses")
	got := f.Overview(Overview{Count: 4, Total: core.Money{Cents: 12345}})
	assert.Contains(t, got, "Entries: 4")
	assert.Contains(t, got, "Total: 123.45\n")
}
