package bot

import (
	"fmt"
	"strings"
	"time"

	"spendbot/internal/analytics"
	"spendbot/internal/core"
	"spendbot/internal/services"
)

// Notices shown on the menu or entry screens.
const (
	NoticeUnexpectedMessage = "⚠️ The bot did not expect a message. Use the buttons below."
	NothingToConfirmText    = "There is nothing to confirm yet. Add at least one entry first."
	EntryPromptText         = "✍️ Enter spendings as 'Category Amount', one per message.\nExample: food 10.50"
)

var (
	btnAddSpendings    = Button{Text: "➕ Add spendings", Action: ActionEnterSpendings}
	btnAnalytics       = Button{Text: "📈 Analytics", Action: ActionEnterAnalytics}
	btnBackToMenu      = Button{Text: "⬅️ Back to menu", Action: ActionReturnToMenu}
	btnCancel          = Button{Text: "✖️ Cancel", Action: ActionCancelSpendings}
	btnConfirm         = Button{Text: "✅ Confirm", Action: ActionConfirm}
	btnRetry           = Button{Text: "🔁 Retry", Action: ActionConfirm}
	btnMonth           = Button{Text: "📅 This month", Action: ActionMonthReport}
	btnByCategory      = Button{Text: "📊 By category", Action: ActionCategoryReport}
	btnBackToAnalytics = Button{Text: "⬅️ Back to analytics", Action: ActionCancelAnalytics}
)

// Screens renders every screen of the conversation.
type Screens struct {
	formatter analytics.Formatter
	loc       *time.Location
}

func NewScreens(currency string, loc *time.Location) Screens {
	if loc == nil {
		loc = time.Local
	}
	return Screens{formatter: analytics.Formatter{Currency: currency}, loc: loc}
}

// Location is where dates are shown and months are evaluated.
func (s Screens) Location() *time.Location {
	return s.loc
}

func (s Screens) money(m core.Money) string {
	if s.formatter.Currency == "" {
		return m.String()
	}
	return m.String() + " " + s.formatter.Currency
}

func (s Screens) Menu(notice string) Screen {
	text := "💰 Personal finance\n\nChoose an action."
	if notice != "" {
		text += "\n\n" + notice
	}
	return Screen{
		Text:    text,
		Buttons: [][]Button{{btnAddSpendings}, {btnAnalytics}},
	}
}

// Entry lists the pending records, optionally followed by an error line.
func (s Screens) Entry(pending []core.ExpenseRecord, errLine string) Screen {
	var b strings.Builder
	b.WriteString(EntryPromptText)
	b.WriteString("\n\n")
	if len(pending) == 0 {
		b.WriteString("No entries yet.")
	} else {
		b.WriteString("Entries:\n")
		for i, r := range pending {
			fmt.Fprintf(&b, "%d. %s: %s (%s)\n", i+1, r.Category, r.Amount, r.OccurredAt.In(s.loc).Format(analytics.DayLayout))
		}
		fmt.Fprintf(&b, "\nTotal: %s", s.money(core.Total(pending)))
	}
	if errLine != "" {
		b.WriteString("\n\n⚠️ ")
		b.WriteString(errLine)
	}

	var buttons [][]Button
	if len(pending) > 0 {
		buttons = append(buttons, []Button{btnCancel, btnConfirm})
	}
	buttons = append(buttons, []Button{btnBackToMenu})
	return Screen{Text: b.String(), Buttons: buttons}
}

func (s Screens) Committed(res services.CommitResult) Screen {
	var b strings.Builder
	b.WriteString("✅ Spendings saved.\n\n")
	fmt.Fprintf(&b, "Added: %d (%s)\n", res.Added, s.money(res.AddedTotal))
	fmt.Fprintf(&b, "All time: %d entries, %s", res.Count, s.money(res.Total))
	return Screen{
		Text:    b.String(),
		Buttons: [][]Button{{btnAddSpendings}, {btnBackToMenu}},
	}
}

func (s Screens) CommitFailed() Screen {
	return Screen{
		Text:    "❌ Could not save your spendings. Your entries are kept, please try again.",
		Buttons: [][]Button{{btnRetry}, {btnBackToMenu}},
	}
}

func (s Screens) NothingToConfirm() Screen {
	return Screen{Text: NothingToConfirmText}
}

func (s Screens) Overview(o analytics.Overview) Screen {
	return Screen{
		Text:    s.formatter.Overview(o),
		Buttons: [][]Button{{btnMonth, btnByCategory}, {btnBackToMenu}},
	}
}

func (s Screens) MonthReport(r analytics.MonthlyReport) Screen {
	return Screen{
		Text:    s.formatter.Monthly(r),
		Buttons: [][]Button{{btnBackToAnalytics}},
	}
}

func (s Screens) CategoryReport(r analytics.CategoryReport) Screen {
	return Screen{
		Text:    s.formatter.Categories(r),
		Buttons: [][]Button{{btnBackToAnalytics}},
	}
}
