package memory

import (
	"context"
	"errors"
	"testing"

	"spendbot/internal/core"
	ports "spendbot/internal/sheets"
)

func TestStoreAppendRows(t *testing.T) {
	s := New()
	rows := []ports.Row{
		{Date: "14.03.2025", Time: "12:30", UserID: 1, Category: "food", Amount: core.Money{Cents: 1050}},
		{Date: "14.03.2025", Time: "12:31", UserID: 1, Category: "taxi", Amount: core.Money{Cents: 700}},
	}

	ref, err := s.AppendRows(context.Background(), rows)
	if err != nil || ref != "mem:1-2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.AppendRows(context.Background(), rows[:1])
	if err != nil || ref != "mem:3-3" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	got := s.Rows()
	if len(got) != 3 || got[1].Category != "taxi" || got[2].Category != "food" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	got[0].Category = "changed"
	if s.Rows()[0].Category != "food" {
		t.Fatalf("Rows returned an alias")
	}
}

func TestStoreAppendError(t *testing.T) {
	s := New()
	s.Err = errors.New("quota exceeded")

	if _, err := s.AppendRows(context.Background(), []ports.Row{{Category: "x"}}); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Rows()) != 0 {
		t.Fatal("rows stored despite error")
	}
}
