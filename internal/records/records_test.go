package records

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDisplayText(t *testing.T) {
	e := Expense{
		ID:     "exp-1",
		Note:   "Coffee",
		Amount: decimal.RequireFromString("4.5"),
		Date:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	got := e.DisplayText()
	want := "Spent $4.50 on Coffee (2024-01-05)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDisplayTextRoundsToCents(t *testing.T) {
	e := Expense{
		Note:   "Groceries",
		Amount: decimal.RequireFromString("12.345"),
		Date:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	got := e.DisplayText()
	want := "Spent $12.35 on Groceries (2024-03-10)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
