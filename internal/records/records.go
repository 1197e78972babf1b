package records

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for expense dates in vector metadata
// and display text.
const DateLayout = "2006-01-02"

// Expense is a single financial record as stored in the relational
// source. Records are read-only once loaded; the pipelines never mutate
// them.
type Expense struct {
	ID     string
	Note   string
	Amount decimal.Decimal
	Date   time.Time
}

// DisplayText renders the canonical string that gets embedded and stored
// alongside the vector, e.g. "Spent $4.50 on Coffee (2024-01-05)".
func (e Expense) DisplayText() string {
	return fmt.Sprintf("Spent $%s on %s (%s)", e.Amount.StringFixed(2), e.Note, e.Date.Format(DateLayout))
}

// Source defines the expense record source contract; an external DB
// implementation can replace this.
type Source interface {
	ListAll(ctx context.Context) ([]Expense, error)
	ListByIDs(ctx context.Context, ids []string) ([]Expense, error)
	Insert(ctx context.Context, expenses []Expense) error
}
