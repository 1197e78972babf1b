package insight

import (
	"time"

	"github.com/shopspring/decimal"

	"spend-insight/internal/records"
	"spend-insight/internal/vecindex"
)

// RetrievedExpense is the pipeline's working view of a search hit after
// its string metadata has been coerced back to typed values.
type RetrievedExpense struct {
	Note   string
	Amount decimal.Decimal
	Date   time.Time
}

// FromHits converts index hits to retrieved expenses. Hits whose amount
// or date fail to parse are corrupt metadata and are dropped, not
// zeroed.
func FromHits(hits []vecindex.Hit) []RetrievedExpense {
	out := make([]RetrievedExpense, 0, len(hits))
	for _, h := range hits {
		amount, err := decimal.NewFromString(h.Metadata.Amount)
		if err != nil {
			continue
		}
		date, err := time.Parse(records.DateLayout, h.Metadata.Date)
		if err != nil {
			continue
		}
		out = append(out, RetrievedExpense{
			Note:   h.Metadata.Note,
			Amount: amount,
			Date:   date,
		})
	}
	return out
}
