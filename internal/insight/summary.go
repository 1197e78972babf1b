package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthTotal is the summed spend for one calendar month.
type MonthTotal struct {
	Label string // e.g. "January 2024"
	Month time.Time
	Total decimal.Decimal
}

// TrendSummary is the quantitative aggregate of a retrieved expense set.
type TrendSummary struct {
	Total  decimal.Decimal
	Months []MonthTotal // chronological order
	Trend  string       // empty when fewer than two distinct months
}

// Summarize aggregates retrieved expenses into a TrendSummary. It is a
// pure function: same input, same output, no shared state.
//
// Months are ordered by calendar date, and the trend sentence compares
// the two most recent months present in the set. The comparison only
// subtracts; it never divides, so a zero-spend month cannot blow up.
func Summarize(expenses []RetrievedExpense) TrendSummary {
	total := decimal.Zero
	byMonth := make(map[time.Time]decimal.Decimal)
	for _, e := range expenses {
		total = total.Add(e.Amount)
		m := time.Date(e.Date.Year(), e.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		byMonth[m] = byMonth[m].Add(e.Amount)
	}

	months := make([]MonthTotal, 0, len(byMonth))
	for m, sum := range byMonth {
		months = append(months, MonthTotal{Label: monthLabel(m), Month: m, Total: sum})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month.Before(months[j].Month) })

	s := TrendSummary{Total: total, Months: months}
	if len(months) >= 2 {
		prev := months[len(months)-2]
		cur := months[len(months)-1]
		diff := cur.Total.Sub(prev.Total)
		direction := "lower"
		if diff.Sign() > 0 {
			direction = "higher"
		}
		s.Trend = fmt.Sprintf("Spending in %s was %s than in %s by $%s.",
			cur.Label, direction, prev.Label, diff.Abs().StringFixed(2))
	}
	return s
}

func monthLabel(m time.Time) string {
	return fmt.Sprintf("%s %d", m.Month(), m.Year())
}
