package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spend-insight/internal/records"
)

// dateLayouts are the date formats accepted in statement rows.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01/02/06",
}

// Parse extracts expense rows from statement text, one candidate per
// line. A row is `<date> <description...> <amount>`: the first token
// must parse as a date and the last as a money amount; everything in
// between is the note. Lines that don't fit (headers, balances, page
// furniture from PDF extraction) are skipped, not errors.
//
// Returned expenses have no ID; the caller assigns identities before
// inserting.
func Parse(text string) []records.Expense {
	var out []records.Expense
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		date, ok := parseDate(fields[0])
		if !ok {
			continue
		}
		amount, ok := parseAmount(fields[len(fields)-1])
		if !ok {
			continue
		}
		out = append(out, records.Expense{
			Note:   strings.Join(fields[1:len(fields)-1], " "),
			Amount: amount,
			Date:   date,
		})
	}
	return out
}

func parseDate(token string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, token); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func parseAmount(token string) (decimal.Decimal, bool) {
	token = strings.TrimPrefix(token, "$")
	token = strings.ReplaceAll(token, ",", "")
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
