package insight

import (
	"fmt"
	"strings"

	"spend-insight/internal/records"
)

// markerTokens are control/boilerplate tokens some models echo into
// their output; they are stripped before the response is judged.
var markerTokens = []string{
	"<|im_start|>",
	"<|im_end|>",
	"<|endoftext|>",
	"<|assistant|>",
	"<|user|>",
	"<|system|>",
	"[INST]",
	"[/INST]",
	"<s>",
	"</s>",
}

// RenderContext produces the grounded context block the model is
// prompted with: one bullet per retrieved expense, the total, and the
// trend sentence when present.
func RenderContext(expenses []RetrievedExpense, summary TrendSummary) string {
	var b strings.Builder
	b.WriteString("Recent expenses:\n")
	for _, e := range expenses {
		fmt.Fprintf(&b, "- %s: $%s on %s\n", e.Note, e.Amount.StringFixed(2), e.Date.Format(records.DateLayout))
	}
	fmt.Fprintf(&b, "Total spent: $%s\n", summary.Total.StringFixed(2))
	if summary.Trend != "" {
		b.WriteString(summary.Trend)
		b.WriteString("\n")
	}
	return b.String()
}

func insightPrompt(contextBlock string) string {
	return "You are a friendly personal finance assistant.\n\n" +
		contextBlock +
		"\nPoint out any notable spending patterns, mention the month-over-month trend if one is shown above, and give one or two actionable suggestions."
}

// retryPrompt is the simplified prompt used after a degenerate response.
func retryPrompt(contextBlock string) string {
	return contextBlock + "\nIn one or two sentences, describe this spending."
}

// Clean strips known marker tokens and trims surrounding whitespace.
func Clean(text string) string {
	for _, marker := range markerTokens {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.TrimSpace(text)
}
