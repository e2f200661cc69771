package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/rjpower/weaver/internal/models"
)

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// truncateWords keeps at most maxWords whitespace-separated words,
// appending "..." when anything was dropped.
func truncateWords(text string, maxWords int) (string, bool) {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text, false
	}
	return strings.Join(words[:maxWords], " ") + "...", true
}

// formatTokenCount formats an integer with comma separators (e.g. 45230 -> "45,230").
func formatTokenCount(n int) string {
	if n < 0 {
		return "-" + formatTokenCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		b.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// estimateCost estimates the USD cost for the given model and token counts.
func estimateCost(model string, inputTokens, outputTokens int) float64 {
	var inputRate, outputRate float64 // per million tokens

	switch {
	case strings.HasPrefix(model, "claude-opus"):
		inputRate = 15.0
		outputRate = 75.0
	case strings.HasPrefix(model, "claude-sonnet"):
		inputRate = 3.0
		outputRate = 15.0
	case strings.HasPrefix(model, "claude-haiku"):
		inputRate = 0.80
		outputRate = 4.0
	default:
		// Unknown model: use sonnet pricing as a reasonable default.
		inputRate = 3.0
		outputRate = 15.0
	}

	return float64(inputTokens)/1_000_000*inputRate + float64(outputTokens)/1_000_000*outputRate
}

const defaultTitleWidth = 50

// titleWidth sizes the TITLE column to the terminal, falling back to
// the default when stdout is not one (tests, pipes).
func titleWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultTitleWidth
	}
	// The fixed columns take roughly 60 cells.
	avail := w - 60
	switch {
	case avail < 20:
		return 20
	case avail > 120:
		return 120
	}
	return avail
}

// printIssueTable renders issues as an aligned table.
func printIssueTable(out io.Writer, issues []models.Issue) {
	width := titleWidth()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tP\tSTATUS\tTYPE\tTITLE\tLABELS\tBLOCKED BY")
	for _, iss := range issues {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			iss.ID, iss.Priority, iss.Status, iss.Type,
			truncate(iss.Title, width),
			strings.Join(iss.Labels, ", "),
			strings.Join(iss.BlockedBy, ", "))
	}
	w.Flush()
}
