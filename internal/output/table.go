package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/scanner"
)

// ANSI color codes.
const (
	colorReset   = "\033[0m"
	colorBoldRed = "\033[1;31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorCyan    = "\033[1;36m"
	colorDim     = "\033[2m"
)

const (
	apiWidth    = 26
	statusWidth = 12
	httpWidth   = 4
)

// TableWriter renders the vulnerability report as an aligned table.
type TableWriter struct {
	w       io.Writer
	noColor bool
}

// NewTableWriter creates a table writer on w. noColor disables ANSI codes.
func NewTableWriter(w io.Writer, noColor bool) *TableWriter {
	return &TableWriter{w: w, noColor: noColor}
}

func (t *TableWriter) paint(color, s string) string {
	if t.noColor || color == "" {
		return s
	}
	return color + s + colorReset
}

func (t *TableWriter) WriteHeader() error {
	title := "Google Maps API Vulnerability Report"
	width := apiWidth + statusWidth + httpWidth + 3*3 + len("Reason / Notes")
	pad := max(0, (width-len(title))/2)
	_, err := fmt.Fprintf(t.w, "\n%s%s\n%s\n%s\n",
		strings.Repeat(" ", pad), t.paint("\033[1m", title),
		t.paint(colorDim, fmt.Sprintf("%-*s | %-*s | %*s | %s", apiWidth, "API", statusWidth, "Status", httpWidth, "HTTP", "Reason / Notes")),
		t.paint(colorDim, strings.Repeat("═", width)),
	)
	return err
}

func (t *TableWriter) WriteResult(result *scanner.Result) error {
	httpCol := "-"
	if result.HTTPStatus != 0 {
		httpCol = fmt.Sprintf("%d", result.HTTPStatus)
	}
	_, err := fmt.Fprintf(t.w, "%s | %s | %*s | %s\n",
		t.paint(colorCyan, fmt.Sprintf("%-*s", apiWidth, result.API)),
		t.paint(labelColor(result.Label), fmt.Sprintf("%-*s", statusWidth, result.Label)),
		httpWidth, httpCol,
		t.paint(colorDim, result.Reason),
	)
	return err
}

func (t *TableWriter) WriteFooter(stats Stats) error {
	summary := fmt.Sprintf("Vulnerable APIs found: %s", t.paint(colorBoldRed, fmt.Sprintf("%d", stats.Vulnerable)))
	if _, err := fmt.Fprintf(t.w,
		"\n┌─ Summary ─────────────────────────────┐\n  %s\n  Secure: %d | Undetermined: %d | Hidden: %d\n└───────────────────────────────────────┘\n",
		summary, stats.Secure, stats.Undetermined, stats.Filtered,
	); err != nil {
		return err
	}
	// No timing for canned (demo) results.
	if stats.Duration == 0 {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "Scan completed in %.2f seconds.\n", stats.Duration.Round(time.Millisecond).Seconds())
	return err
}

func (t *TableWriter) Close() error { return nil }

func labelColor(l classify.Label) string {
	switch l {
	case classify.Vulnerable:
		return colorBoldRed
	case classify.Secure:
		return colorGreen
	default:
		return colorYellow
	}
}
