package output

import (
	"sort"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/scanner"
)

// Verdict order used by --sort label: most severe first.
var labelRank = map[classify.Label]int{
	classify.Vulnerable:   0,
	classify.Undetermined: 1,
	classify.Secure:       2,
}

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer. Ties keep endpoint
// order.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*scanner.Result
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(result *scanner.Result) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.results, func(i, j int) bool {
		a, b := w.results[i], w.results[j]
		switch w.sortBy {
		case "label":
			return labelRank[a.Label] < labelRank[b.Label]
		case "status":
			return a.HTTPStatus < b.HTTPStatus
		case "api":
			return a.API < b.API
		default:
			return false
		}
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}
