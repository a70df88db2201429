package output

import (
	"time"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/scanner"
)

// Stats holds aggregate scan statistics.
type Stats struct {
	Total        int
	Vulnerable   int
	Secure       int
	Undetermined int
	Errors       int // no HTTP response received
	Filtered     int // hidden from the report by the filter chain
	Duration     time.Duration
}

// Add counts one result. Filtered results still count toward the verdict
// totals so the summary reflects the whole scan.
func (s *Stats) Add(r *scanner.Result) {
	s.Total++
	switch r.Label {
	case classify.Vulnerable:
		s.Vulnerable++
	case classify.Secure:
		s.Secure++
	default:
		s.Undetermined++
	}
	if r.Error != nil {
		s.Errors++
	}
	if r.Filtered {
		s.Filtered++
	}
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(result *scanner.Result) error
	WriteFooter(stats Stats) error
	Close() error
}
