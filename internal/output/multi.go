package output

import (
	"errors"

	"github.com/maxvaer/gmapscan/internal/scanner"
)

// MultiWriter duplicates every call to each of its writers, e.g. the table on
// stdout plus JSON and CSV exports.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter combines writers. Calls stop at the first error.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) WriteHeader() error {
	for _, w := range m.writers {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) WriteResult(result *scanner.Result) error {
	for _, w := range m.writers {
		if err := w.WriteResult(result); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) WriteFooter(stats Stats) error {
	for _, w := range m.writers {
		if err := w.WriteFooter(stats); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
