package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/maxvaer/gmapscan/internal/scanner"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV output writer. An empty outputFile writes to
// stdout.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"api", "method", "url", "http_status", "label", "reason", "response_snippet"})
}

func (c *CSVWriter) WriteResult(result *scanner.Result) error {
	status := ""
	if result.HTTPStatus != 0 {
		status = strconv.Itoa(result.HTTPStatus)
	}
	return c.w.Write([]string{
		result.API,
		result.Method,
		result.URL,
		status,
		string(result.Label),
		result.Reason,
		result.ResponseSnippet,
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
