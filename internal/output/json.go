package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/maxvaer/gmapscan/internal/scanner"
)

type jsonEntry struct {
	API             string `json:"api"`
	Method          string `json:"method"`
	URL             string `json:"url"`
	HTTPStatus      *int   `json:"http_status"`
	Label           string `json:"label"`
	Reason          string `json:"reason"`
	ResponseSnippet string `json:"response_snippet"`
}

// JSONWriter writes results as a JSON array.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	entries []jsonEntry
}

// NewJSONWriter creates a JSON output writer. An empty outputFile writes to
// stdout.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
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
	return &JSONWriter{w: w, closer: closer, entries: []jsonEntry{}}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(result *scanner.Result) error {
	var status *int
	if result.HTTPStatus != 0 {
		s := result.HTTPStatus
		status = &s
	}
	j.entries = append(j.entries, jsonEntry{
		API:             result.API,
		Method:          result.Method,
		URL:             result.URL,
		HTTPStatus:      status,
		Label:           string(result.Label),
		Reason:          result.Reason,
		ResponseSnippet: result.ResponseSnippet,
	})
	return nil
}

func (j *JSONWriter) WriteFooter(_ Stats) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(j.entries)
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
