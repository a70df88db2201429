package scanner

import (
	"time"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/endpoints"
)

// WorkItem is one endpoint to probe. Index is its position in the endpoint
// list and is carried through to the Result so order can be restored.
type WorkItem struct {
	Index    int
	Endpoint endpoints.Endpoint
}

// Result is the verdict for a single endpoint. HTTPStatus is 0 when no
// response was received.
type Result struct {
	Index           int
	API             string
	Method          string
	URL             string
	HTTPStatus      int
	ContentType     string
	Label           classify.Label
	Reason          string
	ResponseSnippet string
	Duration        time.Duration
	Error           error
	Filtered        bool
	FilterReason    string
}

// NotTested builds the placeholder result for an endpoint that was never
// probed (e.g. the scan was interrupted before it was scheduled).
func NotTested(item WorkItem, url string) Result {
	return Result{
		Index:  item.Index,
		API:    item.Endpoint.Name,
		Method: item.Endpoint.Method,
		URL:    url,
		Label:  classify.Undetermined,
		Reason: "Not tested",
	}
}
