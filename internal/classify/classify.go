package classify

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Label is the verdict for a single endpoint.
type Label string

const (
	Vulnerable   Label = "VULNERABLE"
	Secure       Label = "SECURE"
	Undetermined Label = "UNDETERMINED"
)

// Keys whose presence in a 200 JSON body means the API served real data.
var dataKeys = []string{
	"results", "routes", "candidates", "snappedPoints", "locations",
	"place_id", "rows", "predictions", "result", "speedLimits", "timeZoneId",
}

// Legacy web-service APIs answer 200 with one of these in "status" when the
// key is rejected.
var deniedStatuses = map[string]struct{}{
	"REQUEST_DENIED":   {},
	"OVER_QUERY_LIMIT": {},
	"OVER_DAILY_LIMIT": {},
	"INVALID_REQUEST":  {},
}

const (
	reasonSnippetLen = 300
	snippetLen       = 500
)

// Response decides the label and reason for one HTTP response. api is the
// endpoint's friendly name, used to recognise image endpoints.
func Response(api string, status int, contentType string, body []byte) (Label, string) {
	ct := strings.ToLower(contentType)
	trimmed := bytes.TrimSpace(body)

	var doc gjson.Result
	isJSON := len(trimmed) > 0 && gjson.ValidBytes(trimmed)
	if isJSON {
		doc = gjson.ParseBytes(trimmed)
	}

	if status == http.StatusOK {
		if isJSON {
			return classifyOKJSON(doc)
		}
		lowerAPI := strings.ToLower(api)
		if strings.Contains(ct, "image") || strings.HasPrefix(lowerAPI, "staticmap") || strings.Contains(lowerAPI, "photo") {
			if ct == "" {
				ct = "unknown"
			}
			return Undetermined, fmt.Sprintf("200 OK with image Content-Type: %s", ct)
		}
		if looksLikeHTML(trimmed) {
			return Secure, "200 OK but returned HTML page (possibly gateway/redirect)"
		}
		return Undetermined, "200 OK with non-JSON body"
	}

	if isJSON && doc.IsObject() {
		return Secure, fmt.Sprintf("%d %s", status, errorMessage(doc))
	}

	summary := Summarize(body, reasonSnippetLen)
	if summary == "" {
		summary = "No response body"
	}
	return Secure, fmt.Sprintf("%d %s", status, summary)
}

func classifyOKJSON(doc gjson.Result) (Label, string) {
	if !doc.IsObject() {
		return Undetermined, "200 OK with JSON body that lacks known data fields"
	}

	if st := doc.Get("status"); st.Type == gjson.String {
		if _, denied := deniedStatuses[st.String()]; denied {
			msg := doc.Get("error_message").String()
			if msg == "" {
				msg = st.String()
			}
			return Secure, "200 OK but request denied: " + msg
		}
	}

	for _, k := range dataKeys {
		if doc.Get(k).Exists() {
			return Vulnerable, "200 OK with data-looking JSON"
		}
	}
	if doc.Get("location").Exists() {
		return Vulnerable, "200 OK with location data"
	}

	if e := doc.Get("error"); e.Exists() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return Secure, "200 OK but error present: " + msg
	}
	return Undetermined, "200 OK with JSON body that lacks known data fields"
}

// errorMessage picks the most useful message out of a JSON error body.
func errorMessage(doc gjson.Result) string {
	if e := doc.Get("error"); e.IsObject() {
		if msg := e.Get("message").String(); msg != "" {
			return msg
		}
		return string(pretty.Ugly([]byte(e.Raw)))
	}
	for _, k := range []string{"error_message", "message"} {
		if msg := doc.Get(k).String(); msg != "" {
			return msg
		}
	}
	return string(pretty.Ugly([]byte(doc.Raw)))
}

func looksLikeHTML(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}

// Summarize returns a one-line summary of body at most n runes long (plus an
// ellipsis when truncated). HTML pages are summarised by their <title>.
func Summarize(body []byte, n int) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if !utf8.Valid(trimmed) {
		return fmt.Sprintf("<%d bytes binary>", len(body))
	}
	if looksLikeHTML(trimmed) {
		if title := htmlTitle(trimmed); title != "" {
			return truncate(title, n)
		}
	}
	return collapse(trimmed, n)
}

// collapse joins the body's whitespace-separated fields and truncates to n
// runes. Binary bodies are reported by size.
func collapse(body []byte, n int) string {
	if !utf8.Valid(body) {
		return fmt.Sprintf("<%d bytes binary>", len(body))
	}
	return truncate(strings.Join(strings.Fields(string(body)), " "), n)
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " \t") + "..."
}

// Snippet returns a short debug excerpt of a response body: compact JSON cut
// at 500 characters, or the whitespace-collapsed text. HTML pages keep their
// text rather than being reduced to the title.
func Snippet(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && gjson.ValidBytes(trimmed) {
		r := []rune(string(pretty.Ugly(trimmed)))
		if len(r) > snippetLen {
			r = r[:snippetLen]
		}
		return string(r)
	}
	return collapse(trimmed, snippetLen)
}
