package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/config"
	"github.com/maxvaer/gmapscan/internal/endpoints"
)

func testRequester(t *testing.T) *Requester {
	t.Helper()
	req, err := NewRequester(&config.Options{Concurrency: 4, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func collect(ch <-chan Result) []Result {
	var out []Result
	for r := range ch {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func TestRequesterDo(t *testing.T) {
	var gotKey, gotUA, gotCT, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"location":{"lat":1,"lng":2}}`)
	}))
	defer srv.Close()

	req := testRequester(t)
	ep := endpoints.Endpoint{
		Name:        "Geolocation API",
		Method:      http.MethodPost,
		URLTemplate: srv.URL + "/geolocate?key={key}",
		Body:        `{"considerIp":true}`,
	}
	resp, err := req.Do(context.Background(), ep, "AIzaTest")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if gotMethod != http.MethodPost || gotKey != "AIzaTest" {
		t.Fatalf("unexpected request: method=%s key=%s", gotMethod, gotKey)
	}
	if gotCT != "application/json" || gotBody != `{"considerIp":true}` {
		t.Fatalf("unexpected body %q with content type %q", gotBody, gotCT)
	}
	if gotUA == "" || gotUA[:9] != "gmapscan/" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
	if resp.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", resp.ContentType)
	}
}

func TestRunWorkerPoolClassifiesEachEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"results": []string{"x"}, "status": "OK"})
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid"}}`)
		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"something":"else"}`)
		}
	}))
	defer srv.Close()

	items := []WorkItem{
		{Index: 0, Endpoint: endpoints.Endpoint{Name: "Open", Method: "GET", URLTemplate: srv.URL + "/open?key={key}"}},
		{Index: 1, Endpoint: endpoints.Endpoint{Name: "Denied", Method: "GET", URLTemplate: srv.URL + "/denied?key={key}"}},
		{Index: 2, Endpoint: endpoints.Endpoint{Name: "Odd", Method: "GET", URLTemplate: srv.URL + "/odd?key={key}"}},
	}

	results := collect(RunWorkerPool(context.Background(), testRequester(t), items, WorkerConfig{
		Concurrency: 1,
		Key:         "k",
	}))
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}

	want := []classify.Label{classify.Vulnerable, classify.Secure, classify.Undetermined}
	for i, r := range results {
		if r.Label != want[i] {
			t.Errorf("%s: want %s, got %s (%s)", r.API, want[i], r.Label, r.Reason)
		}
	}
	if results[1].HTTPStatus != 403 || results[1].Reason != "403 API key not valid" {
		t.Errorf("unexpected denied result %+v", results[1])
	}
	if results[0].ResponseSnippet == "" {
		t.Error("expected response snippet to be recorded")
	}
}

func TestRunWorkerPoolNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening any more

	items := []WorkItem{{Index: 0, Endpoint: endpoints.Endpoint{Name: "Gone", Method: "GET", URLTemplate: url + "/?key={key}"}}}
	results := collect(RunWorkerPool(context.Background(), testRequester(t), items, WorkerConfig{Concurrency: 2, Key: "k"}))
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Label != classify.Undetermined || r.HTTPStatus != 0 || r.Error == nil {
		t.Fatalf("unexpected failure result %+v", r)
	}
	if len(r.Reason) < 15 || r.Reason[:15] != "Request failed:" {
		t.Fatalf("unexpected reason %q", r.Reason)
	}
}

func TestRunWorkerPoolBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	var items []WorkItem
	for i := 0; i < 10; i++ {
		items = append(items, WorkItem{Index: i, Endpoint: endpoints.Endpoint{
			Name: fmt.Sprintf("ep%d", i), Method: "GET", URLTemplate: srv.URL + "/?key={key}",
		}})
	}

	results := collect(RunWorkerPool(context.Background(), testRequester(t), items, WorkerConfig{Concurrency: 3, Key: "k"}))
	if len(results) != 10 {
		t.Fatalf("want 10 results, got %d", len(results))
	}
	if p := peak.Load(); p > 3 {
		t.Fatalf("expected at most 3 requests in flight, saw %d", p)
	}
}

func TestRunWorkerPoolStopsSchedulingOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	var items []WorkItem
	for i := 0; i < 5; i++ {
		items = append(items, WorkItem{Index: i, Endpoint: endpoints.Endpoint{
			Name: fmt.Sprintf("ep%d", i), Method: "GET", URLTemplate: srv.URL + "/?key={key}",
		}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	th := NewThrottler(time.Hour, false, nil)
	ch := RunWorkerPool(ctx, testRequester(t), items, WorkerConfig{Concurrency: 2, Key: "k", Throttler: th})

	// The first item is scheduled immediately; the rest wait on the delay.
	first := <-ch
	if first.Index != 0 {
		t.Fatalf("expected first item, got %d", first.Index)
	}
	cancel()

	done := make(chan struct{})
	var rest []Result
	go func() {
		rest = collect(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
	if len(rest) != 0 {
		t.Fatalf("expected no further results, got %d", len(rest))
	}
}
