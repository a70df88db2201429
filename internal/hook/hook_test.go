package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/scanner"
)

func sample() *scanner.Result {
	return &scanner.Result{
		API:        "Geocode API",
		Method:     "GET",
		URL:        "https://maps.googleapis.com/maps/api/geocode/json?key=REDACTED",
		HTTPStatus: 200,
		Label:      classify.Vulnerable,
		Reason:     "200 OK with data-looking JSON",
	}
}

func TestExpand(t *testing.T) {
	r := NewRunner("notify {label} {api} {status} {method}", nil, nil)
	got := r.Expand(sample())
	want := "notify VULNERABLE Geocode API 200 GET"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	res := sample()
	res.HTTPStatus = 0
	if got := NewRunner("[{status}]", nil, nil).Expand(res); got != "[]" {
		t.Fatalf("expected empty status placeholder, got %q", got)
	}
}

func TestRunPipesJSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out := filepath.Join(t.TempDir(), "payload.json")
	var stderr bytes.Buffer
	r := NewRunner("cat > "+out, &stderr, nil)

	if err := r.Run(context.Background(), sample()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var got resultJSON
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid payload %q: %v", data, err)
	}
	if got.API != "Geocode API" || got.Label != "VULNERABLE" || got.HTTPStatus != 200 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestRunReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var stderr bytes.Buffer
	r := NewRunner("exit 3", &stderr, nil)
	if err := r.Run(context.Background(), sample()); err == nil {
		t.Fatal("expected error from failing hook")
	}
}
