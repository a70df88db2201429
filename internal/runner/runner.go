package runner

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/config"
	"github.com/maxvaer/gmapscan/internal/endpoints"
	"github.com/maxvaer/gmapscan/internal/filter"
	"github.com/maxvaer/gmapscan/internal/hook"
	"github.com/maxvaer/gmapscan/internal/logging"
	"github.com/maxvaer/gmapscan/internal/output"
	"github.com/maxvaer/gmapscan/internal/scanner"
	"github.com/maxvaer/gmapscan/pkg/version"
)

// Run executes the full scan pipeline, printing the report to stdout and
// status lines to stderr.
func Run(ctx context.Context, opts *config.Options) error {
	return RunWithIO(ctx, opts, os.Stdout, os.Stderr)
}

// RunWithIO is Run with explicit output streams.
func RunWithIO(ctx context.Context, opts *config.Options, stdout, stderr io.Writer) error {
	log, err := logging.NewLogger(opts.LogFile, opts.Verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("scan_id", uuid.NewString()))

	if opts.Demo {
		if !opts.Quiet {
			fmt.Fprintf(stderr, "[*] Demo mode: no network requests are made\n")
		}
		log.Info("demo_started")
		return report(ctx, opts, demoResults(), 0, stdout, stderr, log)
	}

	// 1. Load and select endpoints.
	eps, err := endpoints.Load(opts.EndpointsFile, opts.ReplaceBuiltin)
	if err != nil {
		return fmt.Errorf("loading endpoints: %w", err)
	}
	eps = endpoints.Select(eps, opts.IncludeAPIs, opts.ExcludeAPIs)
	if len(eps) == 0 {
		return fmt.Errorf("no endpoints selected (check --apis / --exclude-apis)")
	}

	// 2. Create HTTP requester.
	req, err := scanner.NewRequester(opts)
	if err != nil {
		return fmt.Errorf("creating requester: %w", err)
	}

	items := make([]scanner.WorkItem, len(eps))
	for i, ep := range eps {
		items[i] = scanner.WorkItem{Index: i, Endpoint: ep}
	}

	if !opts.Quiet {
		printBanner(stderr, opts, len(items), colorEnabled(opts, stderr))
	}
	log.Info("scan_started",
		zap.Int("endpoints", len(items)),
		zap.Int("concurrency", max(scanner.MinWorkers, opts.Concurrency)),
		zap.Duration("timeout", opts.Timeout),
		zap.Duration("delay", opts.Delay),
	)

	// 3. Probe.
	var notices io.Writer
	if !opts.Quiet {
		notices = stderr
	}
	workerCfg := scanner.WorkerConfig{
		Concurrency: opts.Concurrency,
		Key:         opts.APIKey,
		Throttler:   scanner.NewThrottler(opts.Delay, opts.AdaptiveThrottle, notices),
		Logger:      log,
	}

	progress := output.NewProgress(stderr, len(items), !opts.Quiet && isTerminal(stderr))
	progress.Start()
	start := time.Now()

	results := make([]scanner.Result, len(items))
	seen := make([]bool, len(items))
	for r := range scanner.RunWorkerPool(ctx, req, items, workerCfg) {
		results[r.Index] = r
		seen[r.Index] = true
		progress.Increment(r.Label == classify.Vulnerable, r.Error != nil)
	}
	progress.Stop()
	elapsed := time.Since(start)

	// Endpoints never scheduled because the scan was interrupted.
	for i, ok := range seen {
		if !ok {
			results[i] = scanner.NotTested(items[i], items[i].Endpoint.Expand(opts.APIKey))
		}
	}

	// 4. Report.
	if err := report(ctx, opts, results, elapsed, stdout, stderr, log); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func report(
	ctx context.Context,
	opts *config.Options,
	results []scanner.Result,
	elapsed time.Duration,
	stdout, stderr io.Writer,
	log *zap.Logger,
) error {
	if opts.Redact {
		for i := range results {
			redact(&results[i], opts.APIKey)
		}
	}

	chain := buildChain(opts)

	// The table shows what passes the filter chain; exports keep every row.
	display, exports, err := createWriters(opts, stdout)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer display.Close()
	defer exports.Close()

	var hookRunner *hook.Runner
	if opts.OnResultCmd != "" {
		hookRunner = hook.NewRunner(opts.OnResultCmd, stderr, log)
	}

	if err := display.WriteHeader(); err != nil {
		return err
	}
	if err := exports.WriteHeader(); err != nil {
		return err
	}

	var stats output.Stats
	for i := range results {
		result := &results[i]
		if filtered, reason := chain.Apply(result); filtered {
			result.Filtered = true
			result.FilterReason = reason
		}
		stats.Add(result)
		if err := exports.WriteResult(result); err != nil {
			return err
		}
		if result.Filtered {
			continue
		}
		if err := display.WriteResult(result); err != nil {
			return err
		}
		if hookRunner != nil {
			if err := hookRunner.Run(ctx, result); err != nil && !opts.Quiet {
				fmt.Fprintf(stderr, "[hook] error: %v\n", err)
			}
		}
	}

	stats.Duration = elapsed
	if err := display.WriteFooter(stats); err != nil {
		return err
	}
	if err := exports.WriteFooter(stats); err != nil {
		return err
	}
	if err := display.Close(); err != nil {
		return err
	}
	if err := exports.Close(); err != nil {
		return err
	}

	log.Info("scan_finished",
		zap.Int("total", stats.Total),
		zap.Int("vulnerable", stats.Vulnerable),
		zap.Int("secure", stats.Secure),
		zap.Int("undetermined", stats.Undetermined),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration),
	)

	if !opts.Quiet {
		if opts.OutputJSON != "" {
			fmt.Fprintf(stderr, "[+] Saved JSON output to %s\n", opts.OutputJSON)
		}
		if opts.OutputCSV != "" {
			fmt.Fprintf(stderr, "[+] Saved CSV output to %s\n", opts.OutputCSV)
		}
	}
	return nil
}

func buildChain(opts *config.Options) *filter.Chain {
	chain := filter.NewChain()
	if len(opts.IncludeLabels) > 0 || len(opts.ExcludeLabels) > 0 {
		chain.Add(filter.NewLabelFilter(opts.IncludeLabels, opts.ExcludeLabels))
	}
	if len(opts.IncludeStatus) > 0 || len(opts.ExcludeStatus) > 0 {
		chain.Add(filter.NewStatusFilter(opts.IncludeStatus, opts.ExcludeStatus))
	}
	return chain
}

// createWriters returns the stdout table and the file exports, each wrapped
// for sorting when requested. Writers already opened are closed if a later
// one fails.
func createWriters(opts *config.Options, stdout io.Writer) (output.Writer, output.Writer, error) {
	var files []output.Writer
	if opts.OutputJSON != "" {
		jw, err := output.NewJSONWriter(opts.OutputJSON)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, jw)
	}
	if opts.OutputCSV != "" {
		cw, err := output.NewCSVWriter(opts.OutputCSV)
		if err != nil {
			_ = output.NewMultiWriter(files...).Close()
			return nil, nil, err
		}
		files = append(files, cw)
	}

	var display output.Writer = output.NewTableWriter(stdout, !colorEnabled(opts, stdout))
	var exports output.Writer = output.NewMultiWriter(files...)
	if opts.SortBy != "" {
		display = output.NewSortedWriter(display, opts.SortBy)
		exports = output.NewSortedWriter(exports, opts.SortBy)
	}
	return &closeOnce{Writer: display}, &closeOnce{Writer: exports}, nil
}

// closeOnce lets report close explicitly to surface errors while still
// deferring Close on early returns.
type closeOnce struct {
	output.Writer
	closed bool
}

func (c *closeOnce) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Writer.Close()
}

// redact masks the API key wherever it appears in a result.
func redact(r *scanner.Result, key string) {
	if key == "" {
		return
	}
	mask := maskKey(key)
	rep := strings.NewReplacer(url.QueryEscape(key), mask, key, mask)
	r.URL = rep.Replace(r.URL)
	r.Reason = rep.Replace(r.Reason)
	r.ResponseSnippet = rep.Replace(r.ResponseSnippet)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "REDACTED"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func colorEnabled(opts *config.Options, w io.Writer) bool {
	return !opts.NoColor && isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func demoResults() []scanner.Result {
	return []scanner.Result{
		{Index: 0, API: "Staticmap API", Method: "GET", HTTPStatus: 403, Label: classify.Secure, Reason: "403 The Google Maps Platform server rejected your request. This API project is not authorized to use this API."},
		{Index: 1, API: "Geocode API", Method: "GET", HTTPStatus: 200, Label: classify.Vulnerable, Reason: "200 OK with data-looking JSON", ResponseSnippet: `{"results":[...}]`},
		{Index: 2, API: "Directions API", Method: "GET", HTTPStatus: 200, Label: classify.Vulnerable, Reason: "200 OK with data-looking JSON", ResponseSnippet: `{"routes":[...}]`},
		{Index: 3, API: "Place Details API", Method: "GET", HTTPStatus: 200, Label: classify.Undetermined, Reason: "200 OK with JSON body that lacks known data fields", ResponseSnippet: `{"unknown": "value"}`},
		{Index: 4, API: "Playable Locations API", Method: "POST", HTTPStatus: 404, Label: classify.Secure, Reason: "404 <!DOCTYPE html> ...", ResponseSnippet: "<!doctype html>"},
	}
}

func printBanner(w io.Writer, opts *config.Options, endpointCount int, color bool) {
	const (
		cyan   = "\033[36m"
		white  = "\033[97m"
		dim    = "\033[2m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	c, wh, d, y, rs := cyan, white, dim, yellow, reset
	if !color {
		c, wh, d, y, rs = "", "", "", "", ""
	}

	ver := version.Version
	if ver != "dev" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	fmt.Fprintf(w, "\n%s  gmapscan%s %s%s%s\n", c, rs, d, ver, rs)
	fmt.Fprintf(w, "%s  Google Maps Platform API key exposure check%s\n", wh, rs)
	fmt.Fprintf(w, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(w, "  %sKey:%s          %s%s%s\n", d, rs, wh, maskKey(opts.APIKey), rs)
	fmt.Fprintf(w, "  %sEndpoints:%s    %s%d%s\n", d, rs, wh, endpointCount, rs)
	fmt.Fprintf(w, "  %sConcurrency:%s  %s%d%s\n", d, rs, y, max(scanner.MinWorkers, opts.Concurrency), rs)
	fmt.Fprintf(w, "  %sTimeout:%s      %s%s%s\n", d, rs, y, opts.Timeout, rs)
	if opts.Delay > 0 {
		fmt.Fprintf(w, "  %sDelay:%s        %s%s%s\n", d, rs, y, opts.Delay, rs)
	}
	fmt.Fprintf(w, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
