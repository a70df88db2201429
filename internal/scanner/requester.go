package scanner

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxvaer/gmapscan/internal/config"
	"github.com/maxvaer/gmapscan/internal/endpoints"
	"github.com/maxvaer/gmapscan/pkg/version"
)

// maxBodySize caps how much of a response body is read for classification.
const maxBodySize = 1 << 20

// Response holds the parts of an HTTP response the classifier needs.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	URL         string
	Duration    time.Duration
}

// Requester wraps an HTTP client for probing Maps Platform endpoints.
type Requester struct {
	client    *http.Client
	headers   map[string]string
	userAgent string
}

// NewRequester creates a Requester from the provided options.
func NewRequester(opts *config.Options) (*Requester, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
		MaxIdleConnsPerHost: opts.Concurrency,
		MaxIdleConns:        opts.Concurrency * 2,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "gmapscan/" + strings.TrimPrefix(version.Version, "v")
	}

	return &Requester{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		headers:   opts.Headers,
		userAgent: ua,
	}, nil
}

// Do sends the endpoint's representative request with key substituted into
// its URL template. POST endpoints send their JSON body.
func (r *Requester) Do(ctx context.Context, ep endpoints.Endpoint, key string) (*Response, error) {
	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}
	targetURL := ep.Expand(key)

	var body io.Reader
	if method == http.MethodPost {
		payload := ep.Body
		if payload == "" {
			payload = "{}"
		}
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body for %s: %w", ep.Name, err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
		URL:         targetURL,
		Duration:    time.Since(start),
	}, nil
}
