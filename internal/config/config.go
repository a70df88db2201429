package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables consulted for defaults. Flags always win.
const (
	EnvAPIKey      = "GMAPS_API_KEY"
	EnvConcurrency = "GMAPSCAN_CONCURRENCY"
	EnvTimeout     = "GMAPSCAN_TIMEOUT"
)

// Defaults used when neither a flag nor the environment sets a value.
const (
	DefaultConcurrency = 10
	DefaultTimeout     = 8 * time.Second
)

// Options holds all configuration for a gmapscan run.
type Options struct {
	// Target
	APIKey         string
	EndpointsFile  string // YAML file with extra endpoints
	ReplaceBuiltin bool   // use only EndpointsFile entries
	IncludeAPIs    []string
	ExcludeAPIs    []string
	Demo           bool

	// Performance
	Concurrency      int
	Timeout          time.Duration
	Delay            time.Duration // between scheduling requests
	AdaptiveThrottle bool

	// Result filtering
	IncludeLabels []string
	ExcludeLabels []string
	IncludeStatus []int
	ExcludeStatus []int

	// Output
	OutputJSON string
	OutputCSV  string
	SortBy     string // "", "api", "label", "status"
	Quiet      bool
	NoColor    bool
	Redact     bool

	// HTTP
	Headers   map[string]string
	UserAgent string
	Proxy     string

	// Hooks
	OnResultCmd string

	// Logging
	Verbose bool
	LogFile string
}

// LoadEnv reads a .env file from the working directory (if present) into the
// process environment. A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// EnvDefaults returns the API key, concurrency, and timeout defaults taken
// from the environment, falling back to the built-in defaults.
func EnvDefaults() (key string, concurrency int, timeout time.Duration) {
	key = strings.TrimSpace(os.Getenv(EnvAPIKey))

	concurrency = DefaultConcurrency
	if v := os.Getenv(EnvConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			concurrency = n
		}
	}

	timeout = DefaultTimeout
	if v := os.Getenv(EnvTimeout); v != "" {
		if d, err := ParseSeconds(v); err == nil && d > 0 {
			timeout = d
		}
	}
	return key, concurrency, timeout
}

// ParseSeconds parses a Go duration ("8s", "500ms") or a bare number of
// seconds ("8", "0.5").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use seconds or a unit, e.g. 8 or 500ms)", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

var validLabels = map[string]struct{}{
	"VULNERABLE":   {},
	"SECURE":       {},
	"UNDETERMINED": {},
}

// Validate checks option combinations that pflag cannot express.
func (o *Options) Validate() error {
	if o.Concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	if o.Delay < 0 {
		return fmt.Errorf("--delay must not be negative")
	}
	if o.SortBy != "" && o.SortBy != "api" && o.SortBy != "label" && o.SortBy != "status" {
		return fmt.Errorf("--sort must be one of: api, label, status")
	}
	if len(o.IncludeLabels) > 0 && len(o.ExcludeLabels) > 0 {
		return fmt.Errorf("--only and --hide are mutually exclusive")
	}
	if len(o.IncludeStatus) > 0 && len(o.ExcludeStatus) > 0 {
		return fmt.Errorf("--include-status and --exclude-status are mutually exclusive")
	}
	for i, l := range o.IncludeLabels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if _, ok := validLabels[l]; !ok {
			return fmt.Errorf("unknown label %q (want VULNERABLE, SECURE or UNDETERMINED)", l)
		}
		o.IncludeLabels[i] = l
	}
	for i, l := range o.ExcludeLabels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if _, ok := validLabels[l]; !ok {
			return fmt.Errorf("unknown label %q (want VULNERABLE, SECURE or UNDETERMINED)", l)
		}
		o.ExcludeLabels[i] = l
	}
	if o.ReplaceBuiltin && o.EndpointsFile == "" {
		return fmt.Errorf("--endpoints-only requires --endpoints-file")
	}
	if !o.Demo && strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("missing API key: use --key, set %s, or run with --demo", EnvAPIKey)
	}
	return nil
}
