package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/gmapscan/internal/config"
	"github.com/maxvaer/gmapscan/internal/runner"
	"github.com/maxvaer/gmapscan/pkg/version"
)

var (
	opts    config.Options
	envFile string
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"key", "demo", "apis", "exclude-apis", "endpoints-file", "endpoints-only", "env-file"}},
	{"RATE-LIMIT", []string{"concurrency", "timeout", "delay", "adaptive-throttle"}},
	{"FILTERS", []string{"only", "hide", "include-status", "exclude-status"}},
	{"HTTP", []string{"header", "user-agent", "proxy"}},
	{"OUTPUT", []string{"output-json", "output-csv", "sort", "quiet", "no-color", "redact", "on-result"}},
	{"LOGGING", []string{"verbose", "log-file"}},
}

var rootCmd = &cobra.Command{
	Use:     "gmapscan -k <api-key> [flags]",
	Short:   "Check which Google Maps Platform APIs a key can call",
	Version: version.Version,
	Long: `gmapscan probes a Google Maps Platform API key against the Maps web
service endpoints and reports, per API, whether the key is usable
(VULNERABLE), rejected (SECURE) or inconclusive (UNDETERMINED).`,
	Example: `  gmapscan -k AIzaSy...
  gmapscan -k AIzaSy... -c 20 --timeout 5 --delay 0.5
  gmapscan -k AIzaSy... --output-json report.json --output-csv report.csv
  gmapscan -k AIzaSy... --apis geocode,places --only VULNERABLE
  gmapscan -k AIzaSy... --endpoints-file extra.yaml
  gmapscan -k AIzaSy... --on-result "notify-send '{api} {label}'"
  GMAPS_API_KEY=AIzaSy... gmapscan --redact --sort label
  gmapscan --demo`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}
		key, concurrency, timeout := config.EnvDefaults()
		flags := cmd.Flags()
		if !flags.Changed("key") {
			opts.APIKey = key
		}
		if !flags.Changed("concurrency") {
			opts.Concurrency = concurrency
		}
		if !flags.Changed("timeout") {
			opts.Timeout = timeout
		}
		opts.APIKey = strings.TrimSpace(opts.APIKey)

		if opts.APIKey == "" && !opts.Demo {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
		}
		return opts.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.APIKey, "key", "k", "", "Google Maps API key to test (env: "+config.EnvAPIKey+")")
	f.BoolVar(&opts.Demo, "demo", false, "Render a sample report without sending requests")
	f.StringSliceVar(&opts.IncludeAPIs, "apis", nil, "Only probe APIs whose name contains one of these terms")
	f.StringSliceVar(&opts.ExcludeAPIs, "exclude-apis", nil, "Skip APIs whose name contains one of these terms")
	f.StringVar(&opts.EndpointsFile, "endpoints-file", "", "YAML file with additional endpoints")
	f.BoolVar(&opts.ReplaceBuiltin, "endpoints-only", false, "Probe only the endpoints from --endpoints-file")
	f.StringVar(&envFile, "env-file", ".env", "Dotenv file to load defaults from")

	// Performance
	f.IntVarP(&opts.Concurrency, "concurrency", "c", config.DefaultConcurrency, "Maximum requests in flight (at least 2 are used)")
	opts.Timeout = config.DefaultTimeout
	f.Var(&secondsValue{target: &opts.Timeout}, "timeout", "Per-request timeout (seconds or duration)")
	f.Var(&secondsValue{target: &opts.Delay}, "delay", "Delay between scheduling requests (seconds or duration)")
	f.BoolVar(&opts.AdaptiveThrottle, "adaptive-throttle", false, "Back off on 429/503 responses")

	// Filtering
	f.StringSliceVar(&opts.IncludeLabels, "only", nil, "Only report these verdicts (VULNERABLE,SECURE,UNDETERMINED)")
	f.StringSliceVar(&opts.ExcludeLabels, "hide", nil, "Hide these verdicts from the report")
	f.VarP(&intSliceValue{target: &opts.IncludeStatus}, "include-status", "i", "Only report these HTTP status codes")
	f.VarP(&intSliceValue{target: &opts.ExcludeStatus}, "exclude-status", "x", "Hide these HTTP status codes")

	// Output
	f.StringVar(&opts.OutputJSON, "output-json", "", "Write results as a JSON array to this file")
	f.StringVar(&opts.OutputCSV, "output-csv", "", "Write results as CSV to this file")
	f.StringVar(&opts.SortBy, "sort", "", "Sort the report: label, status, api")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print the report")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.BoolVar(&opts.Redact, "redact", false, "Mask the API key in reports")

	// HTTP
	f.StringSliceVarP(new([]string), "header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP proxy URL (default: from environment)")

	// Hooks
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command per reported result (JSON on stdin; {api} {label} {status} {method} {url})")

	// Logging
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log scan events to stderr")
	f.StringVar(&opts.LogFile, "log-file", "", "Append JSON scan logs to this file (rotated)")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})

	rootCmd.PreRunE = chainPreRun(func(cmd *cobra.Command, args []string) error {
		list, _ := f.GetStringSlice("header")
		headers, err := parseHeaders(list)
		if err != nil {
			return err
		}
		opts.Headers = headers
		return nil
	}, rootCmd.PreRunE)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// chainPreRun combines two PreRunE functions.
func chainPreRun(first, second func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if first != nil {
			if err := first(cmd, args); err != nil {
				return err
			}
		}
		return second(cmd, args)
	}
}

// parseHeaders turns "Key: Value" strings into a header map.
func parseHeaders(list []string) (map[string]string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(list))
	for _, h := range list {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// intSliceValue implements pflag.Value for comma-separated status codes.
type intSliceValue struct {
	target *[]int
}

func (v *intSliceValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	parts := make([]string, len(*v.target))
	for i, val := range *v.target {
		parts[i] = strconv.Itoa(val)
	}
	return strings.Join(parts, ",")
}

func (v *intSliceValue) Set(s string) error {
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 100 || n > 599 {
			return fmt.Errorf("invalid status code %q", p)
		}
		*v.target = append(*v.target, n)
	}
	return nil
}

func (v *intSliceValue) Type() string { return "ints" }

// secondsValue implements pflag.Value for durations that also accept a bare
// number of seconds.
type secondsValue struct {
	target *time.Duration
}

func (v *secondsValue) String() string {
	if v.target == nil {
		return "0s"
	}
	return v.target.String()
}

func (v *secondsValue) Set(s string) error {
	d, err := config.ParseSeconds(s)
	if err != nil {
		return err
	}
	*v.target = d
	return nil
}

func (v *secondsValue) Type() string { return "duration" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	const col = 32
	if pad := col - len(left); pad > 0 {
		left += strings.Repeat(" ", pad)
	}

	right := f.Usage
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
   ____ __  __    _    ____  ____   ____    _    _   _
  / ___|  \/  |  / \  |  _ \/ ___| / ___|  / \  | \ | |
 | |  _| |\/| | / _ \ | |_) \___ \| |     / _ \ |  \| |
 | |_| | |  | |/ ___ \|  __/ ___) | |___ / ___ \| |\  |
  \____|_|  |_/_/   \_\_|   |____/ \____/_/   \_\_| \_|  %s

`, ver)
}
