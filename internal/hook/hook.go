package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maxvaer/gmapscan/internal/scanner"
)

// Timeout bounds a single hook invocation.
const Timeout = 30 * time.Second

// resultJSON is the JSON payload sent to the hook command via stdin.
type resultJSON struct {
	API        string `json:"api"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Label      string `json:"label"`
	Reason     string `json:"reason"`
}

// Runner executes a shell command for each reported result.
type Runner struct {
	cmd    string
	stderr io.Writer
	log    *zap.Logger
}

// NewRunner creates a hook runner. cmd is the shell command to execute; its
// stderr and stdout are forwarded to stderr.
func NewRunner(cmd string, stderr io.Writer, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cmd: cmd, stderr: stderr, log: log}
}

// Expand substitutes {api}, {label}, {status}, {method} and {url} in the
// command template.
func (r *Runner) Expand(result *scanner.Result) string {
	status := ""
	if result.HTTPStatus != 0 {
		status = strconv.Itoa(result.HTTPStatus)
	}
	return strings.NewReplacer(
		"{api}", result.API,
		"{label}", string(result.Label),
		"{status}", status,
		"{method}", result.Method,
		"{url}", result.URL,
	).Replace(r.cmd)
}

// Run executes the hook with the result as JSON on stdin. Failures are
// logged and returned but never stop the scan.
func (r *Runner) Run(ctx context.Context, result *scanner.Result) error {
	data, err := json.Marshal(resultJSON{
		API:        result.API,
		Method:     result.Method,
		URL:        result.URL,
		HTTPStatus: result.HTTPStatus,
		Label:      string(result.Label),
		Reason:     result.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal hook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand(result))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = r.stderr
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		r.log.Warn("hook_failed", zap.String("api", result.API), zap.Error(err))
		return fmt.Errorf("hook for %s: %w", result.API, err)
	}
	r.log.Debug("hook_done", zap.String("api", result.API))
	return nil
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
