package scanner

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Throttler spaces out request scheduling. Its base delay is the --delay
// value. When adaptive mode is on, 429/503 responses or a run of transport
// errors double the delay (up to maxBackoff), and healthy responses halve it
// back toward the base.
type Throttler struct {
	mu          sync.Mutex
	baseDelay   time.Duration
	current     time.Duration
	consecutive int
	adaptive    bool
	notify      io.Writer // nil = silent
}

// NewThrottler creates a throttler. notify receives one-line notices when
// the delay changes.
func NewThrottler(baseDelay time.Duration, adaptive bool, notify io.Writer) *Throttler {
	return &Throttler{
		baseDelay: baseDelay,
		current:   baseDelay,
		adaptive:  adaptive,
		notify:    notify,
	}
}

// Delay returns the wait before scheduling the next request.
func (t *Throttler) Delay() time.Duration {
	if !t.adaptive {
		return t.baseDelay
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// RecordStatus updates the throttler with a response status code.
func (t *Throttler) RecordStatus(statusCode int) {
	if !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		t.consecutive++
		t.backoff(fmt.Sprintf("Rate limited (HTTP %d)", statusCode))
		return
	}
	if t.consecutive == 0 {
		return
	}
	t.consecutive = 0
	next := max(t.current/2, t.baseDelay)
	if next != t.current {
		t.current = next
		t.notifyf("[+] Recovering, delay now %s/req", t.current)
	}
}

// RecordError counts a transport error. Three in a row trigger a back-off.
func (t *Throttler) RecordError() {
	if !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	if t.consecutive >= 3 {
		t.backoff("Multiple errors")
	}
}

// backoff must be called with mu held.
func (t *Throttler) backoff(why string) {
	next := min(max(t.current*2, minBackoff), maxBackoff)
	if next != t.current {
		t.current = next
		t.notifyf("[!] %s, backing off to %s/req", why, t.current)
	}
}

func (t *Throttler) notifyf(format string, args ...any) {
	if t.notify == nil {
		return
	}
	fmt.Fprintf(t.notify, "\n"+format+"\n", args...)
}
