package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks probe progress and redraws a single status line.
type Progress struct {
	w          io.Writer
	total      int
	completed  atomic.Int64
	vulnerable atomic.Int64
	errors     atomic.Int64
	start      time.Time
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
}

// NewProgress creates a progress tracker writing to w. A disabled tracker
// only counts. Call Start to begin display updates.
func NewProgress(w io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		w:       w,
		total:   total,
		start:   time.Now(),
		done:    make(chan struct{}),
		enabled: enabled,
	}
}

// Start begins periodically redrawing the progress line.
func (p *Progress) Start() {
	if !p.enabled {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.print()
			case <-p.done:
				fmt.Fprint(p.w, "\r\033[K")
				return
			}
		}
	}()
}

// Increment records a completed probe.
func (p *Progress) Increment(vulnerable, failed bool) {
	p.completed.Add(1)
	if vulnerable {
		p.vulnerable.Add(1)
	}
	if failed {
		p.errors.Add(1)
	}
}

// Completed returns the number of probes recorded so far.
func (p *Progress) Completed() int {
	return int(p.completed.Load())
}

// Stop ends the display and clears the line. Safe to call more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Progress) print() {
	completed := p.completed.Load()
	pct := float64(0)
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\r\033[K[%3.0f%%] %d/%d endpoints | Vulnerable: %d | Errors: %d | %s",
		pct, completed, p.total,
		p.vulnerable.Load(), p.errors.Load(),
		time.Since(p.start).Round(100*time.Millisecond))
}
