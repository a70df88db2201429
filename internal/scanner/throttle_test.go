package scanner

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestThrottlerDisabledKeepsBase(t *testing.T) {
	th := NewThrottler(100*time.Millisecond, false, nil)
	th.RecordStatus(429)
	th.RecordError()
	th.RecordError()
	th.RecordError()
	if d := th.Delay(); d != 100*time.Millisecond {
		t.Fatalf("expected base delay, got %s", d)
	}
}

func TestThrottlerBacksOffAndRecovers(t *testing.T) {
	var notices bytes.Buffer
	th := NewThrottler(0, true, &notices)

	th.RecordStatus(429)
	if d := th.Delay(); d != minBackoff {
		t.Fatalf("expected %s after first 429, got %s", minBackoff, d)
	}
	th.RecordStatus(503)
	if d := th.Delay(); d != 2*minBackoff {
		t.Fatalf("expected %s after second throttle, got %s", 2*minBackoff, d)
	}

	th.RecordStatus(200)
	if d := th.Delay(); d != minBackoff {
		t.Fatalf("expected halved delay %s, got %s", minBackoff, d)
	}
	if !strings.Contains(notices.String(), "Rate limited (HTTP 429)") {
		t.Errorf("expected back-off notice, got %q", notices.String())
	}

	// A healthy response without a preceding throttle leaves the delay alone.
	th.RecordStatus(200)
	if d := th.Delay(); d != minBackoff {
		t.Fatalf("expected delay unchanged, got %s", d)
	}
}

func TestThrottlerCapsAtMax(t *testing.T) {
	th := NewThrottler(0, true, nil)
	for i := 0; i < 20; i++ {
		th.RecordStatus(429)
	}
	if d := th.Delay(); d != maxBackoff {
		t.Fatalf("expected cap %s, got %s", maxBackoff, d)
	}
}

func TestThrottlerErrorsNeedThreeInARow(t *testing.T) {
	th := NewThrottler(0, true, nil)
	th.RecordError()
	th.RecordError()
	if d := th.Delay(); d != 0 {
		t.Fatalf("expected no back-off after two errors, got %s", d)
	}
	th.RecordError()
	if d := th.Delay(); d != minBackoff {
		t.Fatalf("expected back-off after three errors, got %s", d)
	}
}
