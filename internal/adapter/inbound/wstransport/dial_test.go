package wstransport

import (
	"testing"
	"time"
)

func TestCalcBackoffDelayDoublesUpToCap(t *testing.T) {
	cfg := BackoffConfig{Base: 1 * time.Second, Cap: 8 * time.Second, MaxRetries: 10}

	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, c := range cases {
		got := calcBackoffDelay(cfg, c.retry)
		if got != c.want {
			t.Errorf("calcBackoffDelay(retry=%d) = %v, want %v", c.retry, got, c.want)
		}
	}
}

func TestJitterStaysInRange(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		j := jitter(d)
		if j < 0 || j >= d {
			t.Fatalf("jitter(%v) = %v, out of [0, %v)", d, j, d)
		}
	}
}

func TestJitterZeroForNonPositiveDuration(t *testing.T) {
	if got := jitter(0); got != 0 {
		t.Fatalf("jitter(0) = %v, want 0", got)
	}
	if got := jitter(-1); got != 0 {
		t.Fatalf("jitter(-1) = %v, want 0", got)
	}
}

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()
	if cfg.Base != 1*time.Second || cfg.Cap != 60*time.Second || cfg.MaxRetries != 10 {
		t.Fatalf("unexpected default backoff config: %+v", cfg)
	}
}
