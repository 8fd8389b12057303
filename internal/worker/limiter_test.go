package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

// allow takes a token for rawURL's host without blocking
func allow(l *Limiter, rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.forHost(host).Allow()
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !allow(limiter, "https://www.wikidata.org/w/api.php") {
			t.Fatalf("request %d throttled with rate disabled", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://www.wikidata.org/wiki/Special:EntityData/Q42.ttl"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "https://query.wikidata.org/sparql"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "https://www.wikidata.org", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_WaitWithDelay_Cancelled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.WaitWithDelay(ctx, "https://www.wikidata.org", time.Second); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	api := "https://www.wikidata.org/w/api.php"

	if err := limiter.Wait(context.Background(), api); err != nil {
		t.Errorf("first wait failed: %v", err)
	}
	if allow(limiter, api) {
		t.Error("expected the host to be out of tokens")
	}
	if !allow(limiter, "https://query.wikidata.org/sparql") {
		t.Error("expected another host to have its own budget")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	if err := limiter.SetRate("https://query.wikidata.org/sparql", 0.1, 1); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}

	if !allow(limiter, "https://query.wikidata.org/sparql?query=x") {
		t.Error("first request should pass")
	}
	if allow(limiter, "https://query.wikidata.org/sparql") {
		t.Error("second request should fail")
	}
	if !allow(limiter, "https://www.wikidata.org/w/api.php") {
		t.Error("other host should pass")
	}

	rps, burst, err := limiter.Rate("https://query.wikidata.org/")
	if err != nil || rps != 0.1 || burst != 1 {
		t.Errorf("expected 0.1/1, got %v/%d (%v)", rps, burst, err)
	}
}

func TestLimiter_SetRateKeepsDefault(t *testing.T) {
	limiter := NewLimiter(10, 4)
	if err := limiter.SetRate("https://query.wikidata.org/sparql", 0, 0); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	rps, burst, _ := limiter.Rate("https://query.wikidata.org/sparql")
	if rps != 10 || burst != 4 {
		t.Errorf("expected default 10/4, got %v/%d", rps, burst)
	}
	if err := limiter.SetRate("not a url", 1, 1); err == nil {
		t.Error("expected error for a URL without host")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://www.wikidata.org/w/api.php?action=compare")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "www.wikidata.org" {
		t.Errorf("expected www.wikidata.org, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
	if _, err := hostOf("/relative/path"); err == nil {
		t.Error("expected error for URL without host")
	}
}
