package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"recordguard-hq/recordguard/pkg/server/auth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestConfig_Check(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}},
		{name: "rate only", cfg: Config{Enabled: true, RequestsPerSecond: 5}},
		{name: "concurrency only", cfg: Config{Enabled: true, MaxConcurrent: 2}},
		{name: "no limits", cfg: Config{Enabled: true}, wantErr: true},
		{name: "negative rate", cfg: Config{Enabled: true, RequestsPerSecond: -1, MaxConcurrent: 1}, wantErr: true},
		{name: "negative burst", cfg: Config{Enabled: true, RequestsPerSecond: 1, Burst: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Check(); (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLimiter_Rate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := NewLimiter(Config{Enabled: true, RequestsPerSecond: 2, Burst: 2}, WithClock(clock.Now))

	for i := range 2 {
		if d := l.Acquire("a"); !d.Allowed {
			t.Fatalf("request %d rejected: %+v", i, d)
		}
		l.Release("a")
	}
	d := l.Acquire("a")
	if d.Allowed || d.Reason != "rate" {
		t.Fatalf("third request = %+v, want rate rejection", d)
	}
	if d.RetryAfter != 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 500ms", d.RetryAfter)
	}

	// Callers are independent.
	if d := l.Acquire("b"); !d.Allowed {
		t.Errorf("other caller rejected: %+v", d)
	}

	clock.Advance(500 * time.Millisecond)
	if d := l.Acquire("a"); !d.Allowed {
		t.Errorf("request after refill rejected: %+v", d)
	}
}

func TestLimiter_Concurrency(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, MaxConcurrent: 1})

	if d := l.Acquire("a"); !d.Allowed {
		t.Fatalf("first request rejected: %+v", d)
	}
	if d := l.Acquire("a"); d.Allowed || d.Reason != "concurrency" {
		t.Fatalf("second in-flight request = %+v, want concurrency rejection", d)
	}
	l.Release("a")
	if d := l.Acquire("a"); !d.Allowed {
		t.Errorf("request after release rejected: %+v", d)
	}
}

func TestLimiter_SweepsIdleCallers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := NewLimiter(Config{Enabled: true, RequestsPerSecond: 1, IdleTTL: time.Minute}, WithClock(clock.Now))

	l.Acquire("idle")
	l.Release("idle")
	l.Acquire("busy")

	clock.Advance(2 * time.Minute)
	l.Acquire("new")
	if got := l.Callers(); got != 2 {
		t.Errorf("Callers() = %d, want 2 (busy and new)", got)
	}
}

func TestMiddleware(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := NewLimiter(Config{Enabled: true, RequestsPerSecond: 1, Burst: 1}, WithClock(clock.Now))
	handler := Middleware(l, []string{"/health"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func(path, remote string, p *auth.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		if p != nil {
			req = req.WithContext(auth.WithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/v1/schemas", "10.0.0.1:1000", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do("/v1/schemas", "10.0.0.1:2000", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}

	// Authenticated callers are keyed by user, not address.
	if rec := do("/v1/schemas", "10.0.0.1:3000", &auth.Principal{UserID: "ops"}); rec.Code != http.StatusOK {
		t.Errorf("authenticated request status = %d, want 200", rec.Code)
	}
	if rec := do("/health", "10.0.0.1:4000", nil); rec.Code != http.StatusOK {
		t.Errorf("exempt path status = %d, want 200", rec.Code)
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	if got := CallerKey(req); got != "ip:192.0.2.7" {
		t.Errorf("CallerKey() = %q", got)
	}
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: "u1"}))
	if got := CallerKey(req); got != "user:u1" {
		t.Errorf("CallerKey() = %q", got)
	}
}
