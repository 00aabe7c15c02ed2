package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsNormalRequests(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()

	rec := httptest.NewRecorder()
	rl.Wrap(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_BlocksRepeatedReports(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	h := rl.Wrap(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/v1/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/admin/v1/report", nil))
	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", rec2.Code)
	}
	if rec2.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429 response")
	}
}

func TestRateLimitMiddleware_RulesAreIndependent(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	h := rl.Wrap(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/v1/report", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/attempts", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("attempts request: expected 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_PerClientIP(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()
	h := rl.Wrap(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodPost, "/admin/v1/report", nil)
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s: expected 200, got %d", ip, rec.Code)
		}
	}
	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("expected 2 limiters, got %d", got)
	}
}

func TestRateLimitMiddleware_UnmatchedPassesThrough(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger(), Rule{Method: http.MethodPost, Prefix: "/admin/v1/report", RPS: rate.Every(time.Hour), Burst: 1})
	defer rl.Stop()
	h := rl.Wrap(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if got := rl.LimiterCount(); got != 0 {
		t.Errorf("expected no limiters for unmatched paths, got %d", got)
	}
}

func TestRateLimitMiddleware_EvictsStaleEntries(t *testing.T) {
	rl := NewRateLimitMiddleware(testLogger())
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.nowFn = func() time.Time { return now }
	rl.Wrap(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/v1/health", nil))
	if rl.LimiterCount() != 1 {
		t.Fatalf("expected 1 limiter, got %d", rl.LimiterCount())
	}

	now = now.Add(staleLimiterTTL + time.Second)
	rl.evictStale()
	if rl.LimiterCount() != 0 {
		t.Errorf("expected stale limiter evicted, got %d", rl.LimiterCount())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": " 198.51.100.2 "}, remote: "10.0.0.1:1234", want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.9", want: "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
