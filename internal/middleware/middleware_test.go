package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// okHandler is a simple handler that returns 200 OK.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func request(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/session/messages", nil)
	req.RemoteAddr = remote
	return req
}

func TestRateLimit_BlocksOverBurst(t *testing.T) {
	l := NewRateLimiter(1, 2)
	defer l.Stop()
	handler := l.Middleware()(okHandler)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, request("10.0.0.1:12345"))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, request("10.0.0.1:12345"))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rr.Code)
	}

	// Another IP has its own bucket.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, request("10.0.0.2:12345"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected other IP to pass, got %d", rr.Code)
	}
}

func TestRateLimit_Evict(t *testing.T) {
	l := NewRateLimiter(1, 1)
	defer l.Stop()
	l.Allow("1.1.1.1")

	l.evict(time.Now())
	if len(l.limiters) != 1 {
		t.Fatal("fresh entry should survive eviction")
	}
	l.evict(time.Now().Add(staleAfter + time.Second))
	if len(l.limiters) != 0 {
		t.Error("stale entry should be evicted")
	}
	l.Stop()
}

func TestClientIP(t *testing.T) {
	req := request("192.168.1.1:999")
	if got := clientIP(req); got != "192.168.1.1" {
		t.Errorf("expected remote addr ip, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Errorf("expected first forwarded ip, got %s", got)
	}
	if got := clientIP(request("no-port")); got != "no-port" {
		t.Errorf("expected raw remote addr, got %s", got)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://a.test", "http://b.test"}, okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/connections", nil)
	req.Header.Set("Origin", "http://b.test")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("expected empty 200 preflight, got %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://b.test" {
		t.Errorf("expected echoed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	req.Header.Set("Origin", "http://evil.test")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unknown origin, got %q", got)
	}
	if rr.Body.String() != "ok" {
		t.Error("expected request to reach the handler")
	}
}
