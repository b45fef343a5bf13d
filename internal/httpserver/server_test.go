package httpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-content/internal/health"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func okRoutes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestNewHandler_SecurityHeadersEverywhere(t *testing.T) {
	h := NewHandler(&Options{APIRoutes: okRoutes})

	for _, path := range []string{"/api/ping", "/missing"} {
		rec := do(h, http.MethodGet, path)
		for _, hdr := range []string{"Strict-Transport-Security", "X-Content-Type-Options", "X-Frame-Options"} {
			if rec.Header().Get(hdr) == "" {
				t.Errorf("%s: %s missing", path, hdr)
			}
		}
	}
}

func TestNewHandler_NotFoundIsJSON(t *testing.T) {
	rec := do(NewHandler(&Options{}), http.MethodGet, "/nope")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "{\"error\":\"not found\"}\n" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestNewHandler_MethodNotAllowed(t *testing.T) {
	rec := do(NewHandler(&Options{APIRoutes: okRoutes}), http.MethodPost, "/api/ping")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestNewHandler_HeadServedByGet(t *testing.T) {
	rec := do(NewHandler(&Options{APIRoutes: okRoutes}), http.MethodHead, "/api/ping")
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d", rec.Code)
	}
}

func TestNewHandler_RequestID(t *testing.T) {
	h := NewHandler(&Options{APIRoutes: okRoutes})

	a := do(h, http.MethodGet, "/api/ping").Header().Get("X-Request-Id")
	b := do(h, http.MethodGet, "/api/ping").Header().Get("X-Request-Id")
	if a == "" || a == b {
		t.Fatalf("request ids %q, %q should be set and unique", a, b)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ping", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "upstream-1" {
		t.Fatalf("propagated id = %q", got)
	}
}

func TestNewHandler_HealthRoutes(t *testing.T) {
	h := NewHandler(&Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.Fixed(false, "content: no active snapshot"),
	})

	if rec := do(h, http.MethodGet, "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("healthy = %d", rec.Code)
	}
	rec := do(h, http.MethodGet, "/-/ready")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "no active snapshot") {
		t.Fatalf("ready = %d %q", rec.Code, rec.Body.String())
	}

	if rec := do(NewHandler(&Options{}), http.MethodGet, "/-/ready"); rec.Code != http.StatusNotFound {
		t.Fatalf("nil readiness probe should not register a route, got %d", rec.Code)
	}
}

type stubInfo struct{}

func (stubInfo) ContentHash() string { return "aaaaaaaaaaaabbbbbbbb" }
func (stubInfo) Fingerprint() string { return "ccc" }

func TestNewHandler_ContentHeaders(t *testing.T) {
	rec := do(NewHandler(&Options{ContentInfo: stubInfo{}, APIRoutes: okRoutes}), http.MethodGet, "/api/ping")
	if got := rec.Header().Get("X-Content-Hash"); got != "aaaaaaaaaaaa" {
		t.Fatalf("X-Content-Hash = %q", got)
	}
	if got := rec.Header().Get("X-Content-Fingerprint"); got != "ccc" {
		t.Fatalf("X-Content-Fingerprint = %q", got)
	}

	rec = do(NewHandler(&Options{APIRoutes: okRoutes}), http.MethodGet, "/api/ping")
	if rec.Header().Get("X-Content-Hash") != "" {
		t.Fatal("content header set without ContentInfo")
	}
}

func TestNewHandler_RateLimitSeesClientIP(t *testing.T) {
	var seen string
	rl := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = httpmw.ClientIPFromContext(r.Context())
			if seen == "198.51.100.9" {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	h := NewHandler(&Options{RateLimitMW: rl, APIRoutes: okRoutes})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", http.NoBody)
	req.RemoteAddr = "198.51.100.9:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "198.51.100.9" {
		t.Fatalf("rate limiter saw ip %q", seen)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") == "" {
		t.Fatal("429 responses still carry security headers")
	}
}

func TestNewHandler_MetricsMW(t *testing.T) {
	var calls int
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			next.ServeHTTP(w, r)
		})
	}
	do(NewHandler(&Options{MetricsMW: mw, APIRoutes: okRoutes}), http.MethodGet, "/api/ping")
	if calls != 1 {
		t.Fatalf("metrics middleware called %d times", calls)
	}
}

func TestNewHandler_Recover(t *testing.T) {
	var panics int
	routes := func(r chi.Router) {
		r.Get("/api/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	}

	h := NewHandler(&Options{UseRecoverMW: true, OnPanic: func() { panics++ }, APIRoutes: routes})
	rec := do(h, http.MethodGet, "/api/boom")
	if rec.Code != http.StatusInternalServerError || panics != 1 {
		t.Fatalf("status = %d, panics = %d", rec.Code, panics)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("500 responses still carry security headers")
	}
}

func TestNewHandler_CompressesJSON(t *testing.T) {
	routes := func(r chi.Router) {
		r.Get("/api/big", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":"` + strings.Repeat("x", 4096) + `"}`))
		})
	}
	h := NewHandler(&Options{APIRoutes: routes})

	req := httptest.NewRequest(http.MethodGet, "/api/big", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	rec = do(h, http.MethodGet, "/api/big")
	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatal("compressed without Accept-Encoding")
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := NewServer(":1234", http.NotFoundHandler())
	if srv.Addr != ":1234" || srv.ReadHeaderTimeout != DefaultReadHeaderTimeout ||
		srv.WriteTimeout != DefaultWriteTimeout || srv.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Fatalf("server = %+v", srv)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStart_ServeAndShutdown(t *testing.T) {
	port := freePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, &Options{Logger: log.Nop(), Port: port, APIRoutes: okRoutes})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/api/ping", port)
	var resp *http.Response
	for i := 0; i < 20; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := freePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, &Options{Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer stop(ctx)

	if _, err := Start(ctx, &Options{Port: port}); err == nil {
		t.Fatal("expected listen error")
	}
}
