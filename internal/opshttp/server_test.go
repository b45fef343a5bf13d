package opshttp

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

	"github.com/keithlinneman/linnemanlabs-content/internal/health"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// serve runs a request through NewHandler from a loopback peer.
func serve(t *testing.T, opts *Options, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	NewHandler(log.Nop(), opts).ServeHTTP(rec, req)
	return rec
}

// Start lifecycle

func TestStart_ServesAndStops(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), &Options{Port: port, Health: health.Fixed(true, "")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("got %d %q", resp.StatusCode, body)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := stop(sctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(sctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if _, err := http.Get(url); err == nil {
		t.Fatal("server still accepting connections after shutdown")
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), &Options{Port: port})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer stop(ctx)

	if _, err := Start(ctx, log.Nop(), &Options{Port: port}); err == nil {
		t.Fatal("expected error for port conflict")
	}
}

// Routes

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name     string
		opts     *Options
		path     string
		wantCode int
		wantBody string
	}{
		{"healthy", &Options{Health: health.Fixed(true, "")}, "/-/healthy", http.StatusOK, "ok"},
		{"unhealthy", &Options{Health: health.Fixed(false, "something broke")}, "/-/healthy", http.StatusServiceUnavailable, "something broke"},
		{"ready", &Options{Readiness: health.Fixed(true, "")}, "/-/ready", http.StatusOK, "ready"},
		{"not ready", &Options{Readiness: health.Fixed(false, "content: no active snapshot")}, "/-/ready", http.StatusServiceUnavailable, "no active snapshot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.opts, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_ShutdownGate(t *testing.T) {
	var gate health.ShutdownGate
	opts := &Options{Readiness: gate.Probe()}

	if rec := serve(t, opts, "/-/ready"); rec.Code != http.StatusOK {
		t.Fatalf("before drain: %d", rec.Code)
	}
	gate.Set("draining")
	if rec := serve(t, opts, "/-/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("after drain: %d", rec.Code)
	}
}

func TestHandler_Metrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP content_collection_entries\n"))
	})

	rec := serve(t, &Options{Metrics: metricsHandler}, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "content_collection_entries") {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	if rec := serve(t, &Options{}, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("nil metrics: status = %d, want 404", rec.Code)
	}
}

func TestHandler_Status(t *testing.T) {
	status := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ready":true}`))
	})
	rec := serve(t, &Options{Status: status}, "/-/status")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ready":true}` {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandler_Pprof(t *testing.T) {
	if rec := serve(t, &Options{EnablePprof: true}, "/debug/pprof/"); rec.Code != http.StatusOK {
		t.Fatalf("enabled: status = %d", rec.Code)
	}
	if rec := serve(t, &Options{}, "/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled: status = %d, want 404", rec.Code)
	}
}

func TestHandler_RecoversPanics(t *testing.T) {
	var panics int
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("status broke") })

	rec := serve(t, &Options{Status: boom, OnPanic: func() { panics++ }}, "/-/status")
	if rec.Code != http.StatusInternalServerError || panics != 1 {
		t.Fatalf("status = %d, panics = %d", rec.Code, panics)
	}
}

// requireNonPublicNetwork

func TestRequireNonPublicNetwork(t *testing.T) {
	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:12345", http.StatusOK},
		{"[::1]:12345", http.StatusOK},
		{"10.0.0.1:8080", http.StatusOK},
		{"172.16.0.1:8080", http.StatusOK},
		{"192.168.1.1:8080", http.StatusOK},
		{"169.254.1.1:8080", http.StatusOK},
		{"[::ffff:10.0.0.1]:12345", http.StatusOK},
		{"8.8.8.8:12345", http.StatusForbidden},
		{"203.0.113.1:80", http.StatusForbidden},
		{"[::ffff:8.8.8.8]:12345", http.StatusForbidden},
		{"999.999.999.999:8080", http.StatusForbidden},
		{"not-an-address", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/-/healthy", http.NoBody)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
