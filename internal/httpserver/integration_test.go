package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/contenthttp"
	"github.com/keithlinneman/linnemanlabs-content/internal/health"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-content/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-content/internal/sitecontent"
)

// TestIntegration_ContentAPI wires the full middleware stack around the
// content API backed by a real snapshot.
func TestIntegration_ContentAPI(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := fstest.MapFS{
		"about.md":         {Data: []byte("---\ntitle: About\ndescription: Who\n---\nHi\n")},
		"blog/hello.md":    {Data: []byte("---\ntitle: Hello\ndescription: First post\npubDate: 2024-01-01\n---\n# Hello\n")},
		"projects/tool.md": {Data: []byte("---\ntitle: Tool\ndescription: A tool\npubDate: 2023-06-01\n---\n")},
	}

	mgr := content.NewManager()
	m := metrics.New()
	reg := sitecontent.Registry()
	limiter := ratelimit.New(ctx, ratelimit.WithRate(0.001, 3), ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }))

	h := httpserver.NewHandler(&httpserver.Options{
		Logger:       log.Nop(),
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		Readiness:    health.ErrFunc(mgr.ReadyErr),
		ContentInfo:  mgr,
		APIRoutes:    contenthttp.NewAPI(mgr, reg, log.Nop()).RegisterRoutes,
	})

	request := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// before the first load
	if rec := request("/-/ready", "203.0.113.1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before load = %d", rec.Code)
	}
	if rec := request("/api/blog", "203.0.113.1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("blog before load = %d", rec.Code)
	}

	snap, err := content.NewBuilder(reg, m).Build(ctx, tree, content.Meta{Fingerprint: "rev-1", Source: content.SourceDir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	mgr.Set(*snap)

	rec := request("/api/collections/blog/hello", "203.0.113.2")
	if rec.Code != http.StatusOK {
		t.Fatalf("entry status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Content-Hash"); got == "" || !strings.HasPrefix(snap.Meta.Hash, got) {
		t.Fatalf("X-Content-Hash = %q, snapshot hash %q", got, snap.Meta.Hash)
	}
	if rec.Header().Get("X-Request-Id") == "" || rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("missing request id or security headers")
	}
	var entry map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(entry["html"].(string), `<h1 id="hello">Hello</h1>`) {
		t.Fatalf("html = %v", entry["html"])
	}

	if rec := request("/-/ready", "203.0.113.2"); rec.Code != http.StatusOK {
		t.Fatalf("ready after load = %d", rec.Code)
	}

	// third client exhausts its burst of 3
	for i := 0; i < 3; i++ {
		if rec := request("/api/collections", "198.51.100.7"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := request("/api/collections", "198.51.100.7"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit status = %d, want 429", rec.Code)
	}

	// metrics scrape reflects the traffic
	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body := scrape.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/api/collections/{collection}/*",status="200"} 1`,
		`http_requests_rate_limited_total 1`,
		`content_collection_entries{collection="blog"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
