package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

func TestWithLogger_AddsRequestFields(t *testing.T) {
	spy := newSpyLogger()
	h := RequestID("")(ClientIP(WithLogger(spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "inside")
	}))))

	r := httptest.NewRequest(http.MethodGet, "/api/collections/blog", http.NoBody)
	r.RemoteAddr = "203.0.113.5:4000"
	h.ServeHTTP(httptest.NewRecorder(), r)

	entries := spy.all()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	for key, want := range map[string]any{
		"client.address":      "203.0.113.5",
		"http.request.method": http.MethodGet,
		"url.path":            "/api/collections/blog",
		"url.scheme":          "http",
	} {
		if got, _ := e.field(key); got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
	if id, _ := e.field("request_id"); id == "" {
		t.Error("request_id missing")
	}
}

func TestAccessLog_RecordsStatusAndRoute(t *testing.T) {
	spy := newSpyLogger()

	router := chi.NewRouter()
	router.Use(AccessLog)
	router.Get("/api/collections/{collection}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	})
	h := WithLogger(spy)(router)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/collections/zzz", http.NoBody))

	entries := spy.all()
	if len(entries) != 1 || entries[0].msg != "http request" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	e := entries[0]
	if got, _ := e.field("http.response.status_code"); got != http.StatusNotFound {
		t.Errorf("status = %v", got)
	}
	if got, _ := e.field("http.route"); got != "/api/collections/{collection}" {
		t.Errorf("route = %v", got)
	}
	if got, _ := e.field("http.response.body.size"); got != int64(4) {
		t.Errorf("body size = %v", got)
	}
}

func TestAccessLog_SkipsHealth(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody))

	if n := len(spy.all()); n != 0 {
		t.Fatalf("health probe logged %d entries", n)
	}
}

func TestAccessLog_DefaultStatus(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	entries := spy.all()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if got, _ := entries[0].field("http.route"); got != "/x" {
		t.Errorf("route fallback = %v", got)
	}
	if got, _ := entries[0].field("http.response.status_code"); got != http.StatusOK {
		t.Errorf("status = %v", got)
	}
}

func TestScope_AddsHandlerField(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(Scope("collections")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "x")
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got, _ := spy.all()[0].field("handler"); got != "collections" {
		t.Fatalf("handler = %v", got)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if got := schemeFromRequest(r); got != "http" {
		t.Fatalf("scheme = %q", got)
	}
	r.Header.Set("X-Forwarded-Proto", "https, http")
	if got := schemeFromRequest(r); got != "https" {
		t.Fatalf("scheme = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for _, h := range []string{"Strict-Transport-Security", "Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("%s not set", h)
		}
	}
}

func TestTraceResponseHeaders_NoSpan(t *testing.T) {
	rec := httptest.NewRecorder()
	TraceResponseHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Header().Get("X-Trace-Id") != "" {
		t.Fatal("trace header set without a span")
	}
}
