package httpmw

import "net/http"

// The API is read-only and stateless (no cookies, no sessions), so there is
// no CSRF handling.

// SecurityHeaders sets response headers suited to a JSON API: nothing it
// returns should be framed, sniffed or embedded cross-origin.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// TraceResponseHeaders echoes the trace and span IDs of a sampled request.
func TraceResponseHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sc := spanContext(r); sc.IsValid() {
			w.Header().Set("X-Trace-Id", sc.TraceID().String())
			w.Header().Set("X-Span-Id", sc.SpanID().String())
		}
		next.ServeHTTP(w, r)
	})
}
