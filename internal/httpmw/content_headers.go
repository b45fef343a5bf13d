package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo reports the snapshot currently being served.
// content.Manager satisfies it.
type ContentInfo interface {
	ContentHash() string
	Fingerprint() string
}

const shortHashLen = 12

// ContentHeaders sets X-Content-Hash and X-Content-Fingerprint (shortened)
// so clients and caches can tell which snapshot answered. The full values
// go on the active span.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash, fp := info.ContentHash(), info.Fingerprint()
			if hash != "" {
				w.Header().Set("X-Content-Hash", short(hash))
			}
			if fp != "" {
				w.Header().Set("X-Content-Fingerprint", short(fp))
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				if hash != "" {
					span.SetAttributes(attribute.String("content.hash", hash))
				}
				if fp != "" {
					span.SetAttributes(attribute.String("content.fingerprint", fp))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func short(s string) string {
	if len(s) > shortHashLen {
		return s[:shortHashLen]
	}
	return s
}
