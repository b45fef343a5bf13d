package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-content/internal/health"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	Health       health.Probe
	Readiness    health.Probe
	ContentInfo  httpmw.ContentInfo // X-Content-Hash and X-Content-Fingerprint
	APIRoutes    func(chi.Router)
}
