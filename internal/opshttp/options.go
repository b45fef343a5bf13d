package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-content/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// Status, if set, is served as JSON at /-/status (active snapshot,
	// collection counts, watcher state).
	Status http.Handler
	// OnPanic runs after a recovered panic (metrics counter).
	OnPanic func()
}
