package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/linnemanlabs-content/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/contenthttp"
	"github.com/keithlinneman/linnemanlabs-content/internal/health"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-content/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-content/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-content/internal/prof"
	"github.com/keithlinneman/linnemanlabs-content/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-content/internal/sitecontent"
	v "github.com/keithlinneman/linnemanlabs-content/internal/version"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

const (
	component = "content"

	// how long readiness fails before the listeners are closed, so the load
	// balancer stops routing to us first
	drainPeriod     = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// changeNotifier is implemented by sources that can push change events
// (the local directory source).
type changeNotifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the content API, ops listener and content watcher",
		Args:  cobra.NoArgs,
	}
	fs, conf := bindConfig(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := resolveConfig(cmd, fs); err != nil {
			return err
		}
		if err := cfg.Validate(*conf); err != nil {
			return xerrors.Wrap(err, "config error")
		}
		return serve(cmd.Context(), conf)
	}
	return cmd
}

func serve(ctx context.Context, conf *cfg.App) error {
	vi := v.Get()

	L, err := newLogger(conf, "server", os.Stderr)
	if err != nil {
		return xerrors.Wrap(err, "logger init")
	}
	// no-op for slog/stderr, kept so a buffered backend flushes on exit
	defer L.Sync()
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_profiling", conf.EnableProfiling,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"trusted_proxy_hops", conf.TrustedHops,
		"content_source", conf.ContentSource,
		"content_dir", conf.ContentDir,
		"content_ssm_param", conf.ContentSSMParam,
		"content_s3_bucket", conf.ContentS3Bucket,
		"content_s3_prefix", conf.ContentS3Prefix,
		"enable_content_updates", conf.EnableContentUpdates,
		"poll_interval", conf.PollInterval,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnableProfiling,
		AppName:       appName,
		ServerAddress: conf.PyroscopeServer,
		TenantID:      conf.PyroscopeTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": component,
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyroscope_server", conf.PyroscopeServer)
	}
	defer stopProf()

	// Insecure: the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   "linnemanlabs",
		Component: component,
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, component, &vi)

	reg := sitecontent.Registry()
	builder := content.NewBuilder(reg, m)
	mgr := content.NewManager()
	validation := content.ValidationOptions{MinEntries: conf.MinEntries}

	src, err := newSource(ctx, conf, L)
	if err != nil {
		return xerrors.Wrap(err, "content source")
	}
	L.Info(ctx, "content source ready", "kind", src.Kind(), "location", describeSource(src))

	// a bad initial load is not fatal: readiness stays red and the watcher
	// picks up the next good revision
	if err := content.LoadIntoManager(ctx, src, builder, mgr, validation); err != nil {
		L.Error(ctx, err, "initial content load failed, serving nothing until a valid revision appears")
		for _, ee := range content.EntryErrors(err) {
			L.Warn(ctx, "invalid content entry", "collection", ee.Collection, "file", ee.File, "error", ee.Err)
		}
	} else {
		snap, _ := mgr.Get()
		L.Info(ctx, "loaded content",
			"source", mgr.Source(),
			"content_hash", mgr.ContentHash(),
			"entries", snap.Counts(),
		)
		m.SetActiveContent(string(mgr.Source()), mgr.ContentHash(), mgr.Fingerprint(), mgr.LoadedAt())
	}

	if conf.EnableContentUpdates {
		var changes <-chan struct{}
		if cn, ok := src.(changeNotifier); ok {
			if changes, err = cn.Changes(ctx); err != nil {
				L.Warn(ctx, "content change notifications unavailable, polling only", "error", err)
			}
		}
		watcher := content.NewWatcher(content.WatcherOptions{
			Logger:       L,
			Source:       src,
			Builder:      builder,
			Manager:      mgr,
			PollInterval: conf.PollInterval,
			Validation:   validation,
			Changes:      changes,
			Metrics:      m,
			OnSwap: func(hash, fingerprint string) {
				m.SetActiveContent(string(src.Kind()), hash, fingerprint, mgr.LoadedAt())
			},
		})
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				L.Error(ctx, err, "content watcher stopped")
			}
		}()
	}

	var gate health.ShutdownGate
	readiness := health.All(gate.Probe(), health.ErrFunc(mgr.ReadyErr))

	var rateLimitMW func(next http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
			// logged once per visitor until it is evicted
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	api := contenthttp.NewAPI(mgr, reg, L)
	httpStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		ContentInfo:  mgr,
		APIRoutes:    api.RegisterRoutes,
	})
	if err != nil {
		return xerrors.Wrap(err, "start content http listener")
	}

	// the security group restricts the admin port; opshttp also rejects
	// public peers in case that is ever misconfigured
	opsStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		Status:      contenthttp.StatusHandler(mgr),
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		_ = httpStop(context.Background())
		return xerrors.Wrap(err, "start ops http listener")
	}

	if err := notifySystemd(); err != nil {
		// systemd kills us after its start timeout if this matters
		L.Debug(ctx, "systemd notify skipped", "reason", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	gate.Set("draining")
	drain(L)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "content http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "otel shutdown")
	}

	L.Info(shutdownCtx, "shutdown complete")
	return nil
}

// drain waits for the load balancer to notice the failing readiness probe.
// A second signal skips the wait.
func drain(L log.Logger) {
	L.Info(context.Background(), "draining before shutdown", "period", drainPeriod)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceCh)

	select {
	case <-time.After(drainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

func notifySystemd() error {
	// set by systemd for Type=notify units
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "systemd notify: dial")
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return xerrors.Wrap(err, "systemd notify: write")
	}
	return xerrors.Wrap(conn.Close(), "systemd notify: close")
}
