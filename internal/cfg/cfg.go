package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

// Content source kinds accepted by -content-source.
const (
	SourceDir    = "dir"
	SourceBundle = "bundle"
)

// EnvPrefix is prepended to upper-cased flag names by FillFromEnv.
const EnvPrefix = "LMCONTENT_"

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort       int
	AdminPort      int
	EnablePprof    bool
	RateLimitRPS   float64
	RateLimitBurst int
	EnableTracing  bool
	OTLPEndpoint   string
	TraceSample    float64
	TrustedHops    int

	EnableProfiling   bool
	PyroscopeServer   string
	PyroscopeTenantID string

	ContentSource        string
	ContentDir           string
	ContentSSMParam      string
	ContentS3Bucket      string
	ContentS3Prefix      string
	EnableContentUpdates bool
	PollInterval         time.Duration
	MinEntries           int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 8080, "content API listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof profiling (on admin port only)")
	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 10, "per-client request refill rate for the content API (0 disables)")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 30, "per-client request burst for the content API")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.IntVar(&c.TrustedHops, "trusted-proxy-hops", 0, "reverse proxies in front of the API whose X-Forwarded-For is trusted (0..5)")

	fs.BoolVar(&c.EnableProfiling, "enable-profiling", false, "Push continuous profiles to pyroscope-server")
	fs.StringVar(&c.PyroscopeServer, "pyroscope-server", "", "pyroscope server URL (http://host:4040)")
	fs.StringVar(&c.PyroscopeTenantID, "pyroscope-tenant-id", "", "pyroscope tenant id (optional)")

	fs.StringVar(&c.ContentSource, "content-source", SourceDir, "where content is read from: dir|bundle")
	fs.StringVar(&c.ContentDir, "content-dir", "./src/content", "content root directory when content-source=dir")
	fs.StringVar(&c.ContentSSMParam, "content-ssm-param", "", "ssm parameter holding the content bundle sha256 (content-source=bundle)")
	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "s3 bucket holding content bundles (content-source=bundle)")
	fs.StringVar(&c.ContentS3Prefix, "content-s3-prefix", "", "s3 key prefix for content bundles")
	fs.BoolVar(&c.EnableContentUpdates, "enable-content-updates", true, "Reload collections when the content source changes")
	fs.DurationVar(&c.PollInterval, "poll-interval", 30*time.Second, "how often the content source is checked for changes")
	fs.IntVar(&c.MinEntries, "min-entries", 0, "reject snapshots with fewer entries than this in total (0 disables)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// EnvKey maps a flag name to its environment variable.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// ValidateContent checks only the settings needed to read content. The
// check command uses it since it never listens on a port.
func ValidateContent(c App) error {
	var errs []error

	switch c.ContentSource {
	case SourceDir:
		if c.ContentDir == "" {
			errs = append(errs, fmt.Errorf("CONTENT_DIR is required when CONTENT_SOURCE=dir"))
		}
	case SourceBundle:
		if c.ContentSSMParam == "" {
			errs = append(errs, fmt.Errorf("CONTENT_SSM_PARAM is required when CONTENT_SOURCE=bundle"))
		}
		if c.ContentS3Bucket == "" {
			errs = append(errs, fmt.Errorf("CONTENT_S3_BUCKET is required when CONTENT_SOURCE=bundle"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CONTENT_SOURCE %q (must be %s|%s)", c.ContentSource, SourceDir, SourceBundle))
	}

	if c.MinEntries < 0 {
		errs = append(errs, fmt.Errorf("MIN_ENTRIES must be >= 0 (got %d)", c.MinEntries))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	return errors.Join(errs...)
}

// Validate checks every setting used by the serve command and returns all
// problems joined, or nil.
func Validate(c App) error {
	errs := []error{ValidateContent(c)}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be >= 0 (got %.2f)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 when rate limiting is enabled (got %d)", c.RateLimitBurst))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.TrustedHops < 0 || c.TrustedHops > 5 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be 0..5 (got %d)", c.TrustedHops))
	}

	if c.EnableProfiling && c.PyroscopeServer == "" {
		errs = append(errs, fmt.Errorf("PYROSCOPE_SERVER required when ENABLE_PROFILING=true"))
	}

	if c.EnableContentUpdates && c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be at least 1s (got %s)", c.PollInterval))
	}

	return errors.Join(errs...)
}
