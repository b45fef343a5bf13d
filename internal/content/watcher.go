// Watcher polls a content source for changes and hot-swaps the active
// snapshot in the Manager when the content tree changed and the rebuilt
// snapshot is valid. A failed rebuild keeps the previous snapshot.
package content

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/keithlinneman/linnemanlabs-content/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
)

const (
	// DefaultPollInterval is how often the watcher fingerprints the source.
	DefaultPollInterval = 30 * time.Second

	// DefaultDebounce is how long change notifications are coalesced before
	// an early poll.
	DefaultDebounce = 250 * time.Millisecond

	// maxBackoff caps exponential backoff on consecutive fingerprint errors.
	maxBackoff = 5 * time.Minute
)

// pollResult describes what happened during a single poll cycle.
type pollResult int

const (
	pollNoChange        pollResult = iota // fingerprint matches current
	pollSwapped                           // new revision built and swapped
	pollSourceError                       // fingerprint failed, caller should back off
	pollLoadError                         // open or build failed
	pollValidationError                   // built but failed snapshot checks
)

// WatcherMetrics is implemented by the metrics package to observe watcher behavior.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(errType string)
	ObserveLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

// WatcherOptions configures the content watcher.
type WatcherOptions struct {
	Logger       log.Logger
	Source       Source
	Builder      *Builder
	Manager      *Manager
	PollInterval time.Duration

	// Validation configures checks run against rebuilt snapshots before
	// they are swapped into the manager.
	Validation ValidationOptions

	// Changes, when set, triggers an early poll after DebounceDelay of quiet.
	Changes       <-chan struct{}
	DebounceDelay time.Duration

	// OnSwap is called synchronously on the poll goroutine after a swap.
	OnSwap func(hash, fingerprint string)

	Metrics WatcherMetrics

	// StaleThreshold is how long since the last successful fingerprint
	// before the watcher reports stale content. Zero defaults to 30 minutes.
	StaleThreshold time.Duration
}

// Watcher polls for content changes and hot-swaps snapshots into the manager.
type Watcher struct {
	source     Source
	builder    *Builder
	manager    *Manager
	logger     log.Logger
	interval   time.Duration
	debounce   time.Duration
	changes    <-chan struct{}
	validation ValidationOptions
	onSwap     func(hash, fingerprint string)
	metrics    WatcherMetrics

	// fingerprint of the active snapshot
	current string

	consecutiveErrs int

	staleThreshold time.Duration
	lastSuccessAt  time.Time
	staleLogged    bool

	pollCount int64
	swapCount int64
}

// NewWatcher creates a content watcher. Call Run to start the poll loop.
func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	debounce := opts.DebounceDelay
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	staleThreshold := opts.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Minute
	}

	// seed from the manager so the first poll does not rebuild what was
	// loaded at startup
	current := opts.Manager.Fingerprint()

	return &Watcher{
		source:         opts.Source,
		builder:        opts.Builder,
		manager:        opts.Manager,
		logger:         opts.Logger,
		interval:       interval,
		debounce:       debounce,
		changes:        opts.Changes,
		validation:     opts.Validation,
		onSwap:         opts.OnSwap,
		metrics:        opts.Metrics,
		current:        current,
		staleThreshold: staleThreshold,
		lastSuccessAt:  time.Now(),
	}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "content watcher starting",
		"source", string(w.source.Kind()),
		"poll_interval", w.interval.String(),
		"current_fingerprint", truncHash(w.current),
		"change_notifications", w.changes != nil,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	changes := w.changes

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "content watcher stopping",
				"reason", ctx.Err(),
				"polls", w.pollCount,
				"swaps", w.swapCount,
			)
			return ctx.Err()

		case _, ok := <-changes:
			if !ok {
				w.logger.Warn(ctx, "content watcher: change notifications closed, polling only")
				changes = nil
				continue
			}
			debounce.Reset(w.debounce)

		case <-debounce.C:
			w.afterPoll(ctx, ticker, w.checkOnce(ctx))

		case <-ticker.C:
			w.afterPoll(ctx, ticker, w.checkOnce(ctx))
		}
	}
}

// afterPoll adjusts the poll cadence and staleness state for result.
func (w *Watcher) afterPoll(ctx context.Context, ticker *time.Ticker, result pollResult) {
	if result == pollSourceError {
		w.consecutiveErrs++
		backoff := w.backoffDuration()
		w.logger.Warn(ctx, "content watcher: backing off",
			"consecutive_errors", w.consecutiveErrs,
			"next_poll_in", backoff.String(),
		)
		ticker.Reset(backoff)
	} else if w.consecutiveErrs > 0 {
		w.logger.Info(ctx, "content watcher: recovered, resuming normal interval",
			"had_consecutive_errors", w.consecutiveErrs,
		)
		w.consecutiveErrs = 0
		ticker.Reset(w.interval)
	}

	if result != pollSourceError {
		if w.staleLogged {
			w.logger.Info(ctx, "content watcher: staleness recovered")
			w.staleLogged = false
			if w.metrics != nil {
				w.metrics.SetWatcherStale(false)
			}
		}
		return
	}

	if since := time.Since(w.lastSuccessAt); since > w.staleThreshold && !w.staleLogged {
		w.logger.Error(ctx, fmt.Errorf("last successful source poll was %s ago", since.Truncate(time.Second)),
			"content watcher: content is stale, unable to verify freshness",
		)
		w.staleLogged = true
		if w.metrics != nil {
			w.metrics.SetWatcherStale(true)
		}
	}
}

// checkOnce performs a single poll-compare-swap cycle.
func (w *Watcher) checkOnce(ctx context.Context) pollResult {
	w.pollCount++
	if w.metrics != nil {
		w.metrics.IncWatcherPolls()
	}

	fp, err := w.source.Fingerprint(ctx)
	if err != nil {
		w.logger.Error(ctx, err, "content watcher: source poll failed")
		if w.metrics != nil {
			w.metrics.IncWatcherError("source")
		}
		return pollSourceError
	}

	now := time.Now()
	w.lastSuccessAt = now
	if w.metrics != nil {
		w.metrics.SetWatcherLastSuccess(float64(now.Unix()))
	}

	if cryptoutil.HashEqual(fp, w.current) {
		return pollNoChange
	}

	w.logger.Info(ctx, "content watcher: content change detected",
		"old_fingerprint", truncHash(w.current),
		"new_fingerprint", truncHash(fp),
	)

	loadStart := time.Now()
	snap, err := loadFingerprint(ctx, w.source, w.builder, fp)
	if w.metrics != nil {
		w.metrics.ObserveLoadDuration(time.Since(loadStart).Seconds())
	}
	if err != nil {
		w.logger.Error(ctx, err, "content watcher: rebuild failed, keeping current content",
			"fingerprint", truncHash(fp),
			"invalid_entries", len(EntryErrors(err)),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("load")
		}
		return pollLoadError
	}

	if err := ValidateSnapshot(snap, w.validation); err != nil {
		w.logger.Error(ctx, err, "content watcher: snapshot failed validation, keeping current content",
			"rejected_fingerprint", truncHash(fp),
			"current_fingerprint", truncHash(w.current),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("validation")
		}
		return pollValidationError
	}

	old := w.current
	w.manager.Set(*snap)
	w.current = fp
	w.swapCount++

	w.logger.Info(ctx, "content watcher: snapshot swapped",
		"old_fingerprint", truncHash(old),
		"new_fingerprint", truncHash(fp),
		"content_hash", truncHash(snap.Meta.Hash),
		"entries", snap.Total(),
		"total_swaps", w.swapCount,
	)

	if w.metrics != nil {
		w.metrics.IncWatcherSwaps()
	}

	if w.onSwap != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error(ctx, fmt.Errorf("OnSwap panic: %v", r),
						"content watcher: OnSwap callback panicked, continuing",
						"fingerprint", truncHash(fp),
					)
				}
			}()
			w.onSwap(snap.Meta.Hash, fp)
		}()
	}

	return pollSwapped
}

// backoffDuration computes exponential backoff capped at maxBackoff.
// consecutiveErrs=1 → 2x interval, =2 → 4x, =3 → 8x, etc.
func (w *Watcher) backoffDuration() time.Duration {
	mult := math.Pow(2, float64(w.consecutiveErrs))
	d := time.Duration(float64(w.interval) * mult)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// truncHash returns the first 12 characters of a hash for logging.
func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
