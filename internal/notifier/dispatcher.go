package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potooio/curator/internal/types"
)

// DispatcherOptions configures the Dispatcher behavior.
type DispatcherOptions struct {
	SuppressDuplicateMinutes int        // default 60
	RateLimitPerMinute       int        // default 100, per entry
	Reporters                []Reporter // external outcome channels
}

// DefaultDispatcherOptions returns sensible defaults.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		SuppressDuplicateMinutes: 60,
		RateLimitPerMinute:       100,
	}
}

// dedupeKey uniquely identifies one reported outcome.
type dedupeKey struct {
	entryID   int64
	releaseID int64
	status    types.OutcomeStatus
}

// entryRateLimiter tracks rate limits per entry.
type entryRateLimiter struct {
	mu         sync.Mutex
	limiters   map[int64]*rate.Limiter
	lastAccess map[int64]time.Time
	rate       rate.Limit
	burst      int
}

func newEntryRateLimiter(perMinute int) *entryRateLimiter {
	return &entryRateLimiter{
		limiters:   make(map[int64]*rate.Limiter),
		lastAccess: make(map[int64]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/10), // 10% burst, minimum 1
	}
}

func (n *entryRateLimiter) Allow(entryID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	limiter, exists := n.limiters[entryID]
	if !exists {
		limiter = rate.NewLimiter(n.rate, n.burst)
		n.limiters[entryID] = limiter
	}
	n.lastAccess[entryID] = time.Now()
	return limiter.Allow()
}

// Evict removes entry rate limiters that haven't been accessed within maxAge.
func (n *entryRateLimiter) Evict(maxAge time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, last := range n.lastAccess {
		if last.Before(cutoff) {
			delete(n.limiters, id)
			delete(n.lastAccess, id)
		}
	}
}

// Dispatcher renders install outcomes and hands them to reporters.
type Dispatcher struct {
	logger      *zap.Logger
	opts        DispatcherOptions
	limiter     *entryRateLimiter
	reporters   []Reporter
	dedupeCache map[dedupeKey]time.Time
	mu          sync.Mutex
}

// NewDispatcher creates a new Dispatcher. Zero option values select the defaults.
func NewDispatcher(logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	defaults := DefaultDispatcherOptions()
	if opts.SuppressDuplicateMinutes <= 0 {
		opts.SuppressDuplicateMinutes = defaults.SuppressDuplicateMinutes
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	return &Dispatcher{
		logger:      logger.Named("notifier"),
		opts:        opts,
		limiter:     newEntryRateLimiter(opts.RateLimitPerMinute),
		reporters:   opts.Reporters,
		dedupeCache: make(map[dedupeKey]time.Time),
	}
}

// Start begins background routines for cleanup and reporters. Non-blocking.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.cleanupDedupeCache(ctx)
	for _, r := range d.reporters {
		r.Start(ctx)
		d.logger.Info("Started reporter", zap.String("reporter", r.Name()))
	}
}

// Close waits for reporters that queue work to drain. Call after the context
// passed to Start is cancelled.
func (d *Dispatcher) Close() {
	for _, r := range d.reporters {
		if c, ok := r.(closer); ok {
			c.Close()
		}
	}
}

// Notify reports an install outcome to every interested reporter.
func (d *Dispatcher) Notify(ctx context.Context, o types.InstallOutcome) error {
	if !d.limiter.Allow(o.EntryID) {
		outcomesTotal.WithLabelValues("rate_limited").Inc()
		d.logger.Debug("Entry rate limited", zap.Int64("workshop_id", o.EntryID))
		return nil
	}

	// Dedupe check (atomic check-and-mark to avoid TOCTOU race)
	if !d.tryMarkSeen(dedupeKey{entryID: o.EntryID, releaseID: o.ReleaseID, status: o.Status}) {
		outcomesTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	data := ReportData{
		InstallOutcome: o,
		Message:        RenderMessage(o),
		DurationMs:     o.Duration().Milliseconds(),
	}
	if o.Err != nil && data.Error == "" {
		data.Error = o.Err.Error()
	}

	var sent int
	for _, r := range d.reporters {
		if !r.ShouldReport(o.Status) {
			continue
		}
		if err := r.Report(ctx, data); err != nil {
			d.logger.Error("Reporter enqueue failed",
				zap.String("reporter", r.Name()),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	outcomesTotal.WithLabelValues("reported").Inc()
	d.logger.Debug("Reported install outcome",
		zap.Int64("workshop_id", o.EntryID),
		zap.String("status", string(o.Status)),
		zap.Int("reporters", sent),
	)
	return nil
}

// RenderMessage formats a one-line description of an outcome.
func RenderMessage(o types.InstallOutcome) string {
	name := o.EntryName
	if name == "" {
		name = fmt.Sprintf("entry %d", o.EntryID)
	}
	version := ""
	if o.Version != "" {
		version = " " + o.Version
	}

	switch o.Status {
	case types.OutcomeSucceeded:
		return fmt.Sprintf("Installed %s%s after %s started.", name, version, o.ProcessName)
	case types.OutcomeCancelled:
		return fmt.Sprintf("Install of %s%s was cancelled.", name, version)
	default:
		reason := o.Error
		if reason == "" && o.Err != nil {
			reason = o.Err.Error()
		}
		if reason == "" {
			reason = "unknown error"
		}
		return fmt.Sprintf("Install of %s%s failed: %s.", name, version, reason)
	}
}

// tryMarkSeen atomically checks if this outcome was recently reported and,
// if not, marks it as seen. Returns true if the outcome should be reported.
func (d *Dispatcher) tryMarkSeen(key dedupeKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seenAt, exists := d.dedupeCache[key]; exists {
		window := time.Duration(d.opts.SuppressDuplicateMinutes) * time.Minute
		if time.Since(seenAt) < window {
			return false
		}
	}
	d.dedupeCache[key] = time.Now()
	return true
}

// cleanupDedupeCache periodically removes old entries.
func (d *Dispatcher) cleanupDedupeCache(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pruneDedupeCache()
			// Evict stale entry rate limiters (entries not seen in 1 hour).
			d.limiter.Evict(time.Hour)
		}
	}
}

func (d *Dispatcher) pruneDedupeCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	window := time.Duration(d.opts.SuppressDuplicateMinutes) * time.Minute
	cutoff := time.Now().Add(-window)
	for key, seenAt := range d.dedupeCache {
		if seenAt.Before(cutoff) {
			delete(d.dedupeCache, key)
		}
	}
}
