package correlator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potooio/curator/internal/detection"
	"github.com/potooio/curator/internal/indexer"
	"github.com/potooio/curator/internal/types"
)

const (
	// Rate limit: 100 events/second
	eventRateLimit = 100
	eventRateBurst = 200

	// Deduplication window: 5 minutes
	dedupeWindow = 5 * time.Minute
)

// Dispatcher runs the install for a claimed detection. onDone must be called
// once the install returns.
type Dispatcher interface {
	Dispatch(ctx context.Context, d *detection.Detection, onDone func())
}

// dedupeKey identifies one observed process.
type dedupeKey struct {
	pid         int
	processName string
}

// Correlator matches process events to detections.
type Correlator struct {
	logger     *zap.Logger
	handle     *indexer.Handle
	dispatcher Dispatcher
	limiter    *rate.Limiter

	mu        sync.Mutex
	seenPairs map[dedupeKey]time.Time
}

// CorrelatorOptions configures the Correlator.
type CorrelatorOptions struct {
	// EventRateLimit is events per second; zero selects the default.
	EventRateLimit float64
	// EventBurst is the token bucket size; zero selects the default.
	EventBurst int
}

// New creates a new Correlator reading from handle.
func New(handle *indexer.Handle, dispatcher Dispatcher, logger *zap.Logger) *Correlator {
	return NewWithOptions(handle, dispatcher, logger, CorrelatorOptions{})
}

// NewWithOptions creates a new Correlator with options.
func NewWithOptions(handle *indexer.Handle, dispatcher Dispatcher, logger *zap.Logger, opts CorrelatorOptions) *Correlator {
	limit := opts.EventRateLimit
	if limit <= 0 {
		limit = eventRateLimit
	}
	burst := opts.EventBurst
	if burst <= 0 {
		burst = eventRateBurst
	}
	return &Correlator{
		logger:     logger.Named("correlator"),
		handle:     handle,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		seenPairs:  make(map[dedupeKey]time.Time),
	}
}

// Start runs the dedupe cache cleaner. Blocks until ctx is cancelled.
func (c *Correlator) Start(ctx context.Context) error {
	c.cleanupDedupeCache(ctx)
	return nil
}

// HandleProcessStarted processes a single ProcessStarted event.
func (c *Correlator) HandleProcessStarted(ctx context.Context, p types.ProcessInfo) {
	// Rate limit
	if !c.limiter.Allow() {
		eventsTotal.WithLabelValues("rate_limited").Inc()
		c.logger.Warn("Process event dropped by rate limit",
			zap.String("process", p.ProcessName),
			zap.Int("pid", p.PID),
		)
		return
	}

	if p.PID != 0 && !c.tryMarkSeen(dedupeKey{pid: p.PID, processName: p.ProcessName}) {
		eventsTotal.WithLabelValues("duplicate").Inc()
		return
	}

	idx, release, ok := c.handle.Acquire()
	defer release()
	if !ok {
		eventsTotal.WithLabelValues("no_index").Inc()
		return
	}

	d := idx.ClaimMatch(p)
	if d == nil {
		eventsTotal.WithLabelValues("no_match").Inc()
		return
	}

	if !d.Entry.HasRelease() {
		// The builder never indexes these; leave the index as it was.
		idx.Unclaim(d)
		eventsTotal.WithLabelValues("no_release").Inc()
		return
	}

	eventsTotal.WithLabelValues("dispatched").Inc()
	c.logger.Info("Process matched detection, installing",
		zap.Int("pid", p.PID),
		zap.String("process", p.ProcessName),
		zap.Int64("workshop_id", d.EntryID()),
		zap.String("predicate", d.Predicate.String()),
	)

	c.dispatcher.Dispatch(ctx, d, func() {
		idx.Remove(d)
	})
}

// tryMarkSeen atomically checks if this process was recently handled and,
// if not, marks it as seen. Returns true for a new process.
func (c *Correlator) tryMarkSeen(key dedupeKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seenAt, exists := c.seenPairs[key]; exists {
		if time.Since(seenAt) < dedupeWindow {
			return false
		}
	}
	c.seenPairs[key] = time.Now()
	return true
}

// cleanupDedupeCache periodically removes old entries from the dedupe cache.
func (c *Correlator) cleanupDedupeCache(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pruneSeen(time.Now().Add(-dedupeWindow))
		}
	}
}

func (c *Correlator) pruneSeen(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, seenAt := range c.seenPairs {
		if seenAt.Before(cutoff) {
			delete(c.seenPairs, key)
		}
	}
}
