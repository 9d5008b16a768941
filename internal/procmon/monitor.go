package procmon

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/types"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = time.Second

// Handler receives ProcessStarted events.
type Handler func(ctx context.Context, p types.ProcessInfo)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Monitor polls a Scanner and fans new processes out to subscribers.
type Monitor struct {
	scanner  Scanner
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID SubscriptionID

	// known maps PID to process name as of the last scan. Only touched by
	// the polling goroutine.
	known    map[int]string
	baseline bool
}

// NewMonitor creates a Monitor. interval <= 0 selects DefaultPollInterval.
func NewMonitor(scanner Scanner, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		scanner:  scanner,
		interval: interval,
		logger:   logger.Named("procmon"),
		known:    make(map[int]string),
	}
}

// Subscribe registers h for ProcessStarted events.
func (m *Monitor) Subscribe(h Handler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.subs = append(m.subs, subscription{id: m.nextID, handler: h})
	subscribersGauge.Set(float64(len(m.subs)))
	return m.nextID
}

// Unsubscribe removes a subscription. Unknown ids are ignored. A handler
// that is mid-delivery finishes its current event.
func (m *Monitor) Unsubscribe(id SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.id == id {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			break
		}
	}
	subscribersGauge.Set(float64(len(m.subs)))
}

// Subscribers returns the number of active subscriptions.
func (m *Monitor) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Start polls until ctx is cancelled. Blocks.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("Starting process monitor", zap.Duration("interval", m.interval))

	m.poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Process monitor stopped")
			return nil
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// Publish delivers p to the current subscribers on the caller's goroutine.
func (m *Monitor) Publish(ctx context.Context, p types.ProcessInfo) {
	m.mu.RLock()
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.RUnlock()

	processesStartedTotal.Inc()
	for _, s := range subs {
		s.handler(ctx, p)
	}
}

func (m *Monitor) poll(ctx context.Context) {
	procs, err := m.scanner.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		scansTotal.WithLabelValues("error").Inc()
		m.logger.Warn("Process scan failed", zap.Error(err))
		return
	}
	scansTotal.WithLabelValues("success").Inc()

	started := m.diff(procs)
	for _, p := range started {
		if ctx.Err() != nil {
			return
		}
		m.logger.Debug("Process started",
			zap.Int("pid", p.PID),
			zap.String("process", p.ProcessName),
		)
		m.Publish(ctx, p)
	}
}

// diff replaces the known set with procs and returns the processes that
// were not present before, sorted by PID. The first call only records the
// baseline.
func (m *Monitor) diff(procs []types.ProcessInfo) []types.ProcessInfo {
	current := make(map[int]string, len(procs))
	var started []types.ProcessInfo

	for _, p := range procs {
		current[p.PID] = p.ProcessName
		if !m.baseline {
			continue
		}
		// A reused PID with a different name is a new process.
		if name, ok := m.known[p.PID]; ok && name == p.ProcessName {
			continue
		}
		if p.StartedAt.IsZero() {
			p.StartedAt = time.Now()
		}
		started = append(started, p)
	}

	m.known = current
	if !m.baseline {
		m.baseline = true
		m.logger.Debug("Recorded process baseline", zap.Int("processes", len(current)))
	}

	sort.Slice(started, func(i, j int) bool { return started[i].PID < started[j].PID })
	return started
}
