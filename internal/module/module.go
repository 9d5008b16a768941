// Package module ties the curation source, detection index, process monitor
// and install dispatcher into one enable/disable lifecycle.
package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/correlator"
	"github.com/potooio/curator/internal/curation"
	"github.com/potooio/curator/internal/indexer"
	"github.com/potooio/curator/internal/installer"
	"github.com/potooio/curator/internal/procmon"
	"github.com/potooio/curator/internal/types"
)

// ErrNoSource is returned by Enable when no curation source is configured.
var ErrNoSource = errors.New("no curation source configured")

// EventSource is the process event stream the module subscribes to.
type EventSource interface {
	Subscribe(h procmon.Handler) procmon.SubscriptionID
	Unsubscribe(id procmon.SubscriptionID)
}

// Options wires a Module's collaborators.
type Options struct {
	Source     curation.Source
	Builder    *indexer.Builder
	Dispatcher *installer.Dispatcher
	Events     EventSource
	Correlator correlator.CorrelatorOptions
}

// Module is the lifecycle controller.
type Module struct {
	logger     *zap.Logger
	source     curation.Source
	builder    *indexer.Builder
	dispatcher *installer.Dispatcher
	events     EventSource
	corrOpts   correlator.CorrelatorOptions

	// mu serializes Enable, Disable and Reload.
	mu sync.Mutex

	// Guarded by stateMu; read by Snapshot while a transition is running.
	stateMu   sync.RWMutex
	state     State
	cancel    context.CancelFunc
	handle    *indexer.Handle
	subID     procmon.SubscriptionID
	stats     indexer.BuildStats
	enabledAt time.Time
}

// New creates a disabled Module.
func New(opts Options, logger *zap.Logger) *Module {
	if opts.Builder != nil {
		opts.Builder.SetOnChange(func(e indexer.IndexEvent) {
			if e.Type == "remove" {
				indexDetections.Dec()
			}
		})
	}
	return &Module{
		logger:     logger.Named("module"),
		source:     opts.Source,
		builder:    opts.Builder,
		dispatcher: opts.Dispatcher,
		events:     opts.Events,
		corrOpts:   opts.Correlator,
	}
}

// State returns the current lifecycle state.
func (m *Module) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Enable loads the curation documents, builds a fresh detection index and
// subscribes to process events. An already enabled module is disabled first.
// On failure the module is left Disabled.
func (m *Module) Enable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disableLocked()
	return m.enableLocked(ctx)
}

// Disable stops reacting to process events, cancels running installs and
// waits for them to finish. Safe to call repeatedly.
func (m *Module) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disableLocked()
}

// Reload disables and re-enables the module with freshly loaded documents.
func (m *Module) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("Reloading curation")
	m.disableLocked()
	return m.enableLocked(ctx)
}

// Update is the periodic tick. The module has no periodic work.
func (m *Module) Update(time.Duration) {}

func (m *Module) enableLocked(ctx context.Context) error {
	if m.source == nil {
		return ErrNoSource
	}
	if m.builder == nil || m.dispatcher == nil || m.events == nil {
		return errors.New("module is not fully wired")
	}

	start := time.Now()
	m.setState(StateEnabling)
	mctx, cancel := context.WithCancel(ctx)

	docs, err := m.source.Load(mctx)
	if err != nil {
		cancel()
		m.setState(StateDisabled)
		enableTotal.WithLabelValues("load_error").Inc()
		return fmt.Errorf("load curation: %w", err)
	}

	idx, stats, err := m.builder.Build(mctx, docs...)
	if err != nil {
		cancel()
		m.setState(StateDisabled)
		enableTotal.WithLabelValues("cancelled").Inc()
		return fmt.Errorf("build detection index: %w", err)
	}

	handle := indexer.NewHandle(idx)
	corr := correlator.NewWithOptions(handle, m.dispatcher, m.logger, m.corrOpts)
	go func() { _ = corr.Start(mctx) }()

	subID := m.events.Subscribe(func(_ context.Context, p types.ProcessInfo) {
		corr.HandleProcessStarted(mctx, p)
	})

	m.stateMu.Lock()
	m.cancel = cancel
	m.handle = handle
	m.subID = subID
	m.stats = stats
	m.enabledAt = time.Now()
	m.state = StateEnabled
	m.stateMu.Unlock()

	indexDetections.Set(float64(idx.Count()))
	stateGauge.Set(float64(StateEnabled))
	enableTotal.WithLabelValues("success").Inc()

	m.logger.Info("Module enabled",
		zap.Int("documents", len(docs)),
		zap.Int("detections", idx.Count()),
		zap.Strings("process_names", idx.ProcessNames()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (m *Module) disableLocked() {
	m.stateMu.Lock()
	if m.state != StateEnabled {
		m.stateMu.Unlock()
		return
	}
	m.state = StateDisabling
	handle, subID, cancel := m.handle, m.subID, m.cancel
	m.stateMu.Unlock()
	stateGauge.Set(float64(StateDisabling))

	// Invalidate first so no event reads the index being discarded.
	handle.Invalidate()
	m.events.Unsubscribe(subID)
	cancel()
	m.dispatcher.Wait()

	m.stateMu.Lock()
	m.handle = nil
	m.cancel = nil
	m.subID = 0
	m.stats = indexer.BuildStats{}
	m.enabledAt = time.Time{}
	m.state = StateDisabled
	m.stateMu.Unlock()

	indexDetections.Set(0)
	stateGauge.Set(float64(StateDisabled))
	m.logger.Info("Module disabled")
}

func (m *Module) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
	stateGauge.Set(float64(s))
}
