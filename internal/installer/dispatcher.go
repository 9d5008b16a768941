package installer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/detection"
	"github.com/potooio/curator/internal/types"
)

const (
	defaultOutcomeBuffer = 100
	defaultHistorySize   = 50

	// Progress is logged at most this often per install.
	progressLogInterval = 2 * time.Second
)

// DispatcherOptions configures the Dispatcher.
type DispatcherOptions struct {
	OutcomeBuffer int      // default 100
	HistorySize   int      // default 50
	Notifier      Notifier // optional
}

// Dispatcher runs installs in supervised goroutines.
type Dispatcher struct {
	installer Installer
	notifier  Notifier
	logger    *zap.Logger
	outcomes  chan types.InstallOutcome
	wg        sync.WaitGroup
	now       func() time.Time

	mu          sync.Mutex
	errs        []error
	history     []types.InstallOutcome
	historySize int
	// inFlight is keyed by dispatch sequence: two detections of the same
	// entry may install concurrently.
	inFlight map[uint64]types.InstallProgress
	seq      uint64
}

// NewDispatcher creates a Dispatcher around inst.
func NewDispatcher(inst Installer, logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	buffer := opts.OutcomeBuffer
	if buffer <= 0 {
		buffer = defaultOutcomeBuffer
	}
	historySize := opts.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Dispatcher{
		installer:   inst,
		notifier:    opts.Notifier,
		logger:      logger.Named("installer"),
		outcomes:    make(chan types.InstallOutcome, buffer),
		now:         time.Now,
		historySize: historySize,
		inFlight:    make(map[uint64]types.InstallProgress),
	}
}

// Outcomes returns the channel of finished installs. Outcomes are dropped
// when nobody drains it and the buffer is full; History keeps them regardless.
func (d *Dispatcher) Outcomes() <-chan types.InstallOutcome {
	return d.outcomes
}

// Errors returns every install failure seen so far.
func (d *Dispatcher) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]error, len(d.errs))
	copy(out, d.errs)
	return out
}

// History returns the most recent outcomes, oldest first.
func (d *Dispatcher) History() []types.InstallOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.InstallOutcome, len(d.history))
	copy(out, d.history)
	return out
}

// InFlight returns the latest progress sample of every running install,
// in dispatch order.
func (d *Dispatcher) InFlight() []types.InstallProgress {
	d.mu.Lock()
	keys := make([]uint64, 0, len(d.inFlight))
	for k := range d.inFlight {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]types.InstallProgress, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.inFlight[k])
	}
	d.mu.Unlock()
	return out
}

// Wait blocks until every dispatched install has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch starts installing d's latest release. onDone runs once the
// install returns, before the outcome is published.
func (d *Dispatcher) Dispatch(ctx context.Context, det *detection.Detection, onDone func()) {
	d.wg.Add(1)
	installsInFlight.Inc()
	go func() {
		defer d.wg.Done()
		defer installsInFlight.Dec()
		d.run(ctx, det, onDone)
	}()
}

func (d *Dispatcher) run(ctx context.Context, det *detection.Detection, onDone func()) {
	entry := det.Entry
	release := entry.LatestRelease

	outcome := types.InstallOutcome{
		EntryID:     entry.ID,
		EntryName:   entry.Name,
		ProcessName: det.ProcessName,
		StartedAt:   d.now(),
	}
	if release != nil {
		outcome.ReleaseID = release.ID
		outcome.Version = release.Version
	}

	logger := d.logger.With(
		zap.Int64("workshop_id", entry.ID),
		zap.Int64("release_id", outcome.ReleaseID),
		zap.String("process", det.ProcessName),
	)
	logger.Info("Installing entry", zap.String("version", outcome.Version))

	err := d.install(ctx, det, logger)

	if onDone != nil {
		onDone()
	}

	outcome.FinishedAt = d.now()
	outcome.Err = err
	switch {
	case err == nil:
		outcome.Status = types.OutcomeSucceeded
		logger.Info("Entry installed", zap.Duration("duration", outcome.Duration()))
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		outcome.Status = types.OutcomeCancelled
		outcome.Error = err.Error()
		logger.Debug("Install cancelled")
	default:
		outcome.Status = types.OutcomeFailed
		outcome.Error = err.Error()
		logger.Error("Install failed", zap.Error(err))
	}

	installsTotal.WithLabelValues(string(outcome.Status)).Inc()
	installDuration.WithLabelValues(string(outcome.Status)).Observe(outcome.Duration().Seconds())

	d.record(outcome)

	if d.notifier != nil {
		// ctx is already done for cancelled installs; keep only its values.
		if nerr := d.notifier.Notify(context.WithoutCancel(ctx), outcome); nerr != nil {
			logger.Warn("Outcome notification failed", zap.Error(nerr))
		}
	}
}

// install calls the installer, converting a panic into an error.
func (d *Dispatcher) install(ctx context.Context, det *detection.Detection, logger *zap.Logger) (err error) {
	entry := det.Entry
	release := entry.LatestRelease
	if release == nil {
		return fmt.Errorf("entry %d has no release", entry.ID)
	}

	d.mu.Lock()
	d.seq++
	key := d.seq
	d.inFlight[key] = types.InstallProgress{
		EntryID:        entry.ID,
		ProcessName:    det.ProcessName,
		StreamProgress: types.StreamProgress{TotalBytes: release.Size},
	}
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("installer panic: %v", r)
		}
		d.mu.Lock()
		delete(d.inFlight, key)
		d.mu.Unlock()
	}()

	var lastLog time.Time
	progress := func(p types.StreamProgress) {
		d.mu.Lock()
		if cur, ok := d.inFlight[key]; ok {
			cur.StreamProgress = p
			d.inFlight[key] = cur
		}
		d.mu.Unlock()

		if now := time.Now(); now.Sub(lastLog) >= progressLogInterval {
			lastLog = now
			logger.Debug("Install progress",
				zap.Int64("bytes_read", p.BytesRead),
				zap.Int64("total_bytes", p.TotalBytes),
			)
		}
	}

	return d.installer.Install(ctx, entry, release, progress)
}

func (d *Dispatcher) record(o types.InstallOutcome) {
	d.mu.Lock()
	if o.Status == types.OutcomeFailed {
		d.errs = append(d.errs, fmt.Errorf("install entry %d release %d: %w", o.EntryID, o.ReleaseID, o.Err))
	}
	d.history = append(d.history, o)
	if len(d.history) > d.historySize {
		d.history = d.history[len(d.history)-d.historySize:]
	}
	d.mu.Unlock()

	select {
	case d.outcomes <- o:
	default:
		d.logger.Warn("Outcome channel full, dropping outcome", zap.Int64("workshop_id", o.EntryID))
	}
}
