package module

import (
	"time"

	"github.com/potooio/curator/internal/indexer"
	"github.com/potooio/curator/internal/types"
)

// Snapshot is a read-only view of the module for the status API and CLI.
type Snapshot struct {
	State     string                  `json:"state"`
	EnabledAt *time.Time              `json:"enabledAt,omitempty"`
	Stats     indexer.BuildStats      `json:"stats"`
	Buckets   []BucketView            `json:"buckets"`
	Installs  []types.InstallOutcome  `json:"installs"`
	InFlight  []types.InstallProgress `json:"inFlight,omitempty"`
}

// BucketView lists the pending detections for one process name.
type BucketView struct {
	ProcessName string          `json:"processName"`
	Detections  []DetectionView `json:"detections"`
}

// DetectionView describes one pending detection.
type DetectionView struct {
	WorkshopID int64  `json:"workshopId"`
	EntryName  string `json:"entryName,omitempty"`
	ReleaseID  int64  `json:"releaseId"`
	Version    string `json:"version,omitempty"`
	Predicate  string `json:"predicate"`
	Installing bool   `json:"installing"`
}

// Snapshot returns the current state, index contents and recent installs.
func (m *Module) Snapshot() Snapshot {
	m.stateMu.RLock()
	snap := Snapshot{
		State:   m.state.String(),
		Stats:   m.stats,
		Buckets: []BucketView{},
	}
	if !m.enabledAt.IsZero() {
		at := m.enabledAt
		snap.EnabledAt = &at
	}
	handle := m.handle
	m.stateMu.RUnlock()

	if handle != nil {
		if idx, release, ok := handle.Acquire(); ok {
			snap.Buckets = bucketViews(idx.Buckets())
			release()
		}
	}
	if m.dispatcher != nil {
		snap.Installs = m.dispatcher.History()
		snap.InFlight = m.dispatcher.InFlight()
	}
	if snap.Installs == nil {
		snap.Installs = []types.InstallOutcome{}
	}
	return snap
}

func bucketViews(buckets []indexer.Bucket) []BucketView {
	out := make([]BucketView, 0, len(buckets))
	for _, b := range buckets {
		view := BucketView{ProcessName: b.ProcessName, Detections: make([]DetectionView, 0, len(b.Detections))}
		for i, d := range b.Detections {
			dv := DetectionView{
				WorkshopID: d.EntryID(),
				Predicate:  d.Predicate.String(),
				Installing: b.Claimed[i],
			}
			if d.Entry != nil {
				dv.EntryName = d.Entry.Name
				if r := d.Entry.LatestRelease; r != nil {
					dv.ReleaseID = r.ID
					dv.Version = r.Version
				}
			}
			view.Detections = append(view.Detections, dv)
		}
		out = append(out, view)
	}
	return out
}
