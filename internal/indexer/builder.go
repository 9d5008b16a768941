package indexer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/detection"
	"github.com/potooio/curator/internal/types"
)

// EntryResolver resolves a workshop id to entry details. It reports failures
// as not found and never returns an error.
type EntryResolver interface {
	Resolve(ctx context.Context, id int64) (*types.EntryDetails, bool)
}

// InstalledLookup reports the local install record of an entry.
type InstalledLookup interface {
	GetInstalledEntry(entryID int64) (*types.InstalledEntry, bool)
}

// BuildStats counts what happened to each trigger during a build.
type BuildStats struct {
	Triggers   int `json:"triggers"`
	Indexed    int `json:"indexed"`
	Unresolved int `json:"unresolved"`
	NoRelease  int `json:"noRelease"`
	UpToDate   int `json:"upToDate"`
	Invalid    int `json:"invalid"`
	// TitleUnmatchable counts indexed window-title triggers that cannot fire
	// because the process source does not report window titles.
	TitleUnmatchable int `json:"titleUnmatchable,omitempty"`
}

// Builder expands curation documents into a detection Index.
type Builder struct {
	resolver  EntryResolver
	installed InstalledLookup
	logger    *zap.Logger
	onChange  OnChangeFunc
	// noTitles is set when process events never carry a window title.
	noTitles bool
}

// NewBuilder creates a Builder.
func NewBuilder(resolver EntryResolver, installed InstalledLookup, logger *zap.Logger) *Builder {
	return &Builder{
		resolver:  resolver,
		installed: installed,
		logger:    logger.Named("index-builder"),
	}
}

// SetWindowTitlesReported tells the builder whether process events carry
// window titles. When they do not, window-title triggers are still indexed
// but reported as unable to fire.
func (b *Builder) SetWindowTitlesReported(reported bool) {
	b.noTitles = !reported
}

// SetOnChange sets the callback installed on every Index the builder creates.
func (b *Builder) SetOnChange(fn OnChangeFunc) {
	b.onChange = fn
}

type resolution struct {
	entry *types.EntryDetails
	ok    bool
}

// Build resolves every trigger of docs and returns a fresh Index. If ctx is
// cancelled during the build, the partial index is discarded and ctx.Err()
// is returned.
func (b *Builder) Build(ctx context.Context, docs ...*types.Curation) (*Index, BuildStats, error) {
	idx := New(b.onChange)
	var stats BuildStats

	// One lookup per workshop id per build.
	resolved := make(map[int64]resolution)

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, profile := range doc.Profiles {
			for _, trigger := range profile.ProfileTriggers {
				stats.Triggers++

				if profile.WorkshopID <= 0 || strings.TrimSpace(trigger.ProcessName) == "" {
					stats.Invalid++
					buildTriggersTotal.WithLabelValues("invalid").Inc()
					b.logger.Warn("Malformed trigger, skipping",
						zap.Int64("workshop_id", profile.WorkshopID),
						zap.String("process", trigger.ProcessName),
					)
					continue
				}

				res, seen := resolved[profile.WorkshopID]
				if !seen {
					res.entry, res.ok = b.resolver.Resolve(ctx, profile.WorkshopID)
					resolved[profile.WorkshopID] = res
				}
				if err := ctx.Err(); err != nil {
					buildTriggersTotal.WithLabelValues("cancelled").Inc()
					return New(b.onChange), stats, err
				}

				if !res.ok {
					stats.Unresolved++
					buildTriggersTotal.WithLabelValues("unresolved").Inc()
					continue
				}

				entry := res.entry
				if entry.LatestRelease == nil {
					stats.NoRelease++
					buildTriggersTotal.WithLabelValues("no_release").Inc()
					b.logger.Debug("Entry has no release, skipping",
						zap.Int64("workshop_id", profile.WorkshopID),
						zap.String("process", trigger.ProcessName),
					)
					continue
				}

				if installed, ok := b.installed.GetInstalledEntry(entry.ID); ok && installed.UpToDate(entry.LatestRelease) {
					stats.UpToDate++
					buildTriggersTotal.WithLabelValues("up_to_date").Inc()
					b.logger.Debug("Entry already up to date, skipping",
						zap.Int64("workshop_id", profile.WorkshopID),
						zap.Time("installed_at", installed.InstalledAt),
						zap.Time("release_created_at", entry.LatestRelease.CreatedAt),
					)
					continue
				}

				pred, err := detection.ForTrigger(trigger)
				if err != nil {
					stats.Invalid++
					buildTriggersTotal.WithLabelValues("invalid").Inc()
					b.logger.Warn("Invalid trigger, skipping",
						zap.Int64("workshop_id", profile.WorkshopID),
						zap.String("process", trigger.ProcessName),
						zap.Error(err),
					)
					continue
				}

				if trigger.WindowTitle != "" && b.noTitles {
					stats.TitleUnmatchable++
					b.logger.Warn("Window title trigger can never match: process events carry no window title",
						zap.Int64("workshop_id", profile.WorkshopID),
						zap.String("process", trigger.ProcessName),
						zap.String("window_title", trigger.WindowTitle),
					)
				}

				idx.Add(detection.New(trigger.ProcessName, pred, entry))
				stats.Indexed++
				buildTriggersTotal.WithLabelValues("indexed").Inc()
			}
		}
	}

	b.logger.Info("Detection index built",
		zap.Int("triggers", stats.Triggers),
		zap.Int("indexed", stats.Indexed),
		zap.Int("unresolved", stats.Unresolved),
		zap.Int("no_release", stats.NoRelease),
		zap.Int("up_to_date", stats.UpToDate),
		zap.Int("invalid", stats.Invalid),
		zap.Int("title_unmatchable", stats.TitleUnmatchable),
		zap.Int("process_names", len(idx.ProcessNames())),
	)
	return idx, stats, nil
}
