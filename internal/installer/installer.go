package installer

import (
	"context"

	"github.com/potooio/curator/internal/types"
)

// Installer fetches and installs one release of an entry. progress may be
// nil. Implementations must honour ctx cancellation and leave no partial
// install behind when it fires.
type Installer interface {
	Install(ctx context.Context, entry *types.EntryDetails, release *types.Release, progress types.ProgressFunc) error
}

// InstallerFunc adapts a function to an Installer.
type InstallerFunc func(ctx context.Context, entry *types.EntryDetails, release *types.Release, progress types.ProgressFunc) error

// Install calls f.
func (f InstallerFunc) Install(ctx context.Context, entry *types.EntryDetails, release *types.Release, progress types.ProgressFunc) error {
	return f(ctx, entry, release, progress)
}

// Notifier receives every install outcome.
type Notifier interface {
	Notify(ctx context.Context, o types.InstallOutcome) error
}
