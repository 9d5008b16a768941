// Package testutil provides shared test helpers for the curator project.
// Import this in test files to avoid duplicating entry builders, fake
// catalogs and fake installers.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/potooio/curator/internal/catalog"
	"github.com/potooio/curator/internal/types"
)

// T0 is a fixed reference time for release and install timestamps.
var T0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// MakeEntry creates an entry whose latest release was created at createdAt.
func MakeEntry(id int64, createdAt time.Time) *types.EntryDetails {
	return &types.EntryDetails{
		ID:   id,
		Name: "entry-" + strconv.FormatInt(id, 10),
		LatestRelease: &types.Release{
			ID:        id * 100,
			Version:   "1.0.0",
			CreatedAt: createdAt,
		},
	}
}

// MakeEntryWithoutRelease creates an entry that has never published a release.
func MakeEntryWithoutRelease(id int64) *types.EntryDetails {
	return &types.EntryDetails{ID: id}
}

// MakeCuration builds a single-profile curation document.
func MakeCuration(workshopID int64, processNames ...string) *types.Curation {
	triggers := make([]types.ProfileTrigger, 0, len(processNames))
	for _, n := range processNames {
		triggers = append(triggers, types.ProfileTrigger{ProcessName: n})
	}
	return &types.Curation{
		Profiles: []types.CurationProfile{{WorkshopID: workshopID, ProfileTriggers: triggers}},
	}
}

// WriteCuration writes content to name inside a fresh temp dir and returns the path.
func WriteCuration(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// FakeCatalog is an in-memory catalog.Client.
type FakeCatalog struct {
	mu      sync.Mutex
	entries map[int64]*types.EntryDetails
	errs    map[int64]error
	calls   map[int64]int

	// Block, when non-nil, makes every lookup wait until it is closed or ctx ends.
	Block chan struct{}
	// Started receives the id of every lookup as it begins, if non-nil.
	Started chan int64
}

// NewFakeCatalog returns a catalog serving the given entries.
func NewFakeCatalog(entries ...*types.EntryDetails) *FakeCatalog {
	f := &FakeCatalog{
		entries: make(map[int64]*types.EntryDetails),
		errs:    make(map[int64]error),
		calls:   make(map[int64]int),
	}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

// SetError makes lookups of id fail with err.
func (f *FakeCatalog) SetError(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

// Put adds or replaces an entry.
func (f *FakeCatalog) Put(e *types.EntryDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = e
}

// Calls returns how many lookups were made for id.
func (f *FakeCatalog) Calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// GetEntryByID implements catalog.Client.
func (f *FakeCatalog) GetEntryByID(ctx context.Context, id int64) (*catalog.GetEntryResult, error) {
	f.mu.Lock()
	f.calls[id]++
	block := f.Block
	started := f.Started
	f.mu.Unlock()

	if started != nil {
		started <- id
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &catalog.GetEntryResult{Data: catalog.GetEntryData{Entry: f.entries[id]}}, nil
}

// InstallCall records one call to FakeInstaller.Install.
type InstallCall struct {
	Entry   *types.EntryDetails
	Release *types.Release
}

// FakeInstaller records install calls and returns Err.
type FakeInstaller struct {
	mu    sync.Mutex
	calls []InstallCall

	// Err is returned from every Install call.
	Err error
	// Block, when non-nil, makes Install wait until it is closed or ctx ends.
	Block chan struct{}
	// Started receives every call as it begins, if non-nil.
	Started chan InstallCall
}

// Install records the call.
func (f *FakeInstaller) Install(ctx context.Context, entry *types.EntryDetails, release *types.Release, progress types.ProgressFunc) error {
	call := InstallCall{Entry: entry, Release: release}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	block := f.Block
	started := f.Started
	f.mu.Unlock()

	if started != nil {
		started <- call
	}
	if progress != nil {
		progress(types.StreamProgress{BytesRead: 1, TotalBytes: 1})
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.Err
}

// Calls returns a copy of the recorded calls.
func (f *FakeInstaller) Calls() []InstallCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]InstallCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// ErrBoom is a generic failure for tests.
var ErrBoom = errors.New("boom")
