package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/curator/internal/registry"
	"github.com/potooio/curator/internal/resolver"
	"github.com/potooio/curator/internal/testutil"
	"github.com/potooio/curator/internal/types"
)

func newTestBuilder(cat *testutil.FakeCatalog, reg registry.Registry) *Builder {
	return NewBuilder(resolver.New(cat, zap.NewNop()), reg, zap.NewNop())
}

func TestBuild_ExampleScenario(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, testutil.T0))
	b := newTestBuilder(cat, registry.NewMemory())

	idx, stats, err := b.Build(context.Background(), testutil.MakeCuration(42, "game.exe"))
	require.NoError(t, err)

	bucket, ok := idx.Lookup("game.exe")
	require.True(t, ok)
	require.Len(t, bucket, 1)
	assert.Equal(t, int64(42), bucket[0].EntryID())
	assert.Equal(t, "game.exe", bucket[0].ProcessName)
	assert.Equal(t, BuildStats{Triggers: 1, Indexed: 1}, stats)
}

func TestBuild_SkipsEntriesWithoutRelease(t *testing.T) {
	cat := testutil.NewFakeCatalog(
		testutil.MakeEntryWithoutRelease(1),
		testutil.MakeEntry(2, testutil.T0),
	)
	doc := &types.Curation{Profiles: []types.CurationProfile{
		{WorkshopID: 1, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "a.exe"}, {ProcessName: "b.exe"}}},
		{WorkshopID: 2, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "b.exe"}}},
	}}

	idx, stats, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(), doc)
	require.NoError(t, err)

	_, ok := idx.Lookup("a.exe")
	assert.False(t, ok)
	bucket, _ := idx.Lookup("b.exe")
	require.Len(t, bucket, 1)
	assert.Equal(t, int64(2), bucket[0].EntryID())
	assert.Equal(t, 2, stats.NoRelease)
}

func TestBuild_InstalledTieBreak(t *testing.T) {
	released := testutil.T0

	tests := []struct {
		name        string
		installedAt time.Time
		wantIndexed bool
	}{
		{name: "installed after release is up to date", installedAt: released.Add(time.Second), wantIndexed: false},
		{name: "installed at release time needs update", installedAt: released, wantIndexed: true},
		{name: "installed before release needs update", installedAt: released.Add(-time.Hour), wantIndexed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, released))
			reg := registry.NewMemory(types.InstalledEntry{EntryID: 42, InstalledAt: tt.installedAt})

			idx, _, err := newTestBuilder(cat, reg).Build(context.Background(), testutil.MakeCuration(42, "game.exe"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndexed, idx.Count() == 1)
		})
	}
}

func TestBuild_UnresolvedIsNonFatal(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(2, testutil.T0))
	cat.SetError(1, testutil.ErrBoom)

	doc := &types.Curation{Profiles: []types.CurationProfile{
		{WorkshopID: 1, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "a.exe"}}},
		{WorkshopID: 3, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "a.exe"}}},
		{WorkshopID: 2, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "a.exe"}}},
	}}

	idx, stats, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unresolved)

	bucket, _ := idx.Lookup("a.exe")
	require.Len(t, bucket, 1)
	assert.Equal(t, int64(2), bucket[0].EntryID())
}

func TestBuild_PreservesDocumentOrderAcrossDocuments(t *testing.T) {
	cat := testutil.NewFakeCatalog(
		testutil.MakeEntry(1, testutil.T0),
		testutil.MakeEntry(2, testutil.T0),
		testutil.MakeEntry(3, testutil.T0),
	)

	idx, _, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(),
		testutil.MakeCuration(3, "game.exe"),
		testutil.MakeCuration(1, "game.exe", "other.exe"),
		testutil.MakeCuration(2, "game.exe"),
	)
	require.NoError(t, err)

	bucket, _ := idx.Lookup("game.exe")
	require.Len(t, bucket, 3)
	assert.Equal(t, int64(3), bucket[0].EntryID())
	assert.Equal(t, int64(1), bucket[1].EntryID())
	assert.Equal(t, int64(2), bucket[2].EntryID())
}

func TestBuild_ResolvesEachWorkshopIDOnce(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, testutil.T0))

	idx, _, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(),
		testutil.MakeCuration(42, "a.exe", "b.exe", "c.exe"))
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Count())
	assert.Equal(t, 1, cat.Calls(42))
}

func TestBuild_InvalidWindowTitleSkipped(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, testutil.T0))
	doc := &types.Curation{Profiles: []types.CurationProfile{{
		WorkshopID: 42,
		ProfileTriggers: []types.ProfileTrigger{
			{ProcessName: "game.exe", WindowTitle: "(("},
			{ProcessName: "game.exe", WindowTitle: "Lobby"},
		},
	}}}

	idx, stats, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, 1, idx.Count())
}

func TestBuild_MalformedTriggersSkipped(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, testutil.T0))
	doc := &types.Curation{Profiles: []types.CurationProfile{
		{WorkshopID: 42, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "game.exe"}, {ProcessName: "  "}}},
		{WorkshopID: 0, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "other.exe"}}},
	}}

	idx, stats, err := newTestBuilder(cat, registry.NewMemory()).Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Triggers: 3, Indexed: 1, Invalid: 2}, stats)
	assert.Equal(t, []string{"game.exe"}, idx.ProcessNames())
	assert.Equal(t, 0, cat.Calls(0), "malformed ids are never resolved")
}

func TestBuild_WindowTitlesNotReported(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(42, testutil.T0))
	doc := &types.Curation{Profiles: []types.CurationProfile{{
		WorkshopID: 42,
		ProfileTriggers: []types.ProfileTrigger{
			{ProcessName: "game.exe", WindowTitle: "Lobby"},
			{ProcessName: "game.exe"},
		},
	}}}

	b := newTestBuilder(cat, registry.NewMemory())
	_, stats, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, stats.TitleUnmatchable)

	b.SetWindowTitlesReported(false)
	idx, stats, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TitleUnmatchable)
	assert.Equal(t, 2, idx.Count())
}

func TestBuild_CancelledDiscardsPartialIndex(t *testing.T) {
	cat := testutil.NewFakeCatalog(testutil.MakeEntry(1, testutil.T0), testutil.MakeEntry(2, testutil.T0))
	cat.Block = make(chan struct{})
	cat.Started = make(chan int64, 2)

	ctx, cancel := context.WithCancel(context.Background())
	doc := &types.Curation{Profiles: []types.CurationProfile{
		{WorkshopID: 1, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "a.exe"}}},
		{WorkshopID: 2, ProfileTriggers: []types.ProfileTrigger{{ProcessName: "b.exe"}}},
	}}

	type result struct {
		idx *Index
		err error
	}
	done := make(chan result, 1)
	go func() {
		idx, _, err := newTestBuilder(cat, registry.NewMemory()).Build(ctx, doc)
		done <- result{idx, err}
	}()

	<-cat.Started
	cancel()

	select {
	case r := <-done:
		assert.ErrorIs(t, r.err, context.Canceled)
		require.NotNil(t, r.idx)
		assert.Equal(t, 0, r.idx.Count())
	case <-time.After(5 * time.Second):
		t.Fatal("build did not stop after cancellation")
	}
	assert.Equal(t, 0, cat.Calls(2), "no lookups after cancellation")
}

func TestBuild_NilDocument(t *testing.T) {
	idx, stats, err := newTestBuilder(testutil.NewFakeCatalog(), registry.NewMemory()).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Count())
	assert.Equal(t, 0, stats.Triggers)
}
