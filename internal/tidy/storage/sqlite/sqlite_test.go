package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tidy.report/internal/testutil"
	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/tidy/tracks"
	"github.com/banshee-data/tidy.report/internal/timeutil"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return testutil.NewTestDB(t).DB
}

var seen = time.Date(2025, 3, 1, 9, 0, 0, 123456789, time.UTC)

func sampleSnapshot() *tracks.Snapshot {
	snap := tracks.NewSnapshot()
	snap.Tracks[2] = &tracks.Track{
		ID: 2, Label: "backpack", FirstSeen: seen, LastSeen: seen.Add(time.Hour),
		History: []tracks.Observation{
			{BBox: tidy.BBox{X1: 10, Y1: 300, X2: 90.5, Y2: 420}, Zone: tidy.ZoneFloor, Timestamp: seen, ImageID: "a"},
			{BBox: tidy.BBox{X1: 12, Y1: 301, X2: 91, Y2: 420}, Zone: tidy.ZoneBedSurface, Timestamp: seen.Add(time.Hour), ImageID: "b"},
		},
	}
	snap.Tracks[5] = &tracks.Track{
		ID: 5, Label: "cup", FirstSeen: seen, LastSeen: seen,
		History: []tracks.Observation{
			{BBox: tidy.BBox{X1: 400, Y1: 100, X2: 440, Y2: 150}, Zone: tidy.ZoneDesk, Timestamp: seen, ImageID: "a"},
		},
	}
	snap.NextID = 6
	return snap
}

func TestTrackStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTrackStore(setupTestDB(t))

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Tracks)
	assert.Equal(t, int64(0), empty.NextID)

	want := sampleSnapshot()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// A smaller snapshot fully replaces the previous one.
	delete(want.Tracks, 2)
	want.NextID = 9
	require.NoError(t, store.Save(ctx, want))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("replaced snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.Save(ctx, tracks.NewSnapshot()))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Tracks)
	assert.Equal(t, int64(0), got.NextID)
}

func TestTrackStore_CancelledContext(t *testing.T) {
	t.Parallel()
	store := NewTrackStore(setupTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Save(ctx, sampleSnapshot()))
	_, err := store.Load(ctx)
	assert.Error(t, err)
}

func TestTrackStore_WithTracker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	database := setupTestDB(t)
	clock := timeutil.NewMockClock(seen)
	cfg := tracks.DefaultTrackerConfig()

	tr := tracks.NewTracker(ctx, cfg, NewTrackStore(database), clock)
	sock := tidy.Detection{Label: "sock", Confidence: 0.7, BBox: tidy.BBox{X1: 0, Y1: 400, X2: 30, Y2: 430}, Zone: tidy.ZoneFloor}
	for i := 0; i < 3; i++ {
		tr.Update(ctx, []tidy.Detection{sock}, fmt.Sprintf("img-%d", i))
		clock.Advance(time.Minute)
	}

	// A second tracker over the same database sees the persisted history.
	reloaded := tracks.NewTracker(ctx, cfg, NewTrackStore(database), clock)
	problems := reloaded.GetProblemObjects(2)
	require.Len(t, problems, 1)
	assert.Equal(t, 3, problems[0].ProblemCount)
	assert.InDelta(t, 1.0, problems[0].ProblemRatio, 1e-12)

	require.NoError(t, reloaded.Reset(ctx))
	after := tracks.NewTracker(ctx, cfg, NewTrackStore(database), clock)
	assert.Empty(t, after.GetAllTracks())
}

func TestHistoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(setupTestDB(t))

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, HistoryStats{}, stats)

	recent, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)

	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	scores := []int{70, 85, 91}
	for i, score := range scores {
		rec := &tidy.AnalysisRecord{
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			ImageID:      fmt.Sprintf("img-%d", i),
			Score:        score,
			TotalObjects: i + 1,
			FloorItems:   i,
			Detections: []tidy.Detection{
				{Label: "shirt", Confidence: 0.9, BBox: tidy.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4}, Zone: tidy.ZoneFloor},
			},
			Suggestions: []string{"Put the shirt on the floor in the laundry basket or wardrobe"},
		}
		require.NoError(t, store.Save(ctx, rec))
		assert.True(t, strings.HasPrefix(rec.RunID, "run_"), "generated run id %q", rec.RunID)
	}

	stats, err = store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, HistoryStats{TotalAnalyses: 3, AverageScore: 82, MaxScore: 91}, stats)

	recent, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 91, recent[0].Score, "newest first")
	assert.Equal(t, 85, recent[1].Score)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].CreatedAt)

	full, err := store.Get(ctx, recent[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, "img-2", full.ImageID)
	require.Len(t, full.Detections, 1)
	assert.Equal(t, tidy.ZoneFloor, full.Detections[0].Zone)
	assert.Equal(t, []string{"Put the shirt on the floor in the laundry basket or wardrobe"}, full.Suggestions)

	_, err = store.Get(ctx, "run_missing")
	assert.True(t, errors.Is(err, ErrAnalysisNotFound))

	dup := &tidy.AnalysisRecord{RunID: recent[0].RunID, Score: 1}
	assert.Error(t, store.Save(ctx, dup), "run ids are unique")
}

func TestHistoryStore_AverageRounding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(setupTestDB(t))

	for _, score := range []int{70, 70, 71} {
		require.NoError(t, store.Save(ctx, &tidy.AnalysisRecord{Score: score}))
	}
	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70.3, stats.AverageScore)
}

func TestHistoryStore_RecentLimitClamp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(setupTestDB(t))

	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, store.Save(ctx, &tidy.AnalysisRecord{CreatedAt: base.Add(time.Duration(i) * time.Second), Score: i}))
	}

	tests := []struct {
		limit, want int
	}{
		{0, 10},
		{-3, 10},
		{1, 1},
		{25, 25},
		{500, 50},
	}
	for _, tt := range tests {
		got, err := store.Recent(ctx, tt.limit)
		require.NoError(t, err)
		assert.Len(t, got, tt.want, "limit %d", tt.limit)
	}
}

func TestHistoryStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewHistoryStore(setupTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, &tidy.AnalysisRecord{Score: score}))
		}(i)
	}
	wg.Wait()

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalAnalyses)
	assert.Equal(t, 19, stats.MaxScore)
}

func TestIsBusy(t *testing.T) {
	t.Parallel()
	assert.False(t, isBusy(nil))
	assert.False(t, isBusy(errors.New("database is locked")), "only typed driver errors count")

	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls, "non-busy errors are not retried")
}
