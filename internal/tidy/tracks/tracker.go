package tracks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/monitoring"
	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/timeutil"
)

// TrackerConfig holds association and retention parameters.
type TrackerConfig struct {
	IoUThreshold     float64       // IoU a detection must exceed to extend a track
	InactivityWindow time.Duration // Tracks unseen for longer are purged
	PersistTimeout   time.Duration // Bound on each Store.Load/Save call
}

// DefaultTrackerConfig returns the built-in tracker defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		IoUThreshold:     cfg.GetTrackIoUThreshold(),
		InactivityWindow: cfg.GetTrackInactivityWindow(),
		PersistTimeout:   cfg.GetPersistTimeout(),
	}
}

// Tracker matches detections to persistent tracks. Update and Reset are
// serialized by mu and include the Store write; readers take the read lock
// and receive copies.
type Tracker struct {
	Config TrackerConfig

	store  Store
	clock  timeutil.Clock
	tracks map[int64]*Track
	nextID int64

	mu sync.RWMutex
}

// NewTracker creates a tracker and loads any state held by store. A load
// failure is logged and the tracker starts empty. A nil store keeps state
// in memory only; a nil clock uses wall time.
func NewTracker(ctx context.Context, cfg TrackerConfig, store Store, clock timeutil.Clock) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	t := &Tracker{
		Config: cfg,
		store:  store,
		clock:  clock,
		tracks: make(map[int64]*Track),
	}

	loadCtx, cancel := t.persistContext(ctx)
	defer cancel()
	snap, err := store.Load(loadCtx)
	if err != nil {
		monitoring.Warnf("[tracks] load state failed, starting empty: %v", err)
		return t
	}
	if snap == nil {
		return t
	}
	for id, tr := range snap.Tracks {
		if tr != nil && len(tr.History) > 0 {
			t.tracks[id] = tr
		}
	}
	t.nextID = snap.NextID
	monitoring.Logf("[tracks] loaded %d tracks (next id %d)", len(t.tracks), t.nextID)
	return t
}

// Update associates each detection with a track, purges inactive tracks
// and persists the result. It returns the track id assigned to each
// detection, or -1 for detections skipped as invalid.
func (t *Tracker) Update(ctx context.Context, dets []tidy.Detection, imageID string) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	assigned := make([]int64, len(dets))

	for i, det := range dets {
		if err := det.Validate(); err != nil {
			monitoring.Logf("[tracks] skipping detection %d: %v", i, err)
			assigned[i] = -1
			continue
		}

		obs := Observation{
			BBox:      det.BBox,
			Zone:      det.Zone,
			Timestamp: now,
			ImageID:   imageID,
		}

		if id, ok := t.bestMatch(det); ok {
			tr := t.tracks[id]
			tr.History = append(tr.History, obs)
			tr.LastSeen = now
			assigned[i] = id
			continue
		}

		id := t.nextID
		t.nextID++
		t.tracks[id] = &Track{
			ID:        id,
			Label:     det.Label,
			FirstSeen: now,
			LastSeen:  now,
			History:   []Observation{obs},
		}
		assigned[i] = id
	}

	t.purge(now)
	t.persist(ctx)
	return assigned
}

// bestMatch returns the same-label track whose newest box has the highest
// IoU with det, provided it exceeds the threshold. Ties go to the lowest id.
func (t *Tracker) bestMatch(det tidy.Detection) (int64, bool) {
	var (
		bestID  int64
		bestIoU float64
		found   bool
	)
	for _, id := range t.sortedIDs() {
		tr := t.tracks[id]
		if tr.Label != det.Label {
			continue
		}
		iou := tidy.IoU(det.BBox, tr.Latest().BBox)
		if iou > t.Config.IoUThreshold && iou > bestIoU {
			bestID, bestIoU, found = id, iou, true
		}
	}
	return bestID, found
}

func (t *Tracker) sortedIDs() []int64 {
	ids := make([]int64, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// purge drops tracks whose LastSeen is strictly before now-window.
func (t *Tracker) purge(now time.Time) {
	cutoff := now.Add(-t.Config.InactivityWindow)
	removed := 0
	for id, tr := range t.tracks {
		if tr.LastSeen.Before(cutoff) {
			delete(t.tracks, id)
			removed++
		}
	}
	if removed > 0 {
		monitoring.Logf("[tracks] purged %d inactive tracks", removed)
	}
}

// persist writes the current state. Failures are logged; in-memory state
// stays authoritative. Caller must hold mu.
func (t *Tracker) persist(ctx context.Context) {
	snap := &Snapshot{Tracks: t.tracks, NextID: t.nextID}
	saveCtx, cancel := t.persistContext(ctx)
	defer cancel()
	if err := t.store.Save(saveCtx, snap.Clone()); err != nil {
		monitoring.Warnf("[tracks] save state failed: %v", err)
	}
}

func (t *Tracker) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.Config.PersistTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Config.PersistTimeout)
}

// Reset clears all tracks, restarts ids at zero and persists the empty
// state. The in-memory reset always happens; the returned error reports
// only the persistence outcome.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracks = make(map[int64]*Track)
	t.nextID = 0

	saveCtx, cancel := t.persistContext(ctx)
	defer cancel()
	if err := t.store.Save(saveCtx, NewSnapshot()); err != nil {
		monitoring.Warnf("[tracks] save after reset failed: %v", err)
		return err
	}
	monitoring.Logf("[tracks] tracker reset")
	return nil
}

// GetTrack returns a copy of the track with the given id, or nil.
func (t *Tracker) GetTrack(id int64) *Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tr, ok := t.tracks[id]
	if !ok {
		return nil
	}
	return tr.Clone()
}

// GetAllTracks returns copies of every track ordered by id.
func (t *Tracker) GetAllTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Track, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		out = append(out, t.tracks[id].Clone())
	}
	return out
}
