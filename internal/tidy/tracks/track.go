package tracks

import (
	"time"

	"github.com/banshee-data/tidy.report/internal/tidy"
)

// Observation is one sighting of a tracked object.
type Observation struct {
	BBox      tidy.BBox `json:"bbox"`
	Zone      tidy.Zone `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	ImageID   string    `json:"image"`
}

// Track is one physical object observed across uploads. All observations
// share Label and History is never empty.
type Track struct {
	ID        int64         `json:"id"`
	Label     string        `json:"object"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	History   []Observation `json:"history"`
}

// Latest returns the newest observation.
func (t *Track) Latest() Observation {
	return t.History[len(t.History)-1]
}

// ProblemCount counts observations in a problem zone.
func (t *Track) ProblemCount() int {
	n := 0
	for _, obs := range t.History {
		if obs.Zone.IsProblem() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to read without the tracker lock.
func (t *Track) Clone() *Track {
	copied := *t
	if len(t.History) > 0 {
		copied.History = make([]Observation, len(t.History))
		copy(copied.History, t.History)
	}
	return &copied
}

// Snapshot is the complete persisted tracker state.
type Snapshot struct {
	Tracks map[int64]*Track `json:"tracks"`
	NextID int64            `json:"next_track_id"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Tracks: make(map[int64]*Track)}
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Tracks: make(map[int64]*Track, len(s.Tracks)),
		NextID: s.NextID,
	}
	for id, tr := range s.Tracks {
		out.Tracks[id] = tr.Clone()
	}
	return out
}
