package tracks

import (
	"fmt"
	"sort"
	"time"
)

// ProblemObject is a track that keeps turning up in a problem zone.
type ProblemObject struct {
	TrackID          int64     `json:"track_id"`
	Label            string    `json:"object"`
	TotalAppearances int       `json:"total_appearances"`
	ProblemCount     int       `json:"problem_count"`
	ProblemRatio     float64   `json:"problem_ratio"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	Message          string    `json:"message"`
}

// GetProblemObjects reports tracks with at least minAppearances
// observations of which at least minAppearances were in a problem zone.
// Results are ordered by problem count then ratio, both descending, with
// track id breaking ties.
func (t *Tracker) GetProblemObjects(minAppearances int) []ProblemObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	problems := make([]ProblemObject, 0)
	for _, tr := range t.tracks {
		total := len(tr.History)
		if total < minAppearances {
			continue
		}
		count := tr.ProblemCount()
		if count < minAppearances || count == 0 {
			continue
		}
		problems = append(problems, ProblemObject{
			TrackID:          tr.ID,
			Label:            tr.Label,
			TotalAppearances: total,
			ProblemCount:     count,
			ProblemRatio:     float64(count) / float64(total),
			FirstSeen:        tr.FirstSeen,
			LastSeen:         tr.LastSeen,
			Message:          fmt.Sprintf("%s was found in a problem spot %d times", tr.Label, count),
		})
	}

	sort.Slice(problems, func(i, j int) bool {
		a, b := problems[i], problems[j]
		if a.ProblemCount != b.ProblemCount {
			return a.ProblemCount > b.ProblemCount
		}
		if a.ProblemRatio != b.ProblemRatio {
			return a.ProblemRatio > b.ProblemRatio
		}
		return a.TrackID < b.TrackID
	})
	return problems
}

// Statistics summarises the tracked population.
type Statistics struct {
	TotalTracks  int            `json:"total_tracks"`
	ActiveTracks int            `json:"active_tracks"` // Seen within the inactivity window
	MostCommon   string         `json:"most_common_object,omitempty"`
	LabelCounts  map[string]int `json:"object_counts"`
}

// GetStatistics counts tracks per label. MostCommon breaks ties by the
// lexically smallest label and is empty when no tracks exist.
func (t *Tracker) GetStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Statistics{
		TotalTracks: len(t.tracks),
		LabelCounts: make(map[string]int),
	}
	cutoff := t.clock.Now().Add(-t.Config.InactivityWindow)
	for _, tr := range t.tracks {
		stats.LabelCounts[tr.Label]++
		if !tr.LastSeen.Before(cutoff) {
			stats.ActiveTracks++
		}
	}

	best := 0
	for label, n := range stats.LabelCounts {
		if n > best || (n == best && label < stats.MostCommon) {
			stats.MostCommon, best = label, n
		}
	}
	return stats
}
