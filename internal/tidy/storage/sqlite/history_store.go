package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/tidy.report/internal/tidy"
)

// ErrAnalysisNotFound is returned by HistoryStore.Get for unknown run ids.
var ErrAnalysisNotFound = errors.New("analysis not found")

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// AnalysisSummary is the listing view of a tidy.AnalysisRecord.
type AnalysisSummary struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	ImageID      string    `json:"image_id"`
	Score        int       `json:"score"`
	TotalObjects int       `json:"total_objects"`
	FloorItems   int       `json:"floor_items"`
}

// HistoryStats aggregates every stored analysis. All fields are zero when
// nothing has been recorded.
type HistoryStats struct {
	TotalAnalyses int     `json:"total_analyses"`
	AverageScore  float64 `json:"average_score"` // Rounded to one decimal
	MaxScore      int     `json:"max_score"`
}

// HistoryStore records completed analyses.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a HistoryStore backed by the given database.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Save persists rec. An empty RunID is filled with tidy.NewRunID and a zero
// CreatedAt with the current time.
func (s *HistoryStore) Save(ctx context.Context, rec *tidy.AnalysisRecord) error {
	if rec.RunID == "" {
		rec.RunID = tidy.NewRunID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	dets := rec.Detections
	if dets == nil {
		dets = []tidy.Detection{}
	}
	detsJSON, err := json.Marshal(dets)
	if err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}
	sugg := rec.Suggestions
	if sugg == nil {
		sugg = []string{}
	}
	suggJSON, err := json.Marshal(sugg)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO analyses (
				run_id, created_unix_nanos, image_id, score,
				total_objects, floor_items, detections_json, suggestions_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.CreatedAt.UnixNano(), rec.ImageID, rec.Score,
			rec.TotalObjects, rec.FloorItems, string(detsJSON), string(suggJSON),
		)
		if err != nil {
			return fmt.Errorf("insert analysis %s: %w", rec.RunID, err)
		}
		return nil
	})
}

// Recent returns up to limit summaries, newest first. limit defaults to 10
// when not positive and is capped at 50.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]AnalysisSummary, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_unix_nanos, image_id, score, total_objects, floor_items
		FROM analyses
		ORDER BY created_unix_nanos DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := make([]AnalysisSummary, 0, limit)
	for rows.Next() {
		var (
			sum     AnalysisSummary
			created int64
		)
		if err := rows.Scan(&sum.RunID, &created, &sum.ImageID, &sum.Score,
			&sum.TotalObjects, &sum.FloorItems); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		sum.CreatedAt = fromNanos(created)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns the full record for runID.
func (s *HistoryStore) Get(ctx context.Context, runID string) (*tidy.AnalysisRecord, error) {
	var (
		rec                tidy.AnalysisRecord
		created            int64
		detsJSON, suggJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_unix_nanos, image_id, score, total_objects, floor_items,
		       detections_json, suggestions_json
		FROM analyses
		WHERE run_id = ?`, runID).Scan(
		&rec.RunID, &created, &rec.ImageID, &rec.Score, &rec.TotalObjects, &rec.FloorItems,
		&detsJSON, &suggJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis %s: %w", runID, err)
	}
	rec.CreatedAt = fromNanos(created)

	if err := json.Unmarshal([]byte(detsJSON), &rec.Detections); err != nil {
		return nil, fmt.Errorf("decode detections for %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(suggJSON), &rec.Suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions for %s: %w", runID, err)
	}
	return &rec, nil
}

// Statistics aggregates the score over every stored analysis.
func (s *HistoryStore) Statistics(ctx context.Context) (HistoryStats, error) {
	var (
		stats HistoryStats
		avg   sql.NullFloat64
		best  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score), MAX(score) FROM analyses`).Scan(&stats.TotalAnalyses, &avg, &best)
	if err != nil {
		return HistoryStats{}, fmt.Errorf("query analysis statistics: %w", err)
	}
	if avg.Valid {
		stats.AverageScore = math.Round(avg.Float64*10) / 10
	}
	if best.Valid {
		stats.MaxScore = int(best.Int64)
	}
	return stats, nil
}
