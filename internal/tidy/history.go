package tidy

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one completed analysis as kept in the history.
type AnalysisRecord struct {
	RunID        string      `json:"run_id"`
	CreatedAt    time.Time   `json:"created_at"`
	ImageID      string      `json:"image_id"`
	Score        int         `json:"score"`
	TotalObjects int         `json:"total_objects"`
	FloorItems   int         `json:"floor_items"`
	Detections   []Detection `json:"detections"`
	Suggestions  []string    `json:"suggestions"`
}

// NewRunID returns a fresh analysis run id.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
