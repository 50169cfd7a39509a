// Package testutil provides shared test fixtures: detection builders and a
// migrated throwaway database.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/tidy.report/internal/db"
	"github.com/banshee-data/tidy.report/internal/tidy"
)

// Det builds an unclassified detection with confidence 0.9.
func Det(label string, x1, y1, x2, y2 float64) tidy.Detection {
	return tidy.Detection{
		Label:      label,
		Confidence: 0.9,
		BBox:       tidy.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Zone:       tidy.ZoneUnknown,
	}
}

// DetIn builds a detection already placed in zone.
func DetIn(label string, zone tidy.Zone, x1, y1, x2, y2 float64) tidy.Detection {
	d := Det(label, x1, y1, x2, y2)
	d.Zone = zone
	return d
}

// NewTestDB opens a fully migrated database under t.TempDir and closes it
// when the test ends.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
