package tidy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidDetection is wrapped by Detection.Validate.
var ErrInvalidDetection = errors.New("invalid detection")

// Zone is the semantic region a detected object occupies.
type Zone string

const (
	ZoneUnknown      Zone = "unknown" // Sentinel until classified
	ZoneFloor        Zone = "floor"
	ZoneBedSurface   Zone = "bed_surface"
	ZoneChairSurface Zone = "chair_surface"
	ZoneDesk         Zone = "desk"
	ZoneTable        Zone = "table"
	ZoneFurniture    Zone = "furniture"
	ZoneShelf        Zone = "shelf"
	ZoneNormal       Zone = "normal"
)

// Zones lists every zone a classifier may assign, in declaration order.
var Zones = []Zone{
	ZoneFloor, ZoneBedSurface, ZoneChairSurface, ZoneDesk,
	ZoneTable, ZoneFurniture, ZoneShelf, ZoneNormal,
}

// IsAssigned reports whether z is one of the classified zones.
func (z Zone) IsAssigned() bool {
	for _, c := range Zones {
		if z == c {
			return true
		}
	}
	return false
}

// IsProblem reports whether objects in z count against chronic-placement
// statistics.
func (z Zone) IsProblem() bool {
	return z == ZoneFloor || z == ZoneBedSurface
}

// BBox is an axis-aligned pixel box (X1,Y1) top-left to (X2,Y2) bottom-right.
// It marshals as the four-element array [x1, y1, x2, y2].
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a four-element numeric array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: expected 4 coordinates, got %d", len(v))
	}
	b.X1, b.Y1, b.X2, b.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

// Detection is one object instance found in one image.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	Zone       Zone    `json:"zone"`
}

// NormalizedLabel returns the lower-cased, trimmed label used for table lookups.
func (d Detection) NormalizedLabel() string {
	return strings.ToLower(strings.TrimSpace(d.Label))
}

// Validate checks the detector contract: non-empty label, finite box with
// positive area.
func (d Detection) Validate() error {
	if strings.TrimSpace(d.Label) == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidDetection)
	}
	if !d.BBox.Valid() {
		return fmt.Errorf("%w: %q has non-positive bbox area %v", ErrInvalidDetection, d.Label, d.BBox)
	}
	return nil
}

// ClampConfidence forces the confidence into [0,1]; NaN becomes 0.
func (d *Detection) ClampConfidence() {
	switch {
	case math.IsNaN(d.Confidence) || d.Confidence < 0:
		d.Confidence = 0
	case d.Confidence > 1:
		d.Confidence = 1
	}
}

// StackKind distinguishes the two grouping relations.
type StackKind string

const (
	VerticalStack   StackKind = "vertical_stack"   // Aligned boxes piled upwards, toppling risk
	OverlappingPile StackKind = "overlapping_pile" // Heaped boxes, harder to retrieve
)

// Severity is a coarse risk tier for a stack group.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// StackGroup is a cluster of same-label detections.
type StackGroup struct {
	Kind        StackKind `json:"type"`
	Label       string    `json:"object"`
	Members     []int     `json:"indices"` // Detection indices, ascending
	BoundingBox BBox      `json:"bounding_box"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
}

// Count returns the number of member detections.
func (g StackGroup) Count() int { return len(g.Members) }

// Report is the scored outcome of one analysis.
type Report struct {
	Score       int          `json:"score"`
	Issues      []string     `json:"issues"`
	Suggestions []string     `json:"suggestions"`
	Stacks      []StackGroup `json:"stacks"`
}
