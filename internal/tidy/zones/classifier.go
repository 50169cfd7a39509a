package zones

import (
	"math"
	"strings"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/tidy"
)

// Method records which classification path produced the zones.
type Method string

const (
	MethodSegmentation Method = "segmentation"
	MethodFallback     Method = "fallback"
)

// ClassifierConfig holds the fallback heuristic parameters.
type ClassifierConfig struct {
	FloorBottomRatio float64 // Bottom edge beyond this fraction of the lowest bottom edge → floor
	BedAboveGapPx    float64 // Centre must be this far above a bed's centre
	ChairAboveGapPx  float64 // Centre must be this far above a chair's centre
	TableAboveGapPx  float64 // Centre must be this far above a desk/table centre
}

// DefaultClassifierConfig returns the built-in classifier defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfigFromTuning(config.EmptyTuningConfig())
}

// ClassifierConfigFromTuning builds a ClassifierConfig from a loaded TuningConfig.
func ClassifierConfigFromTuning(cfg *config.TuningConfig) ClassifierConfig {
	return ClassifierConfig{
		FloorBottomRatio: cfg.GetFloorBottomRatio(),
		BedAboveGapPx:    cfg.GetBedAboveGapPx(),
		ChairAboveGapPx:  cfg.GetChairAboveGapPx(),
		TableAboveGapPx:  cfg.GetTableAboveGapPx(),
	}
}

// Classifier assigns zones to detections. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	Config ClassifierConfig
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{Config: cfg}
}

// Classify sets the Zone of every detection and reports the path used.
// Masks are used when at least one is non-empty; otherwise the heuristic
// fallback runs over the detection list itself.
func (c *Classifier) Classify(dets []tidy.Detection, masks *MaskSet) Method {
	if masks.Available() {
		for i := range dets {
			dets[i].Zone = ZoneFromMasks(dets[i].BBox, masks)
		}
		return MethodSegmentation
	}

	maxBottom := maxBottomEdge(dets)
	zones := make([]tidy.Zone, len(dets))
	for i := range dets {
		zones[i] = c.fallbackZone(i, dets, maxBottom)
	}
	// Assign after computing so every decision sees the same inputs.
	for i := range dets {
		dets[i].Zone = zones[i]
	}
	return MethodFallback
}

// ZoneFromMasks tests the box centre against the masks in priority order
// bed > desk > furniture > floor. The first hit wins; no hit is normal.
func ZoneFromMasks(b tidy.BBox, masks *MaskSet) tidy.Zone {
	if masks == nil {
		return tidy.ZoneNormal
	}
	fx, fy := b.Center()
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return tidy.ZoneNormal
	}
	x, y := int(fx), int(fy)
	switch {
	case masks.Bed.At(x, y):
		return tidy.ZoneBedSurface
	case masks.Desk.At(x, y):
		return tidy.ZoneDesk
	case masks.Furniture.At(x, y):
		return tidy.ZoneFurniture
	case masks.Floor.At(x, y):
		return tidy.ZoneFloor
	default:
		return tidy.ZoneNormal
	}
}

// ClassifyByImageBounds is the coarse fallback used when only the image
// height is known: low boxes are on the floor, high boxes on a shelf.
func ClassifyByImageBounds(b tidy.BBox, imageHeight float64) tidy.Zone {
	switch {
	case b.Y2 > imageHeight*0.75:
		return tidy.ZoneFloor
	case b.Y1 < imageHeight*0.3:
		return tidy.ZoneShelf
	default:
		return tidy.ZoneNormal
	}
}

func (c *Classifier) fallbackZone(i int, dets []tidy.Detection, maxBottom float64) tidy.Zone {
	b := dets[i].BBox
	if b.Y2 > maxBottom*c.Config.FloorBottomRatio {
		return tidy.ZoneFloor
	}

	if c.aboveAny(i, dets, c.Config.BedAboveGapPx, func(l string) bool {
		return strings.Contains(l, "bed")
	}) {
		return tidy.ZoneBedSurface
	}
	if c.aboveAny(i, dets, c.Config.ChairAboveGapPx, func(l string) bool {
		return strings.Contains(l, "chair")
	}) {
		return tidy.ZoneChairSurface
	}

	_, cy := b.Center()
	for j, other := range dets {
		if j == i {
			continue
		}
		label := other.NormalizedLabel()
		isDesk := strings.Contains(label, "desk")
		if !isDesk && !strings.Contains(label, "dining table") {
			continue
		}
		if isAbove(cy, other.BBox, c.Config.TableAboveGapPx) {
			if isDesk {
				return tidy.ZoneDesk
			}
			return tidy.ZoneTable
		}
	}

	return tidy.ZoneNormal
}

func (c *Classifier) aboveAny(i int, dets []tidy.Detection, gap float64, match func(string) bool) bool {
	_, cy := dets[i].BBox.Center()
	for j, other := range dets {
		if j == i || !match(other.NormalizedLabel()) {
			continue
		}
		if isAbove(cy, other.BBox, gap) {
			return true
		}
	}
	return false
}

// isAbove reports whether a vertical centre cy lies more than gap pixels
// above the centre of support.
func isAbove(cy float64, support tidy.BBox, gap float64) bool {
	_, sy := support.Center()
	return cy+gap < sy
}

func maxBottomEdge(dets []tidy.Detection) float64 {
	maxY := math.Inf(-1)
	for _, d := range dets {
		if d.BBox.Y2 > maxY && !math.IsNaN(d.BBox.Y2) && !math.IsInf(d.BBox.Y2, 0) {
			maxY = d.BBox.Y2
		}
	}
	if math.IsInf(maxY, -1) {
		return 0
	}
	return maxY
}
