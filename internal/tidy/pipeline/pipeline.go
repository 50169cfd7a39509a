// Package pipeline runs one room analysis end to end: input validation,
// zone classification, stack grouping, cross-upload tracking, scoring and
// history recording. It merges the stage outputs into a single Result.
package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/monitoring"
	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/tidy/scoring"
	"github.com/banshee-data/tidy.report/internal/tidy/stacks"
	"github.com/banshee-data/tidy.report/internal/tidy/tracks"
	"github.com/banshee-data/tidy.report/internal/tidy/zones"
	"github.com/banshee-data/tidy.report/internal/timeutil"
)

// Segmentation is the optional output of the external room segmenter.
type Segmentation struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Instances []SegmentInstance `json:"instances"`
}

// SegmentInstance is one segmented region as a row-major 0/1 grid.
type SegmentInstance struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Mask       [][]uint8 `json:"mask"`
}

// Input is one analysis request.
type Input struct {
	ImageID      string           `json:"image_id"`
	Detections   []tidy.Detection `json:"detections"`
	Segmentation *Segmentation    `json:"segmentation,omitempty"`

	// Masks takes precedence over Segmentation when set.
	Masks *zones.MaskSet `json:"-"`
}

// Result is the merged payload of one analysis.
type Result struct {
	RunID           string                 `json:"run_id"`
	ImageID         string                 `json:"image_id"`
	Detections      []tidy.Detection       `json:"detections"`
	Report          tidy.Report            `json:"report"`
	Breakdown       scoring.Breakdown      `json:"penalty_breakdown"`
	ZoneMethod      zones.Method           `json:"zone_method"`
	Stacks          []tidy.StackGroup      `json:"stacks"`
	StackingWarning string                 `json:"stacking_warning,omitempty"`
	ChronicProblems []tracks.ProblemObject `json:"chronic_problems"`
	TrackingStats   *tracks.Statistics     `json:"tracking_stats,omitempty"`
	TrackingWarning string                 `json:"tracking_warning,omitempty"`
	AreaCoverage    *zones.Coverage        `json:"area_coverage,omitempty"`
	DetectedAreas   []zones.DetectedArea   `json:"detected_areas,omitempty"`
	Dropped         int                    `json:"dropped_detections"`
}

// History records completed analyses.
type History interface {
	Save(ctx context.Context, rec *tidy.AnalysisRecord) error
}

// Options wires an Analyzer.
type Options struct {
	Tuning  *config.TuningConfig // nil uses the built-in defaults
	Tracker *tracks.Tracker      // nil disables cross-upload tracking
	History History              // nil disables history recording
	Clock   timeutil.Clock       // nil uses wall time
}

// Analyzer runs analyses. The stages it owns are stateless; shared state
// lives in the Tracker and History, which are safe for concurrent use, so
// Analyze may be called from multiple goroutines.
type Analyzer struct {
	classifier     *zones.Classifier
	detector       *stacks.Detector
	engine         *scoring.Engine
	tracker        *tracks.Tracker
	history        History
	clock          timeutil.Clock
	minAppearances int
	maxMaskPixels  int
}

// NewAnalyzer builds an Analyzer from opts.
func NewAnalyzer(opts Options) *Analyzer {
	cfg := opts.Tuning
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Analyzer{
		classifier:     zones.NewClassifier(zones.ClassifierConfigFromTuning(cfg)),
		detector:       stacks.NewDetector(stacks.DetectorConfigFromTuning(cfg)),
		engine:         scoring.NewEngine(scoring.EngineConfigFromTuning(cfg)),
		tracker:        opts.Tracker,
		history:        opts.History,
		clock:          clock,
		minAppearances: cfg.GetProblemMinAppearances(),
		maxMaskPixels:  cfg.GetMaxMaskPixels(),
	}
}

// Analyze runs every stage over in. It never fails: malformed detections
// are dropped, missing or unusable masks fall back to heuristics, and
// tracker or history persistence errors are logged.
func (a *Analyzer) Analyze(ctx context.Context, in Input) Result {
	start := a.clock.Now()

	res := Result{
		RunID:           tidy.NewRunID(),
		ImageID:         in.ImageID,
		ChronicProblems: []tracks.ProblemObject{},
	}
	if res.ImageID == "" {
		res.ImageID = res.RunID
	}

	dets := sanitize(in.Detections)
	res.Dropped = len(in.Detections) - len(dets)

	masks := in.Masks
	if masks == nil && in.Segmentation != nil {
		var err error
		if masks, res.DetectedAreas, err = buildMasks(in.Segmentation, a.maxMaskPixels); err != nil {
			monitoring.Warnf("[pipeline] run %s: ignoring segmentation: %v", res.RunID, err)
		}
	}
	res.ZoneMethod = a.classifier.Classify(dets, masks)
	if res.ZoneMethod == zones.MethodSegmentation {
		if cov, err := zones.AreaCoverage(masks); err != nil {
			monitoring.Warnf("[pipeline] run %s: area coverage unavailable: %v", res.RunID, err)
		} else {
			res.AreaCoverage = &cov
		}
	}
	res.Detections = dets

	res.Stacks = a.detector.DetectStacks(dets)
	if n := len(res.Stacks); n > 0 {
		res.StackingWarning = fmt.Sprintf("%d groups of objects are stacked or piled", n)
	}

	if a.tracker != nil {
		a.tracker.Update(ctx, dets, res.ImageID)
		res.ChronicProblems = a.tracker.GetProblemObjects(a.minAppearances)
		stats := a.tracker.GetStatistics()
		res.TrackingStats = &stats
		if n := len(res.ChronicProblems); n > 0 {
			res.TrackingWarning = fmt.Sprintf("%d items keep turning up in the wrong place", n)
		}
	}

	res.Report, res.Breakdown = a.engine.Evaluate(dets, res.Stacks)

	if a.history != nil {
		rec := &tidy.AnalysisRecord{
			RunID:        res.RunID,
			CreatedAt:    start,
			ImageID:      res.ImageID,
			Score:        res.Report.Score,
			TotalObjects: len(dets),
			FloorItems:   countZone(dets, tidy.ZoneFloor),
			Detections:   dets,
			Suggestions:  res.Report.Suggestions,
		}
		if err := a.history.Save(ctx, rec); err != nil {
			monitoring.Warnf("[pipeline] run %s: history save failed: %v", res.RunID, err)
		}
	}

	monitoring.Logf("[pipeline] run %s: %d detections (%d dropped), %s zones, %d stacks, score %d in %v",
		res.RunID, len(dets), res.Dropped, res.ZoneMethod, len(res.Stacks), res.Report.Score, a.clock.Since(start))
	return res
}

// sanitize copies the valid detections, clamping confidence and clearing
// any caller-supplied zone.
func sanitize(in []tidy.Detection) []tidy.Detection {
	out := make([]tidy.Detection, 0, len(in))
	for i, d := range in {
		if err := d.Validate(); err != nil {
			monitoring.Logf("[pipeline] dropping detection %d: %v", i, err)
			continue
		}
		d.ClampConfidence()
		d.Zone = tidy.ZoneUnknown
		out = append(out, d)
	}
	return out
}

// buildMasks turns seg into zone masks. The image must fit within maxPixels
// and every instance grid must be exactly Height rows of Width cells.
func buildMasks(seg *Segmentation, maxPixels int) (*zones.MaskSet, []zones.DetectedArea, error) {
	if err := zones.CheckImageSize(seg.Width, seg.Height, maxPixels); err != nil {
		return nil, nil, err
	}
	instances := make([]zones.Instance, 0, len(seg.Instances))
	for i, inst := range seg.Instances {
		if err := checkGrid(inst.Mask, seg.Width, seg.Height); err != nil {
			return nil, nil, fmt.Errorf("instance %d (%q): %w", i, inst.Label, err)
		}
		instances = append(instances, zones.Instance{
			Label:      inst.Label,
			Confidence: inst.Confidence,
			Mask:       zones.MaskFromGrid(inst.Mask),
		})
	}
	masks, areas := zones.BuildMaskSet(seg.Width, seg.Height, instances)
	return masks, areas, nil
}

func checkGrid(grid [][]uint8, width, height int) error {
	if len(grid) != height {
		return fmt.Errorf("mask has %d rows, image height is %d", len(grid), height)
	}
	for y, row := range grid {
		if len(row) != width {
			return fmt.Errorf("mask row %d has %d cells, image width is %d", y, len(row), width)
		}
	}
	return nil
}

func countZone(dets []tidy.Detection, z tidy.Zone) int {
	n := 0
	for _, d := range dets {
		if d.Zone == z {
			n++
		}
	}
	return n
}
