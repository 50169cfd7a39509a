package scoring

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/monitoring"
	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/tidy/stacks"
)

// EngineConfig holds scoring weights and limits.
type EngineConfig struct {
	DefaultObjectWeight       float64 // Weight for labels missing from the table
	DefaultLocationMultiplier float64 // Multiplier for unassigned zones
	ItemPenaltyScale          float64 // Per-item penalty is weight × multiplier × scale
	MaxSuggestions            int

	ClusterTightPx      float64 // Mean centre distance below which items are tightly bunched
	ClusterLoosePx      float64
	ClusterTightPenalty float64
	ClusterLoosePenalty float64

	Stacking stacks.PenaltyConfig
}

// DefaultEngineConfig returns the built-in scoring defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfigFromTuning(config.EmptyTuningConfig())
}

// EngineConfigFromTuning builds an EngineConfig from a loaded TuningConfig.
func EngineConfigFromTuning(cfg *config.TuningConfig) EngineConfig {
	return EngineConfig{
		DefaultObjectWeight:       cfg.GetDefaultObjectWeight(),
		DefaultLocationMultiplier: cfg.GetDefaultLocationMultiplier(),
		ItemPenaltyScale:          cfg.GetItemPenaltyScale(),
		MaxSuggestions:            cfg.GetMaxSuggestions(),
		ClusterTightPx:            cfg.GetClusterTightPx(),
		ClusterLoosePx:            cfg.GetClusterLoosePx(),
		ClusterTightPenalty:       cfg.GetClusterTightPenalty(),
		ClusterLoosePenalty:       cfg.GetClusterLoosePenalty(),
		Stacking:                  stacks.PenaltyConfigFromTuning(cfg),
	}
}

// Breakdown itemises where the penalty came from.
type Breakdown struct {
	Stacking   float64 `json:"stacking"`
	Items      float64 `json:"items"`
	Aggregate  float64 `json:"aggregate"`
	Clustering float64 `json:"clustering"`
}

// Total sums every component.
func (b Breakdown) Total() float64 {
	return b.Stacking + b.Items + b.Aggregate + b.Clustering
}

// Engine scores detections. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	Config EngineConfig
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{Config: cfg}
}

// tally accumulates per-category counters and output while walking the
// detections.
type tally struct {
	clothes, floor, bed, chair, desk, drinks int

	issues      []string
	suggestions []string
}

func (t *tally) add(issue, suggestion string) {
	if issue != "" {
		t.issues = append(t.issues, issue)
	}
	if suggestion != "" {
		t.suggestions = append(t.suggestions, suggestion)
	}
}

// Score returns the Report for dets and their stack groups.
func (e *Engine) Score(dets []tidy.Detection, groups []tidy.StackGroup) tidy.Report {
	report, _ := e.Evaluate(dets, groups)
	return report
}

// Evaluate returns the Report together with its penalty breakdown.
// Detections that fail validation are left out of every calculation.
func (e *Engine) Evaluate(dets []tidy.Detection, groups []tidy.StackGroup) (tidy.Report, Breakdown) {
	if groups == nil {
		groups = []tidy.StackGroup{}
	}

	valid := make([]tidy.Detection, 0, len(dets))
	for i, d := range dets {
		if err := d.Validate(); err != nil {
			monitoring.Logf("[scoring] skipping detection %d: %v", i, err)
			continue
		}
		valid = append(valid, d)
	}

	// Stack groups describe detections; with none left there is nothing to report.
	if len(valid) == 0 {
		return tidy.Report{
			Score:       100,
			Issues:      []string{},
			Suggestions: []string{msgSpotless},
			Stacks:      []tidy.StackGroup{},
		}, Breakdown{}
	}

	var bd Breakdown
	t := &tally{}

	bd.Stacking = stacks.StackingPenalty(groups, e.Config.Stacking)
	for _, g := range groups {
		t.issues = append(t.issues, fmt.Sprintf("%s_%s", g.Kind, g.Label))
		t.suggestions = append(t.suggestions, stackSuggestion(g))
	}

	maxBottom := 0.0
	for _, d := range valid {
		maxBottom = math.Max(maxBottom, d.BBox.Y2)
	}

	for _, d := range valid {
		label := d.NormalizedLabel()
		bd.Items += e.objectWeight(label) * e.locationMultiplier(d.Zone) * e.Config.ItemPenaltyScale
		t.applyItemRule(label, d, maxBottom)
	}

	bd.Aggregate = t.applyAggregates()

	bd.Clustering = e.clusteringPenalty(valid)
	if bd.Clustering > 8 {
		t.add("", msgSpreadOut)
	}

	score := clampScore(100 - int(math.Floor(bd.Total())))

	high := 0
	for _, g := range groups {
		if g.Severity == tidy.SeverityHigh {
			high++
		}
	}
	overall := overallFeedback(score, t.clothes, t.floor, high)
	suggestions := append([]string{overall}, t.suggestions...)

	return tidy.Report{
		Score:       score,
		Issues:      uniqueSorted(t.issues),
		Suggestions: dedupe(suggestions, e.Config.MaxSuggestions),
		Stacks:      groups,
	}, bd
}

func (e *Engine) objectWeight(label string) float64 {
	if w, ok := ObjectWeight(label); ok {
		return w
	}
	return e.Config.DefaultObjectWeight
}

func (e *Engine) locationMultiplier(z tidy.Zone) float64 {
	if m, ok := LocationMultiplier(z); ok {
		return m
	}
	return e.Config.DefaultLocationMultiplier
}

// applyItemRule updates counters and adds the category suggestion for one
// detection.
func (t *tally) applyItemRule(label string, d tidy.Detection, maxBottom float64) {
	zone := d.Zone
	switch categorize(label) {
	case categoryClothing:
		t.clothes++
		switch zone {
		case tidy.ZoneFloor:
			t.floor++
			t.add("clothes_floor", fmt.Sprintf("Put the %s on the floor in the laundry basket or wardrobe", label))
		case tidy.ZoneBedSurface:
			t.bed++
			t.add("clothes_bed", fmt.Sprintf("Hang the %s on the bed in the wardrobe", label))
		case tidy.ZoneChairSurface:
			t.chair++
			t.add("clothes_chair", fmt.Sprintf("Put the %s on the chair away in the wardrobe", label))
		}

	case categoryBag:
		switch zone {
		case tidy.ZoneFloor:
			t.floor++
			t.add("bag_floor", fmt.Sprintf("Put the %s on the floor into storage", label))
		case tidy.ZoneBedSurface:
			t.bed++
			t.add("bag_bed", fmt.Sprintf("Take the %s off the bed", label))
		}

	case categoryBook:
		switch zone {
		case tidy.ZoneFloor:
			t.floor++
			t.add("book_floor", fmt.Sprintf("Put the %s on the floor back on the bookshelf or desk", label))
		case tidy.ZoneDesk:
			t.desk++
			suggestion := ""
			if t.desk <= 2 {
				suggestion = fmt.Sprintf("Put the %s on the desk away in a drawer", label)
			}
			t.add("book_desk", suggestion)
		}

	case categoryDrink:
		t.drinks++
		switch {
		case zone.IsProblem():
			t.add("cup_misplaced", fmt.Sprintf("Take the %s on the %s to the sink", label, zonePhrase(zone)))
		case t.drinks > 1:
			t.add("", fmt.Sprintf("Take the %s to the sink", label))
		}

	case categorySports:
		if zone == tidy.ZoneFloor {
			t.floor++
			t.add("sports_floor", fmt.Sprintf("Store the %s on the floor with the sports gear", label))
		}

	case categoryShoe:
		if zone == tidy.ZoneFloor && d.BBox.Y2 > maxBottom*0.7 {
			t.add("shoe_floor", fmt.Sprintf("Put the %s by the door or on the shoe rack", label))
		}

	case categoryElectronics:
		if zone == tidy.ZoneFloor {
			t.floor++
			t.add("electronics_floor", fmt.Sprintf("Move the %s from the floor to the desk", label))
		}

	case categoryChair:
		if t.chair > 2 {
			t.add("chair_cluttered", msgChairClutter)
		}
	}
}

// applyAggregates adds the threshold penalties and their suggestions.
func (t *tally) applyAggregates() float64 {
	var penalty float64

	switch {
	case t.clothes >= 5:
		penalty += 12
		t.add("", msgManyClothes)
	case t.clothes >= 3:
		penalty += 6
	}

	switch {
	case t.floor >= 4:
		penalty += 10
		t.add("", msgFloorFirst)
	case t.floor >= 2:
		penalty += 5
	}

	if t.bed >= 3 {
		penalty += 8
		t.add("", msgClearBed)
	}

	if t.drinks >= 3 {
		penalty += 6
		t.add("", msgManyDrinks)
	}

	return penalty
}

// clusteringPenalty charges for items bunched together, measured by the
// mean pairwise distance between box centres. Fewer than three items are
// never penalised.
func (e *Engine) clusteringPenalty(dets []tidy.Detection) float64 {
	if len(dets) < 3 {
		return 0
	}

	centres := make([][]float64, len(dets))
	for i, d := range dets {
		cx, cy := d.BBox.Center()
		centres[i] = []float64{cx, cy}
	}

	dists := make([]float64, 0, len(dets)*(len(dets)-1)/2)
	for i := 0; i < len(centres); i++ {
		for j := i + 1; j < len(centres); j++ {
			dists = append(dists, floats.Distance(centres[i], centres[j], 2))
		}
	}

	mean := stat.Mean(dists, nil)
	switch {
	case mean < e.Config.ClusterTightPx:
		return e.Config.ClusterTightPenalty
	case mean < e.Config.ClusterLoosePx:
		return e.Config.ClusterLoosePenalty
	default:
		return 0
	}
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

// dedupe drops repeated suggestions keeping first occurrences, then
// truncates to limit. A limit below one keeps everything.
func dedupe(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
