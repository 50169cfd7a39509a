package stacks

import (
	"fmt"
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/tidy"
)

// DetectorConfig holds the grouping thresholds.
type DetectorConfig struct {
	MinStackCount        int     // Minimum members for a group to be emitted
	VerticalGapMax       float64 // Maximum edge-to-edge vertical gap (px)
	HorizontalAlignRatio float64 // Centre offset limit as a fraction of the wider box
	SizeSimilarityRatio  float64 // Width difference limit as a fraction of the wider box
	PileOverlapThreshold float64 // Overlap ratio above which two boxes are piled
	HighSeverityCount    int     // Members at which severity becomes high
}

// DefaultDetectorConfig returns the built-in detector defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfigFromTuning(config.EmptyTuningConfig())
}

// DetectorConfigFromTuning builds a DetectorConfig from a loaded TuningConfig.
func DetectorConfigFromTuning(cfg *config.TuningConfig) DetectorConfig {
	return DetectorConfig{
		MinStackCount:        cfg.GetMinStackCount(),
		VerticalGapMax:       cfg.GetVerticalGapMaxPx(),
		HorizontalAlignRatio: cfg.GetHorizontalAlignRatio(),
		SizeSimilarityRatio:  cfg.GetSizeSimilarityRatio(),
		PileOverlapThreshold: cfg.GetPileOverlapThreshold(),
		HighSeverityCount:    cfg.GetHighSeverityCount(),
	}
}

// Detector groups detections into stacks and piles. It holds no mutable
// state and is safe for concurrent use.
type Detector struct {
	Config DetectorConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{Config: cfg}
}

// DetectStacks returns every vertical stack followed by every overlapping
// pile, per label in order of first appearance. Detections with an empty
// label or a non-positive box area never join a group.
func (d *Detector) DetectStacks(dets []tidy.Detection) []tidy.StackGroup {
	groups := make([]tidy.StackGroup, 0)
	for _, part := range partitionByLabel(dets) {
		if len(part.members) < d.Config.MinStackCount {
			continue
		}
		groups = append(groups, d.findVerticalStacks(dets, part)...)
		groups = append(groups, d.findOverlappingPiles(dets, part)...)
	}
	return groups
}

// IsVerticalStack reports whether two boxes are horizontally aligned,
// vertically close and of similar width.
func (d *Detector) IsVerticalStack(a, b tidy.BBox) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	cxA, _ := a.Center()
	cxB, _ := b.Center()
	wA, wB := a.Width(), b.Width()
	wMax := math.Max(wA, wB)

	aligned := math.Abs(cxA-cxB) < wMax*d.Config.HorizontalAlignRatio
	near := verticalGap(a, b) < d.Config.VerticalGapMax
	similar := math.Abs(wA-wB) < wMax*d.Config.SizeSimilarityRatio
	return aligned && near && similar
}

// verticalGap is 0 when the boxes touch or overlap vertically, otherwise the
// edge-to-edge distance between them.
func verticalGap(a, b tidy.BBox) float64 {
	switch {
	case a.Y2 < b.Y1:
		return b.Y1 - a.Y2
	case b.Y2 < a.Y1:
		return a.Y1 - b.Y2
	default:
		return 0
	}
}

type labelPartition struct {
	label   string
	members []int // detection indices, ascending
}

func partitionByLabel(dets []tidy.Detection) []labelPartition {
	var parts []labelPartition
	byLabel := make(map[string]int)
	for i, det := range dets {
		if det.Validate() != nil {
			continue
		}
		p, ok := byLabel[det.Label]
		if !ok {
			p = len(parts)
			byLabel[det.Label] = p
			parts = append(parts, labelPartition{label: det.Label})
		}
		parts[p].members = append(parts[p].members, i)
	}
	return parts
}

// findVerticalStacks grows single-linkage groups from each unvisited seed:
// a later item joins when it pairs with any current member. Only emitted
// groups mark their members visited.
func (d *Detector) findVerticalStacks(dets []tidy.Detection, part labelPartition) []tidy.StackGroup {
	var out []tidy.StackGroup
	visited := bitset.New(uint(len(dets)))

	for i, seed := range part.members {
		if visited.Test(uint(seed)) {
			continue
		}
		group := []int{seed}
		for _, cand := range part.members[i+1:] {
			if visited.Test(uint(cand)) {
				continue
			}
			for _, m := range group {
				if d.IsVerticalStack(dets[m].BBox, dets[cand].BBox) {
					group = append(group, cand)
					break
				}
			}
		}
		if len(group) < d.Config.MinStackCount {
			continue
		}
		for _, m := range group {
			visited.Set(uint(m))
		}
		out = append(out, d.newGroup(tidy.VerticalStack, part.label, dets, group))
	}
	return out
}

// findOverlappingPiles links every pair whose overlap ratio exceeds the
// threshold and emits each connected component large enough to count.
func (d *Detector) findOverlappingPiles(dets []tidy.Detection, part labelPartition) []tidy.StackGroup {
	g := simple.NewUndirectedGraph()
	for _, idx := range part.members {
		g.AddNode(simple.Node(idx))
	}
	for i, a := range part.members {
		for _, b := range part.members[i+1:] {
			if tidy.OverlapRatio(dets[a].BBox, dets[b].BBox) > d.Config.PileOverlapThreshold {
				g.SetEdge(g.NewEdge(simple.Node(a), simple.Node(b)))
			}
		}
	}

	var components [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		if len(cc) < d.Config.MinStackCount {
			continue
		}
		members := make([]int, len(cc))
		for i, n := range cc {
			members[i] = int(n.ID())
		}
		sort.Ints(members)
		components = append(components, members)
	}
	// Graph iteration order is unspecified; order piles by lowest member.
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })

	out := make([]tidy.StackGroup, 0, len(components))
	for _, members := range components {
		out = append(out, d.newGroup(tidy.OverlappingPile, part.label, dets, members))
	}
	return out
}

func (d *Detector) newGroup(kind tidy.StackKind, label string, dets []tidy.Detection, members []int) tidy.StackGroup {
	sorted := append([]int(nil), members...)
	sort.Ints(sorted)

	boxes := make([]tidy.BBox, len(sorted))
	for i, m := range sorted {
		boxes[i] = dets[m].BBox
	}

	severity := tidy.SeverityMedium
	if len(sorted) >= d.Config.HighSeverityCount {
		severity = tidy.SeverityHigh
	}

	return tidy.StackGroup{
		Kind:        kind,
		Label:       label,
		Members:     sorted,
		BoundingBox: tidy.UnionAll(boxes),
		Severity:    severity,
		Message:     groupMessage(kind, label, len(sorted)),
	}
}

func groupMessage(kind tidy.StackKind, label string, count int) string {
	switch kind {
	case tidy.VerticalStack:
		return fmt.Sprintf("%d %s are stacked vertically and could topple", count, label)
	default:
		return fmt.Sprintf("%d %s are piled on top of each other", count, label)
	}
}
