package scoring

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/tidy/stacks"
)

func det(label string, zone tidy.Zone, x1, y1, x2, y2 float64) tidy.Detection {
	return tidy.Detection{
		Label:      label,
		Confidence: 0.8,
		BBox:       tidy.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Zone:       zone,
	}
}

// spread places n boxes far enough apart that no clustering penalty applies.
func spread(label string, zone tidy.Zone, n int) []tidy.Detection {
	out := make([]tidy.Detection, n)
	for i := range out {
		x := float64(i) * 400
		out[i] = det(label, zone, x, 600, x+60, 680)
	}
	return out
}

func TestEngine_EmptyInput(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())

	for name, dets := range map[string][]tidy.Detection{
		"nil":         nil,
		"empty":       {},
		"all invalid": {det("", tidy.ZoneFloor, 0, 0, 10, 10), det("cup", tidy.ZoneFloor, 5, 5, 5, 5)},
	} {
		dets := dets
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := e.Score(dets, nil)
			want := tidy.Report{
				Score:       100,
				Issues:      []string{},
				Suggestions: []string{msgSpotless},
				Stacks:      []tidy.StackGroup{},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_EmptyInputDropsStaleGroups(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())
	groups := []tidy.StackGroup{{Kind: tidy.VerticalStack, Label: "book", Members: []int{0, 1, 2}, Severity: tidy.SeverityHigh}}

	for name, dets := range map[string][]tidy.Detection{
		"nil":         nil,
		"all invalid": {det("", tidy.ZoneFloor, 0, 0, 10, 10)},
	} {
		dets := dets
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, bd := e.Evaluate(dets, groups)
			assert.Equal(t, 100, got.Score)
			require.NotNil(t, got.Stacks)
			assert.Empty(t, got.Stacks)
			assert.Empty(t, got.Issues)
			assert.Zero(t, bd)
		})
	}
}

func TestEngine_SingleItem(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())

	report, bd := e.Evaluate([]tidy.Detection{det("Shirt", tidy.ZoneFloor, 100, 400, 200, 480)}, nil)

	// 2.5 weight × 2.5 floor × 3.
	assert.InDelta(t, 18.75, bd.Items, 1e-9)
	assert.Zero(t, bd.Clustering)
	assert.Equal(t, 82, report.Score)
	assert.Equal(t, []string{"clothes_floor"}, report.Issues)
	assert.Equal(t, []string{
		"Very tidy! A little more attention and it will be perfect",
		"Put the shirt on the floor in the laundry basket or wardrobe",
	}, report.Suggestions)
}

func TestEngine_DefaultsForUnknownLabelAndZone(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())

	_, unknownZone := e.Evaluate([]tidy.Detection{det("gizmo", tidy.ZoneUnknown, 0, 0, 10, 10)}, nil)
	_, normalZone := e.Evaluate([]tidy.Detection{det("gizmo", tidy.ZoneNormal, 0, 0, 10, 10)}, nil)

	assert.InDelta(t, 1.5*1.2*3, unknownZone.Items, 1e-9)
	assert.InDelta(t, normalZone.Items, unknownZone.Items, 1e-9)
}

func TestEngine_StackedBooks(t *testing.T) {
	t.Parallel()
	dets := []tidy.Detection{
		det("book", tidy.ZoneDesk, 50, 100, 150, 150),
		det("book", tidy.ZoneDesk, 50, 140, 150, 190),
		det("book", tidy.ZoneDesk, 50, 180, 150, 230),
	}
	groups := stacks.NewDetector(stacks.DefaultDetectorConfig()).DetectStacks(dets)
	require.Len(t, groups, 1)

	report, bd := NewEngine(DefaultEngineConfig()).Evaluate(dets, groups)

	assert.Equal(t, 10.0, bd.Stacking)
	assert.Equal(t, 27.0, bd.Items)
	assert.Zero(t, bd.Aggregate)
	assert.Equal(t, 12.0, bd.Clustering, "centres 40-80px apart")
	assert.Equal(t, 51, report.Score)

	assert.Equal(t, []string{"book_desk", "vertical_stack_book"}, report.Issues)
	assert.Equal(t, []string{
		"This room needs a good tidy. Start with the top priorities",
		"3 book are stacked vertically and could topple. Lay them out side by side",
		"Put the book on the desk away in a drawer",
		msgSpreadOut,
	}, report.Suggestions)
	assert.Equal(t, groups, report.Stacks)
}

func TestEngine_HighSeverityStackLeadsFeedback(t *testing.T) {
	t.Parallel()
	dets := spread("box", tidy.ZoneNormal, 5)
	groups := []tidy.StackGroup{{
		Kind:     tidy.OverlappingPile,
		Label:    "box",
		Members:  []int{0, 1, 2, 3, 4},
		Severity: tidy.SeverityHigh,
	}}

	report, bd := NewEngine(DefaultEngineConfig()).Evaluate(dets, groups)
	assert.Equal(t, 10.0, bd.Stacking)
	require.NotEmpty(t, report.Suggestions)
	assert.Equal(t, "Danger! 1 groups are stacked high enough to topple. Tidy them right away", report.Suggestions[0])
	assert.Contains(t, report.Issues, "overlapping_pile_box")
}

func TestEngine_ClusteringPenalty(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())

	tests := []struct {
		name    string
		centres [][2]float64
		want    float64
	}{
		{"five within 40px", [][2]float64{{100, 100}, {110, 100}, {120, 100}, {100, 110}, {110, 110}}, 12},
		{"loose triangle", [][2]float64{{0, 0}, {100, 0}, {0, 100}}, 6},
		{"far apart", [][2]float64{{0, 0}, {500, 0}, {0, 500}}, 0},
		{"two tight items", [][2]float64{{0, 0}, {5, 0}}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dets := make([]tidy.Detection, len(tt.centres))
			for i, c := range tt.centres {
				dets[i] = det("gizmo", tidy.ZoneNormal, c[0]-10, c[1]-10, c[0]+10, c[1]+10)
			}
			report, bd := e.Evaluate(dets, nil)
			assert.Equal(t, tt.want, bd.Clustering)
			assert.Equal(t, tt.want > 8, contains(report.Suggestions, msgSpreadOut))
		})
	}
}

func TestEngine_CategoryRules(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultEngineConfig())

	t.Run("clothes everywhere", func(t *testing.T) {
		t.Parallel()
		report, bd := e.Evaluate(spread("shirt", tidy.ZoneFloor, 5), nil)
		assert.Equal(t, 22.0, bd.Aggregate, "clothing ≥5 plus floor ≥4")
		assert.Equal(t, 0, report.Score)
		assert.Equal(t, "Clothes and other items are scattered everywhere. The whole room needs a tidy", report.Suggestions[0])
		assert.Contains(t, report.Suggestions, msgManyClothes)
		assert.Contains(t, report.Suggestions, msgFloorFirst)
		assert.Equal(t, []string{"clothes_floor"}, report.Issues)
	})

	t.Run("floor first", func(t *testing.T) {
		t.Parallel()
		report, _ := e.Evaluate(spread("suitcase", tidy.ZoneFloor, 4), nil)
		assert.Equal(t, "The floor is covered in items. Start by clearing the floor", report.Suggestions[0])
		assert.Equal(t, []string{"bag_floor"}, report.Issues)
	})

	t.Run("drinks", func(t *testing.T) {
		t.Parallel()
		dets := spread("cup", tidy.ZoneDesk, 3)
		dets = append(dets, det("bottle", tidy.ZoneBedSurface, 2000, 100, 2040, 180))
		report, bd := e.Evaluate(dets, nil)
		assert.Equal(t, 6.0, bd.Aggregate)
		assert.Equal(t, []string{"cup_misplaced"}, report.Issues)
		assert.Contains(t, report.Suggestions, "Take the cup to the sink")
		assert.Contains(t, report.Suggestions, "Take the bottle on the bed to the sink")
		assert.Contains(t, report.Suggestions, msgManyDrinks)
	})

	t.Run("chair clutter needs clothes on the chair first", func(t *testing.T) {
		t.Parallel()
		dets := spread("jacket", tidy.ZoneChairSurface, 3)
		dets = append(dets, det("chair", tidy.ZoneFloor, 3000, 300, 3200, 700))
		report, _ := e.Evaluate(dets, nil)
		assert.Equal(t, []string{"chair_cluttered", "clothes_chair"}, report.Issues)
		assert.Contains(t, report.Suggestions, msgChairClutter)
	})

	t.Run("sneakers by the door, shoes with clothing", func(t *testing.T) {
		t.Parallel()
		dets := []tidy.Detection{
			det("sneaker", tidy.ZoneFloor, 0, 600, 60, 700),
			det("shoe", tidy.ZoneFloor, 800, 600, 860, 700),
			det("lamp", tidy.ZoneDesk, 1600, 0, 1660, 100),
		}
		report, _ := e.Evaluate(dets, nil)
		assert.Equal(t, []string{"clothes_floor", "shoe_floor"}, report.Issues)
	})

	t.Run("books, sports gear and electronics", func(t *testing.T) {
		t.Parallel()
		dets := []tidy.Detection{
			det("book", tidy.ZoneFloor, 0, 600, 60, 700),
			det("sports ball", tidy.ZoneFloor, 800, 600, 860, 700),
			det("laptop", tidy.ZoneFloor, 1600, 600, 1700, 700),
			det("handbag", tidy.ZoneBedSurface, 2400, 200, 2500, 300),
		}
		report, bd := e.Evaluate(dets, nil)
		assert.Equal(t, 5.0, bd.Aggregate, "three floor items")
		assert.Equal(t, []string{"bag_bed", "book_floor", "electronics_floor", "sports_floor"}, report.Issues)
	})
}

func TestEngine_SuggestionLimit(t *testing.T) {
	t.Parallel()
	cfg := DefaultEngineConfig()
	cfg.MaxSuggestions = 2

	dets := []tidy.Detection{
		det("shirt", tidy.ZoneFloor, 0, 600, 60, 700),
		det("pants", tidy.ZoneFloor, 800, 600, 860, 700),
		det("socks", tidy.ZoneFloor, 1600, 600, 1660, 700),
	}
	report := NewEngine(cfg).Score(dets, nil)
	require.Len(t, report.Suggestions, 2)
	assert.Equal(t, "Put the shirt on the floor in the laundry basket or wardrobe", report.Suggestions[1])
}

func TestEngine_ScoreProperties(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	zones := tidy.Zones

	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.Intn(12)
		dets := make([]tidy.Detection, n)
		for i := range dets {
			x, y := rng.Float64()*1000, rng.Float64()*800
			dets[i] = det("gizmo", zones[rng.Intn(len(zones))], x, y, x+10+rng.Float64()*100, y+10+rng.Float64()*100)
		}

		prev := 101
		for _, w := range []float64{0, 0.5, 1, 1.5, 3, 6, 12} {
			cfg := DefaultEngineConfig()
			cfg.DefaultObjectWeight = w
			score := NewEngine(cfg).Score(dets, nil).Score
			if score < 0 || score > 100 {
				t.Fatalf("trial %d: score %d out of range", trial, score)
			}
			if score > prev {
				t.Fatalf("trial %d: score rose from %d to %d as weight grew to %v", trial, prev, score, w)
			}
			prev = score
		}
	}
}

func TestTables(t *testing.T) {
	t.Parallel()

	w, ok := ObjectWeight("cup")
	assert.True(t, ok)
	assert.Equal(t, 2.2, w)
	_, ok = ObjectWeight("spaceship")
	assert.False(t, ok)

	m, ok := LocationMultiplier(tidy.ZoneFloor)
	assert.True(t, ok)
	assert.Equal(t, 2.5, m)
	_, ok = LocationMultiplier(tidy.ZoneUnknown)
	assert.False(t, ok)

	for _, z := range tidy.Zones {
		_, ok := LocationMultiplier(z)
		assert.True(t, ok, "zone %s has a multiplier", z)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
