package zones

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/tidy.report/internal/tidy"
)

func det(label string, x1, y1, x2, y2 float64) tidy.Detection {
	return tidy.Detection{Label: label, Confidence: 0.9, BBox: tidy.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, Zone: tidy.ZoneUnknown}
}

func zonesOf(dets []tidy.Detection) []tidy.Zone {
	out := make([]tidy.Zone, len(dets))
	for i, d := range dets {
		out[i] = d.Zone
	}
	return out
}

func TestClassifyFallback(t *testing.T) {
	t.Parallel()
	c := NewClassifier(DefaultClassifierConfig())

	t.Run("floor and bed surface", func(t *testing.T) {
		dets := []tidy.Detection{
			det("remote", 0, 900, 50, 1000),  // bottom edge is the image proxy
			det("bed", 100, 500, 500, 740),   // centre 620
			det("shirt", 200, 400, 260, 480), // centre 440, well above the bed
		}
		assert.Equal(t, MethodFallback, c.Classify(dets, nil))
		assert.Equal(t, []tidy.Zone{tidy.ZoneFloor, tidy.ZoneNormal, tidy.ZoneBedSurface}, zonesOf(dets))
	})

	t.Run("chair surface", func(t *testing.T) {
		dets := []tidy.Detection{
			det("chair", 100, 300, 200, 500), // centre 400, bottom 500 → floor
			det("cup", 120, 250, 180, 300),   // centre 275
		}
		c.Classify(dets, nil)
		assert.Equal(t, []tidy.Zone{tidy.ZoneFloor, tidy.ZoneChairSurface}, zonesOf(dets))
	})

	t.Run("desk versus dining table", func(t *testing.T) {
		dets := []tidy.Detection{
			det("rug", 0, 900, 10, 1000),
			det("desk", 0, 300, 200, 500),  // centre 400
			det("book", 50, 320, 100, 350), // centre 335 → 375 < 400
			det("pen", 50, 340, 100, 390),  // centre 365 → 405 ≥ 400, too close
			det("dining table", 600, 300, 800, 500),
			det("cup", 650, 320, 700, 350),
		}
		c.Classify(dets, nil)
		assert.Equal(t, tidy.ZoneDesk, dets[2].Zone)
		assert.Equal(t, tidy.ZoneDesk, dets[5].Zone, "desk is checked before the dining table")
		assert.Equal(t, tidy.ZoneNormal, dets[1].Zone)
		assert.Equal(t, tidy.ZoneNormal, dets[3].Zone)
		assert.Equal(t, tidy.ZoneNormal, dets[4].Zone)
	})

	t.Run("dining table", func(t *testing.T) {
		dets := []tidy.Detection{
			det("rug", 0, 900, 10, 1000),
			det("dining table", 600, 300, 800, 500),
			det("bottle", 650, 320, 700, 350),
		}
		c.Classify(dets, nil)
		assert.Equal(t, tidy.ZoneTable, dets[2].Zone)
	})

	t.Run("bed takes priority over chair", func(t *testing.T) {
		dets := []tidy.Detection{
			det("rug", 0, 900, 10, 1000),
			det("bed", 0, 400, 300, 600),
			det("chair", 400, 400, 500, 600),
			det("jacket", 100, 100, 200, 200),
		}
		c.Classify(dets, nil)
		assert.Equal(t, tidy.ZoneBedSurface, dets[3].Zone)
	})

	t.Run("every detection receives a zone", func(t *testing.T) {
		dets := []tidy.Detection{
			det("book", 10, 10, 10, 10),
			det("cup", math.NaN(), 0, 5, math.NaN()),
			det("", 0, 0, 20, 20),
		}
		c.Classify(dets, nil)
		for i, d := range dets {
			assert.True(t, d.Zone.IsAssigned(), "detection %d zone %q", i, d.Zone)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Equal(t, MethodFallback, c.Classify(nil, nil))
	})
}

func TestClassifyWithMasks(t *testing.T) {
	t.Parallel()

	set := &MaskSet{
		Bed:       NewMask(100, 100),
		Desk:      NewMask(100, 100),
		Furniture: NewMask(100, 100),
		Floor:     NewMask(100, 100),
	}
	set.Bed.FillRect(0, 0, 50, 50)
	set.Desk.FillRect(25, 25, 75, 75) // overlaps bed in [25,50)
	set.Furniture.FillRect(50, 0, 100, 25)
	set.Floor.FillRect(0, 75, 100, 100)

	dets := []tidy.Detection{
		det("pillow", 20, 20, 40, 40), // centre (30,30): bed and desk → bed wins
		det("laptop", 55, 55, 65, 65), // centre (60,60): desk
		det("coat", 70, 5, 90, 15),    // centre (80,10): furniture
		det("shoe", 10, 80, 20, 90),   // centre (15,85): floor
		det("lamp", 80, 40, 90, 60),   // centre (85,50): nothing
		det("ghost", 500, 500, 600, 600),
	}

	c := NewClassifier(DefaultClassifierConfig())
	assert.Equal(t, MethodSegmentation, c.Classify(dets, set))
	assert.Equal(t, []tidy.Zone{
		tidy.ZoneBedSurface, tidy.ZoneDesk, tidy.ZoneFurniture,
		tidy.ZoneFloor, tidy.ZoneNormal, tidy.ZoneNormal,
	}, zonesOf(dets))
}

func TestClassifyEmptyMasksFallsBack(t *testing.T) {
	t.Parallel()

	set := &MaskSet{Bed: NewMask(10, 10)}
	dets := []tidy.Detection{det("sock", 0, 0, 10, 10)}

	c := NewClassifier(DefaultClassifierConfig())
	assert.Equal(t, MethodFallback, c.Classify(dets, set))
	assert.Equal(t, tidy.ZoneFloor, dets[0].Zone)
}

func TestClassifyByImageBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, tidy.ZoneFloor, ClassifyByImageBounds(tidy.BBox{X1: 0, Y1: 700, X2: 10, Y2: 800}, 1000))
	assert.Equal(t, tidy.ZoneShelf, ClassifyByImageBounds(tidy.BBox{X1: 0, Y1: 100, X2: 10, Y2: 200}, 1000))
	assert.Equal(t, tidy.ZoneNormal, ClassifyByImageBounds(tidy.BBox{X1: 0, Y1: 400, X2: 10, Y2: 500}, 1000))
}

func TestClassifierConfigFromTuning(t *testing.T) {
	t.Parallel()

	cfg := DefaultClassifierConfig()
	assert.Equal(t, 0.75, cfg.FloorBottomRatio)
	assert.Equal(t, 30.0, cfg.BedAboveGapPx)
	assert.Equal(t, 30.0, cfg.ChairAboveGapPx)
	assert.Equal(t, 40.0, cfg.TableAboveGapPx)
}
