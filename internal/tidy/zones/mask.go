package zones

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/banshee-data/tidy.report/internal/monitoring"
)

// Mask is a binary occupancy grid with the pixel dimensions of the source image.
type Mask struct {
	Width  int
	Height int
	bits   *bitset.BitSet
}

// ErrImageSize is wrapped by CheckImageSize.
var ErrImageSize = errors.New("invalid image size")

// CheckImageSize rejects non-positive dimensions, a pixel count that
// overflows int, and images above maxPixels. A maxPixels of zero or less
// disables the cap.
func CheckImageSize(width, height, maxPixels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrImageSize, width, height)
	}
	if width > math.MaxInt/height {
		return fmt.Errorf("%w: %dx%d overflows the pixel count", ErrImageSize, width, height)
	}
	if maxPixels > 0 && width*height > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageSize, width, height, maxPixels)
	}
	return nil
}

// NewMask returns an empty width×height mask. Non-positive or overflowing
// dimensions yield an empty 0×0 mask.
func NewMask(width, height int) *Mask {
	if CheckImageSize(width, height, 0) != nil {
		width, height = 0, 0
	}
	return &Mask{Width: width, Height: height, bits: bitset.New(uint(width * height))}
}

// MaskFromGrid builds a mask from row-major cells; any non-zero cell is set.
// Rows shorter than the first row are padded with zeros.
func MaskFromGrid(grid [][]uint8) *Mask {
	if len(grid) == 0 {
		return NewMask(0, 0)
	}
	m := NewMask(len(grid[0]), len(grid))
	for y, row := range grid {
		for x, v := range row {
			if v != 0 && x < m.Width {
				m.Set(x, y)
			}
		}
	}
	return m
}

func (m *Mask) index(x, y int) (uint, bool) {
	if m == nil || x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0, false
	}
	return uint(y*m.Width + x), true
}

// Set marks pixel (x, y). Out-of-bounds coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if i, ok := m.index(x, y); ok {
		m.bits.Set(i)
	}
}

// FillRect sets every pixel in [x1,x2)×[y1,y2), clipped to the mask.
func (m *Mask) FillRect(x1, y1, x2, y2 int) {
	if m == nil {
		return
	}
	x1, x2 = max(x1, 0), min(x2, m.Width)
	y1, y2 = max(y1, 0), min(y2, m.Height)
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			m.bits.Set(uint(y*m.Width + x))
		}
	}
}

// At reports whether pixel (x, y) is set. Out-of-bounds pixels are unset.
func (m *Mask) At(x, y int) bool {
	i, ok := m.index(x, y)
	return ok && m.bits.Test(i)
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	if m == nil {
		return 0
	}
	return int(m.bits.Count())
}

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool { return m.Count() == 0 }

// Size returns the pixel count of the grid.
func (m *Mask) Size() int {
	if m == nil {
		return 0
	}
	return m.Width * m.Height
}

func (m *Mask) sameShape(o *Mask) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}

// MaskSet holds one occupancy grid per zone kind. Any field may be nil.
type MaskSet struct {
	Bed       *Mask
	Desk      *Mask
	Furniture *Mask
	Floor     *Mask
}

// Available reports whether at least one mask has occupied pixels.
func (s *MaskSet) Available() bool {
	if s == nil {
		return false
	}
	for _, m := range []*Mask{s.Bed, s.Desk, s.Furniture, s.Floor} {
		if !m.Empty() {
			return true
		}
	}
	return false
}

// Instance is one segmentation instance produced by the external segmenter.
type Instance struct {
	Label      string
	Confidence float64
	Mask       *Mask
}

// DetectedArea records which zone kind an instance contributed to.
type DetectedArea struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// floorRegionStart is the fraction of image height below which pixels are
// floor candidates.
const floorRegionStart = 0.7

// BuildMaskSet merges segmentation instances into a MaskSet. Bed instances
// fill the bed mask; desks and tables the desk mask; chairs, couches and
// sofas the furniture mask. The floor mask is the bottom 30% of the image
// minus every occupied pixel. Instances whose mask shape differs from the
// image are skipped. An unusable image size yields a nil set.
func BuildMaskSet(width, height int, instances []Instance) (*MaskSet, []DetectedArea) {
	if err := CheckImageSize(width, height, 0); err != nil {
		monitoring.Warnf("[zones] not building masks: %v", err)
		return nil, nil
	}
	set := &MaskSet{
		Bed:       NewMask(width, height),
		Desk:      NewMask(width, height),
		Furniture: NewMask(width, height),
		Floor:     NewMask(width, height),
	}
	var areas []DetectedArea

	for _, inst := range instances {
		if inst.Mask == nil || inst.Mask.Width != width || inst.Mask.Height != height {
			monitoring.Warnf("[zones] skipping %q instance: mask shape does not match %dx%d", inst.Label, width, height)
			continue
		}
		var target *Mask
		var kind string
		name := strings.ToLower(inst.Label)
		switch {
		case strings.Contains(name, "bed"):
			target, kind = set.Bed, "bed"
		case strings.Contains(name, "desk"), strings.Contains(name, "table"):
			target, kind = set.Desk, "desk"
		case strings.Contains(name, "chair"), strings.Contains(name, "couch"), strings.Contains(name, "sofa"):
			target, kind = set.Furniture, "furniture"
		default:
			continue
		}
		target.bits.InPlaceUnion(inst.Mask.bits)
		areas = append(areas, DetectedArea{Type: kind, Confidence: inst.Confidence})
	}

	set.Floor.FillRect(0, int(float64(height)*floorRegionStart), width, height)
	for _, occ := range []*Mask{set.Bed, set.Desk, set.Furniture} {
		set.Floor.bits.InPlaceDifference(occ.bits)
	}

	return set, areas
}

// Coverage is the fraction of image pixels occupied by each zone mask.
type Coverage struct {
	Floor     float64 `json:"floor"`
	Bed       float64 `json:"bed"`
	Desk      float64 `json:"desk"`
	Furniture float64 `json:"furniture"`
}

// AreaCoverage computes per-zone pixel coverage. The floor mask (or the
// first non-nil mask) defines the image size; masks of a different shape
// are reported as an error.
func AreaCoverage(s *MaskSet) (Coverage, error) {
	if s == nil {
		return Coverage{}, fmt.Errorf("nil mask set")
	}
	var ref *Mask
	for _, m := range []*Mask{s.Floor, s.Bed, s.Desk, s.Furniture} {
		if m != nil {
			ref = m
			break
		}
	}
	if ref == nil || ref.Size() == 0 {
		return Coverage{}, fmt.Errorf("mask set has no pixels")
	}
	total := float64(ref.Size())
	frac := func(m *Mask) (float64, error) {
		if m == nil {
			return 0, nil
		}
		if !m.sameShape(ref) {
			return 0, fmt.Errorf("mask shape %dx%d differs from %dx%d", m.Width, m.Height, ref.Width, ref.Height)
		}
		return float64(m.Count()) / total, nil
	}

	var c Coverage
	var err error
	if c.Floor, err = frac(s.Floor); err != nil {
		return Coverage{}, err
	}
	if c.Bed, err = frac(s.Bed); err != nil {
		return Coverage{}, err
	}
	if c.Desk, err = frac(s.Desk); err != nil {
		return Coverage{}, err
	}
	if c.Furniture, err = frac(s.Furniture); err != nil {
		return Coverage{}, err
	}
	return c, nil
}
