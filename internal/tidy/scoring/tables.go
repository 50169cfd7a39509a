package scoring

import (
	"strings"

	"github.com/banshee-data/tidy.report/internal/tidy"
)

// objectWeights is how much an out-of-place item of each label costs
// before the zone multiplier. Read-only.
var objectWeights = map[string]float64{
	"shirt": 2.5, "pants": 2.5, "jacket": 2.5, "clothes": 2.5,
	"tie": 1.5, "shoe": 2.0, "sneaker": 2.0, "socks": 1.8,
	"backpack": 2.8, "handbag": 2.5, "suitcase": 3.0,
	"book": 2.0, "notebook": 1.8, "laptop": 2.3,
	"keyboard": 1.5, "mouse": 1.3, "cell phone": 1.5, "remote": 1.2,
	"cup": 2.2, "bottle": 2.0, "thermos": 2.0,
	"sports ball": 1.8, "baseball bat": 2.0, "tennis racket": 2.0,
	"skateboard": 2.2, "umbrella": 1.8,
	"teddy bear": 1.5, "pillow": 1.3, "blanket": 1.8,
	"chair": 1.0, "bed": 0.8, "couch": 0.8,
}

// locationMultipliers scales item weight by where the item sits. Read-only.
var locationMultipliers = map[tidy.Zone]float64{
	tidy.ZoneFloor:        2.5,
	tidy.ZoneBedSurface:   2.0,
	tidy.ZoneChairSurface: 1.8,
	tidy.ZoneDesk:         1.5,
	tidy.ZoneTable:        1.5,
	tidy.ZoneShelf:        0.8,
	tidy.ZoneFurniture:    1.0,
	tidy.ZoneNormal:       1.2,
}

// ObjectWeight returns the curated weight for a normalized label. ok is
// false for labels outside the table; callers apply their default.
func ObjectWeight(label string) (w float64, ok bool) {
	w, ok = objectWeights[label]
	return w, ok
}

// LocationMultiplier returns the curated multiplier for zone. ok is false
// for unassigned zones; callers apply their default.
func LocationMultiplier(zone tidy.Zone) (m float64, ok bool) {
	m, ok = locationMultipliers[zone]
	return m, ok
}

// category buckets labels for the per-item rules.
type category int

const (
	categoryOther category = iota
	categoryClothing
	categoryBag
	categoryBook
	categoryDrink
	categorySports
	categoryShoe
	categoryElectronics
	categoryChair
)

// categoryRules are checked in order; the first rule with a keyword
// contained in the label wins. "shoe" is clothing, so only sneakers reach
// the shoe rule.
var categoryRules = []struct {
	cat      category
	keywords []string
}{
	{categoryClothing, []string{"shirt", "pants", "jacket", "clothes", "tie", "shoe", "socks"}},
	{categoryBag, []string{"backpack", "handbag", "suitcase"}},
	{categoryBook, []string{"book"}},
	{categoryDrink, []string{"cup", "bottle", "thermos"}},
	{categorySports, []string{"sports ball", "baseball bat", "skateboard", "tennis racket"}},
	{categoryShoe, []string{"shoe", "sneaker"}},
	{categoryElectronics, []string{"laptop", "keyboard", "mouse"}},
	{categoryChair, []string{"chair"}},
}

func categorize(label string) category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(label, kw) {
				return rule.cat
			}
		}
	}
	return categoryOther
}

// zonePhrase renders a zone for use in a sentence.
func zonePhrase(z tidy.Zone) string {
	switch z {
	case tidy.ZoneBedSurface:
		return "bed"
	case tidy.ZoneChairSurface:
		return "chair"
	default:
		return strings.ReplaceAll(string(z), "_", " ")
	}
}
