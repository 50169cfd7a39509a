package scoring

import (
	"fmt"

	"github.com/banshee-data/tidy.report/internal/tidy"
)

const (
	msgSpotless     = "Perfectly tidy!"
	msgSpreadOut    = "Items are bunched together in one spot. Spread them out"
	msgChairClutter = "Clear the clutter around the chair"
	msgManyClothes  = "Lots of clothes are scattered around. Gather them up in one go"
	msgFloorFirst   = "Lots of items are on the floor. Clear it first"
	msgClearBed     = "Clear everything off the top of the bed"
	msgManyDrinks   = "Several cups and bottles are out. Take them to the sink"
)

func stackSuggestion(g tidy.StackGroup) string {
	if g.Kind == tidy.VerticalStack {
		return fmt.Sprintf("%d %s are stacked vertically and could topple. Lay them out side by side", g.Count(), g.Label)
	}
	return fmt.Sprintf("%d %s are piled on top of each other. Spread them out so they are easy to find", g.Count(), g.Label)
}

// overallFeedback picks the headline sentence. Dangerous stacks outrank
// general clutter, which outranks the score band.
func overallFeedback(score, clothes, floor, highStacks int) string {
	switch {
	case highStacks > 0:
		return fmt.Sprintf("Danger! %d groups are stacked high enough to topple. Tidy them right away", highStacks)
	case clothes >= 5 && floor >= 3:
		return "Clothes and other items are scattered everywhere. The whole room needs a tidy"
	case floor >= 4:
		return "The floor is covered in items. Start by clearing the floor"
	}

	switch {
	case score >= 90:
		return "Excellent! Keep it this way"
	case score >= 80:
		return "Very tidy! A little more attention and it will be perfect"
	case score >= 70:
		return "Fairly tidy. See the suggestions below"
	case score >= 60:
		return "This room needs some tidying. Take it one step at a time"
	case score >= 50:
		return "This room needs a good tidy. Start with the top priorities"
	default:
		return "The whole room urgently needs tidying!"
	}
}
