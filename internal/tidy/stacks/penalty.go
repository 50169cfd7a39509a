package stacks

import (
	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/tidy"
)

// PenaltyConfig holds the score deductions applied per stack group.
type PenaltyConfig struct {
	HighCount      int // Members at which the high penalty applies
	MinCount       int // Members at which the medium penalty applies
	VerticalHigh   float64
	VerticalMedium float64
	PileHigh       float64
	PileMedium     float64
}

// DefaultPenaltyConfig returns the built-in stacking penalties.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfigFromTuning(config.EmptyTuningConfig())
}

// PenaltyConfigFromTuning builds a PenaltyConfig from a loaded TuningConfig.
func PenaltyConfigFromTuning(cfg *config.TuningConfig) PenaltyConfig {
	return PenaltyConfig{
		HighCount:      cfg.GetHighSeverityCount(),
		MinCount:       cfg.GetMinStackCount(),
		VerticalHigh:   cfg.GetVerticalStackPenaltyHigh(),
		VerticalMedium: cfg.GetVerticalStackPenaltyMedium(),
		PileHigh:       cfg.GetPilePenaltyHigh(),
		PileMedium:     cfg.GetPilePenaltyMedium(),
	}
}

// StackingPenalty sums the deduction for every group. Vertical stacks cost
// more than piles of the same size.
func StackingPenalty(groups []tidy.StackGroup, cfg PenaltyConfig) float64 {
	var penalty float64
	for _, g := range groups {
		n := g.Count()
		high, medium := cfg.PileHigh, cfg.PileMedium
		if g.Kind == tidy.VerticalStack {
			high, medium = cfg.VerticalHigh, cfg.VerticalMedium
		}
		switch {
		case n >= cfg.HighCount:
			penalty += high
		case n >= cfg.MinCount:
			penalty += medium
		}
	}
	return penalty
}
