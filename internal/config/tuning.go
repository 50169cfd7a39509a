package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analysis tuning
// parameters. Every field is optional: a nil field falls back to the default
// returned by its Get* accessor, so partial JSON files are safe.
type TuningConfig struct {
	// Zone classification (fallback heuristics)
	FloorBottomRatio *float64 `json:"floor_bottom_ratio,omitempty"`
	BedAboveGapPx    *float64 `json:"bed_above_gap_px,omitempty"`
	ChairAboveGapPx  *float64 `json:"chair_above_gap_px,omitempty"`
	TableAboveGapPx  *float64 `json:"table_above_gap_px,omitempty"`

	// Segmentation masks
	MaxMaskPixels *int `json:"max_mask_pixels,omitempty"` // width × height cap for caller-supplied masks

	// Stack grouping
	MinStackCount        *int     `json:"min_stack_count,omitempty"`
	VerticalGapMaxPx     *float64 `json:"vertical_gap_max_px,omitempty"`
	HorizontalAlignRatio *float64 `json:"horizontal_align_ratio,omitempty"`
	SizeSimilarityRatio  *float64 `json:"size_similarity_ratio,omitempty"`
	PileOverlapThreshold *float64 `json:"pile_overlap_threshold,omitempty"`
	HighSeverityCount    *int     `json:"high_severity_count,omitempty"`

	// Object tracking
	TrackIoUThreshold     *float64 `json:"track_iou_threshold,omitempty"`
	TrackInactivityWindow *string  `json:"track_inactivity_window,omitempty"` // duration string like "168h"
	PersistTimeout        *string  `json:"persist_timeout,omitempty"`         // duration string like "2s"
	ProblemMinAppearances *int     `json:"problem_min_appearances,omitempty"`

	// Scoring
	MaxSuggestions             *int     `json:"max_suggestions,omitempty"`
	DefaultObjectWeight        *float64 `json:"default_object_weight,omitempty"`
	DefaultLocationMultiplier  *float64 `json:"default_location_multiplier,omitempty"`
	ItemPenaltyScale           *float64 `json:"item_penalty_scale,omitempty"`
	VerticalStackPenaltyHigh   *float64 `json:"vertical_stack_penalty_high,omitempty"`
	VerticalStackPenaltyMedium *float64 `json:"vertical_stack_penalty_medium,omitempty"`
	PilePenaltyHigh            *float64 `json:"pile_penalty_high,omitempty"`
	PilePenaltyMedium          *float64 `json:"pile_penalty_medium,omitempty"`
	ClusterTightPx             *float64 `json:"cluster_tight_px,omitempty"`
	ClusterLoosePx             *float64 `json:"cluster_loose_px,omitempty"`
	ClusterTightPenalty        *float64 `json:"cluster_tight_penalty,omitempty"`
	ClusterLoosePenalty        *float64 `json:"cluster_loose_penalty,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		FloorBottomRatio:           ptrFloat64(e.GetFloorBottomRatio()),
		BedAboveGapPx:              ptrFloat64(e.GetBedAboveGapPx()),
		ChairAboveGapPx:            ptrFloat64(e.GetChairAboveGapPx()),
		TableAboveGapPx:            ptrFloat64(e.GetTableAboveGapPx()),
		MaxMaskPixels:              ptrInt(e.GetMaxMaskPixels()),
		MinStackCount:              ptrInt(e.GetMinStackCount()),
		VerticalGapMaxPx:           ptrFloat64(e.GetVerticalGapMaxPx()),
		HorizontalAlignRatio:       ptrFloat64(e.GetHorizontalAlignRatio()),
		SizeSimilarityRatio:        ptrFloat64(e.GetSizeSimilarityRatio()),
		PileOverlapThreshold:       ptrFloat64(e.GetPileOverlapThreshold()),
		HighSeverityCount:          ptrInt(e.GetHighSeverityCount()),
		TrackIoUThreshold:          ptrFloat64(e.GetTrackIoUThreshold()),
		TrackInactivityWindow:      ptrString("168h"),
		PersistTimeout:             ptrString("2s"),
		ProblemMinAppearances:      ptrInt(e.GetProblemMinAppearances()),
		MaxSuggestions:             ptrInt(e.GetMaxSuggestions()),
		DefaultObjectWeight:        ptrFloat64(e.GetDefaultObjectWeight()),
		DefaultLocationMultiplier:  ptrFloat64(e.GetDefaultLocationMultiplier()),
		ItemPenaltyScale:           ptrFloat64(e.GetItemPenaltyScale()),
		VerticalStackPenaltyHigh:   ptrFloat64(e.GetVerticalStackPenaltyHigh()),
		VerticalStackPenaltyMedium: ptrFloat64(e.GetVerticalStackPenaltyMedium()),
		PilePenaltyHigh:            ptrFloat64(e.GetPilePenaltyHigh()),
		PilePenaltyMedium:          ptrFloat64(e.GetPilePenaltyMedium()),
		ClusterTightPx:             ptrFloat64(e.GetClusterTightPx()),
		ClusterLoosePx:             ptrFloat64(e.GetClusterLoosePx()),
		ClusterTightPenalty:        ptrFloat64(e.GetClusterTightPenalty()),
		ClusterLoosePenalty:        ptrFloat64(e.GetClusterLoosePenalty()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/tidy/zones/
		"../../../../" + DefaultConfigPath,    // from internal/tidy/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	ratios := []struct {
		name string
		v    *float64
	}{
		{"floor_bottom_ratio", c.FloorBottomRatio},
		{"horizontal_align_ratio", c.HorizontalAlignRatio},
		{"size_similarity_ratio", c.SizeSimilarityRatio},
		{"pile_overlap_threshold", c.PileOverlapThreshold},
		{"track_iou_threshold", c.TrackIoUThreshold},
	}
	for _, r := range ratios {
		if r.v != nil && (*r.v < 0 || *r.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", r.name, *r.v)
		}
	}

	if c.MaxMaskPixels != nil && *c.MaxMaskPixels < 1 {
		return fmt.Errorf("max_mask_pixels must be positive, got %d", *c.MaxMaskPixels)
	}
	if c.MinStackCount != nil && *c.MinStackCount < 2 {
		return fmt.Errorf("min_stack_count must be at least 2, got %d", *c.MinStackCount)
	}
	if c.HighSeverityCount != nil && *c.HighSeverityCount < 1 {
		return fmt.Errorf("high_severity_count must be positive, got %d", *c.HighSeverityCount)
	}
	if c.ProblemMinAppearances != nil && *c.ProblemMinAppearances < 1 {
		return fmt.Errorf("problem_min_appearances must be positive, got %d", *c.ProblemMinAppearances)
	}
	if c.MaxSuggestions != nil && *c.MaxSuggestions < 1 {
		return fmt.Errorf("max_suggestions must be positive, got %d", *c.MaxSuggestions)
	}
	if c.ClusterTightPx != nil && c.ClusterLoosePx != nil && *c.ClusterTightPx > *c.ClusterLoosePx {
		return fmt.Errorf("cluster_tight_px (%f) must not exceed cluster_loose_px (%f)", *c.ClusterTightPx, *c.ClusterLoosePx)
	}

	if c.TrackInactivityWindow != nil && *c.TrackInactivityWindow != "" {
		d, err := time.ParseDuration(*c.TrackInactivityWindow)
		if err != nil {
			return fmt.Errorf("invalid track_inactivity_window '%s': %w", *c.TrackInactivityWindow, err)
		}
		if d <= 0 {
			return fmt.Errorf("track_inactivity_window must be positive, got %s", d)
		}
	}
	if c.PersistTimeout != nil && *c.PersistTimeout != "" {
		if _, err := time.ParseDuration(*c.PersistTimeout); err != nil {
			return fmt.Errorf("invalid persist_timeout '%s': %w", *c.PersistTimeout, err)
		}
	}

	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetFloorBottomRatio returns the fraction of the lowest bottom edge beyond
// which an object is treated as lying on the floor.
func (c *TuningConfig) GetFloorBottomRatio() float64 { return getFloat(c.FloorBottomRatio, 0.75) }

// GetBedAboveGapPx returns the vertical centre gap for "above a bed".
func (c *TuningConfig) GetBedAboveGapPx() float64 { return getFloat(c.BedAboveGapPx, 30) }

// GetChairAboveGapPx returns the vertical centre gap for "above a chair".
func (c *TuningConfig) GetChairAboveGapPx() float64 { return getFloat(c.ChairAboveGapPx, 30) }

// GetTableAboveGapPx returns the vertical centre gap for "above a desk or table".
func (c *TuningConfig) GetTableAboveGapPx() float64 { return getFloat(c.TableAboveGapPx, 40) }

// GetMaxMaskPixels returns the largest segmentation image, in pixels, that is
// turned into zone masks. 4096×4096 by default.
func (c *TuningConfig) GetMaxMaskPixels() int { return getInt(c.MaxMaskPixels, 4096*4096) }

// GetMinStackCount returns the minimum group size for stacks and piles.
func (c *TuningConfig) GetMinStackCount() int { return getInt(c.MinStackCount, 3) }

// GetVerticalGapMaxPx returns the maximum edge-to-edge gap within a vertical stack.
func (c *TuningConfig) GetVerticalGapMaxPx() float64 { return getFloat(c.VerticalGapMaxPx, 50) }

// GetHorizontalAlignRatio returns the allowed centre offset as a fraction of the wider box.
func (c *TuningConfig) GetHorizontalAlignRatio() float64 {
	return getFloat(c.HorizontalAlignRatio, 0.3)
}

// GetSizeSimilarityRatio returns the allowed width difference as a fraction of the wider box.
func (c *TuningConfig) GetSizeSimilarityRatio() float64 {
	return getFloat(c.SizeSimilarityRatio, 0.5)
}

// GetPileOverlapThreshold returns the overlap ratio above which two boxes are piled.
func (c *TuningConfig) GetPileOverlapThreshold() float64 {
	return getFloat(c.PileOverlapThreshold, 0.2)
}

// GetHighSeverityCount returns the member count at which a group becomes high severity.
func (c *TuningConfig) GetHighSeverityCount() int { return getInt(c.HighSeverityCount, 5) }

// GetTrackIoUThreshold returns the IoU a detection must exceed to extend a track.
func (c *TuningConfig) GetTrackIoUThreshold() float64 { return getFloat(c.TrackIoUThreshold, 0.3) }

// GetTrackInactivityWindow returns how long an unseen track survives.
func (c *TuningConfig) GetTrackInactivityWindow() time.Duration {
	return getDuration(c.TrackInactivityWindow, 7*24*time.Hour)
}

// GetPersistTimeout returns the bound on a single tracker persistence call.
func (c *TuningConfig) GetPersistTimeout() time.Duration {
	return getDuration(c.PersistTimeout, 2*time.Second)
}

// GetProblemMinAppearances returns the threshold used when reporting chronic problems.
func (c *TuningConfig) GetProblemMinAppearances() int { return getInt(c.ProblemMinAppearances, 2) }

// GetMaxSuggestions returns the cap on report suggestions.
func (c *TuningConfig) GetMaxSuggestions() int { return getInt(c.MaxSuggestions, 10) }

// GetDefaultObjectWeight returns the weight used for labels missing from the table.
func (c *TuningConfig) GetDefaultObjectWeight() float64 {
	return getFloat(c.DefaultObjectWeight, 1.5)
}

// GetDefaultLocationMultiplier returns the multiplier used for zones missing from the table.
func (c *TuningConfig) GetDefaultLocationMultiplier() float64 {
	return getFloat(c.DefaultLocationMultiplier, 1.2)
}

// GetItemPenaltyScale returns the factor applied to weight × multiplier per item.
func (c *TuningConfig) GetItemPenaltyScale() float64 { return getFloat(c.ItemPenaltyScale, 3) }

func (c *TuningConfig) GetVerticalStackPenaltyHigh() float64 {
	return getFloat(c.VerticalStackPenaltyHigh, 15)
}

func (c *TuningConfig) GetVerticalStackPenaltyMedium() float64 {
	return getFloat(c.VerticalStackPenaltyMedium, 10)
}

func (c *TuningConfig) GetPilePenaltyHigh() float64 { return getFloat(c.PilePenaltyHigh, 10) }

func (c *TuningConfig) GetPilePenaltyMedium() float64 { return getFloat(c.PilePenaltyMedium, 6) }

// GetClusterTightPx returns the mean pairwise centre distance below which
// objects are tightly clustered.
func (c *TuningConfig) GetClusterTightPx() float64 { return getFloat(c.ClusterTightPx, 80) }

// GetClusterLoosePx returns the mean pairwise centre distance below which
// objects are loosely clustered.
func (c *TuningConfig) GetClusterLoosePx() float64 { return getFloat(c.ClusterLoosePx, 150) }

func (c *TuningConfig) GetClusterTightPenalty() float64 {
	return getFloat(c.ClusterTightPenalty, 12)
}

func (c *TuningConfig) GetClusterLoosePenalty() float64 {
	return getFloat(c.ClusterLoosePenalty, 6)
}
