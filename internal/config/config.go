// Package config holds the immutable configuration types for a single
// intersection deployment: timing constraints, saturation-flow defaults,
// detection-provider configuration, and lane geometry.
package config

import "fmt"

// Direction is one of the four cardinal approaches to the intersection.
type Direction string

const (
	North Direction = "N"
	South Direction = "S"
	East  Direction = "E"
	West  Direction = "W"
)

// Directions lists all four directions in a stable order.
func Directions() []Direction {
	return []Direction{North, South, East, West}
}

// Validate reports whether d is one of the four recognized directions.
func (d Direction) Validate() error {
	switch d {
	case North, South, East, West:
		return nil
	default:
		return fmt.Errorf("unsupported direction: %q", d)
	}
}

// LaneKind distinguishes a through lane from a left-turn lane.
type LaneKind string

const (
	Through  LaneKind = "through"
	LeftTurn LaneKind = "left_turn"
)

// Validate reports whether k is a recognized lane kind.
func (k LaneKind) Validate() error {
	switch k {
	case Through, LeftTurn:
		return nil
	default:
		return fmt.Errorf("unsupported lane kind: %q", k)
	}
}

// TimingConstraints are the hard, safety-critical limits the adaptive
// algorithm must never violate. Values are in seconds unless noted.
type TimingConstraints struct {
	MinGreenS      float64 // minimum green for a through vehicle phase
	MaxGreenS      float64 // maximum green for any through phase
	YellowS        float64 // fixed yellow clearance interval
	AllRedS        float64 // fixed all-red clearance interval
	StartupLostS   float64 // reaction time for the first car at green

	MinProtectedLeftGreenS float64
	MaxProtectedLeftGreenS float64
	LeftTurnQueueThreshold int // queue needed to trigger a protected left

	MinWalkS               float64
	PedClearanceSpeedFtPerS float64
	DefaultCrosswalkFt     float64

	MinCycleS     float64
	MaxCycleS     float64
	DefaultCycleS float64
}

// DefaultTimingConstraints returns the ITE/MUTCD-derived defaults used
// throughout this repository's tests and the standard CLI deployment.
func DefaultTimingConstraints() TimingConstraints {
	return TimingConstraints{
		MinGreenS:    7.0,
		MaxGreenS:    60.0,
		YellowS:      4.0,
		AllRedS:      2.5,
		StartupLostS: 2.0,

		MinProtectedLeftGreenS: 8.0,
		MaxProtectedLeftGreenS: 25.0,
		LeftTurnQueueThreshold: 3,

		MinWalkS:                7.0,
		PedClearanceSpeedFtPerS: 3.5,
		DefaultCrosswalkFt:      48.0,

		MinCycleS:     45.0,
		MaxCycleS:     150.0,
		DefaultCycleS: 90.0,
	}
}

// PedClearanceS derives the flashing DON'T-WALK duration from the default
// crosswalk distance and walking speed.
func (c TimingConstraints) PedClearanceS() float64 {
	return c.DefaultCrosswalkFt / c.PedClearanceSpeedFtPerS
}

// Validate enforces that the green, protected-left and cycle bounds are
// positive and ordered min <= max, that the yellow/all-red clearances and
// pedestrian speed and crosswalk distance are positive, and that the
// left-turn queue threshold is non-negative. MinWalkS, StartupLostS and
// DefaultCycleS are not checked.
func (c TimingConstraints) Validate() error {
	pairs := []struct {
		name     string
		min, max float64
	}{
		{"green", c.MinGreenS, c.MaxGreenS},
		{"protected_left_green", c.MinProtectedLeftGreenS, c.MaxProtectedLeftGreenS},
		{"cycle", c.MinCycleS, c.MaxCycleS},
	}
	for _, p := range pairs {
		if p.min <= 0 || p.max <= 0 {
			return fmt.Errorf("%s bounds must be positive, got min=%.2f max=%.2f", p.name, p.min, p.max)
		}
		if p.min > p.max {
			return fmt.Errorf("%s min (%.2f) exceeds max (%.2f)", p.name, p.min, p.max)
		}
	}
	if c.YellowS <= 0 || c.AllRedS <= 0 {
		return fmt.Errorf("yellow and all-red clearances must be positive")
	}
	if c.LeftTurnQueueThreshold < 0 {
		return fmt.Errorf("left_turn_queue_threshold must be >=0")
	}
	if c.PedClearanceSpeedFtPerS <= 0 || c.DefaultCrosswalkFt <= 0 {
		return fmt.Errorf("pedestrian clearance speed and crosswalk distance must be positive")
	}
	return nil
}

// FlowDefaults are the saturation-flow constants (veh/hr/lane) applied to
// every lane of a standard intersection.
type FlowDefaults struct {
	ThroughLaneSatFlow  float64
	LeftTurnLaneSatFlow float64
}

// DefaultFlowDefaults returns the typical US-intersection saturation flows.
func DefaultFlowDefaults() FlowDefaults {
	return FlowDefaults{
		ThroughLaneSatFlow:  1800.0,
		LeftTurnLaneSatFlow: 1600.0,
	}
}

// VisionConfig configures the detection provider.
type VisionConfig struct {
	ProviderType        string  `yaml:"provider_type"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Device              string  `yaml:"device"`
	InputResolution     int     `yaml:"input_resolution"`
	TargetFPS           float64 `yaml:"target_fps"`
	ModelPath           string  `yaml:"model_path"`
	// Async runs Detect on a background worker, buffering the latest
	// result for the tick thread instead of blocking in-tick.
	Async bool `yaml:"async"`
}

// DefaultVisionConfig returns the mock-provider defaults.
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		ProviderType:        "mock",
		ConfidenceThreshold: 0.5,
		Device:              "cpu",
		InputResolution:     640,
		TargetFPS:           3.0,
		ModelPath:           "yolov8n.pt",
	}
}

// ToMap converts the fields a detection provider is required to recognize
// into a type-erased configuration map, per the provider contract: unknown
// keys MUST be silently ignored by implementations.
func (v VisionConfig) ToMap() map[string]any {
	return map[string]any{
		"confidence_threshold": v.ConfidenceThreshold,
		"device":               v.Device,
		"input_resolution":     v.InputResolution,
		"model_path":           v.ModelPath,
	}
}

// LaneROI is a normalized-polygon region of interest used to assign
// detections in a camera frame to a specific lane.
type LaneROI struct {
	Direction Direction      `yaml:"direction"`
	LaneKind  LaneKind       `yaml:"lane_kind"`
	Polygon   [][2]float64   `yaml:"polygon"`
}

// IntersectionConfig is the top-level, YAML-loadable configuration for a
// single 4-way intersection deployment.
type IntersectionConfig struct {
	Name             string             `yaml:"name"`
	Timing           TimingConstraints  `yaml:"timing"`
	Flow             FlowDefaults       `yaml:"flow"`
	Vision           VisionConfig       `yaml:"vision"`
	LaneROIs         []LaneROI          `yaml:"lane_rois"`
	ApproachSpeedMPH float64            `yaml:"approach_speed_mph"`
	ControllerHz     float64            `yaml:"controller_hz"`
	DashboardEnabled bool               `yaml:"dashboard_enabled"`
}

// DefaultIntersectionConfig returns the standard single-intersection
// deployment used by the CLI and most tests.
func DefaultIntersectionConfig() IntersectionConfig {
	return IntersectionConfig{
		Name:             "Main & 1st",
		Timing:           DefaultTimingConstraints(),
		Flow:             DefaultFlowDefaults(),
		Vision:           DefaultVisionConfig(),
		ApproachSpeedMPH: 35.0,
		ControllerHz:     10.0,
		DashboardEnabled: true,
	}
}

// TickInterval returns the controller's fixed tick period.
func (c IntersectionConfig) TickInterval() float64 {
	if c.ControllerHz <= 0 {
		return 0.1
	}
	return 1.0 / c.ControllerHz
}

// Validate enforces that the aggregate configuration is internally
// consistent before it reaches setup.
func (c IntersectionConfig) Validate() error {
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	if c.Flow.ThroughLaneSatFlow <= 0 || c.Flow.LeftTurnLaneSatFlow <= 0 {
		return fmt.Errorf("flow: saturation flows must be positive")
	}
	if c.ControllerHz <= 0 {
		return fmt.Errorf("controller_hz must be positive")
	}
	for i, roi := range c.LaneROIs {
		if err := roi.Direction.Validate(); err != nil {
			return fmt.Errorf("lane_rois[%d]: %w", i, err)
		}
		if err := roi.LaneKind.Validate(); err != nil {
			return fmt.Errorf("lane_rois[%d]: %w", i, err)
		}
	}
	return nil
}
