// Package provider defines the pluggable vehicle-detection interface:
// any computer-vision backend (a real model, a background-subtraction
// heuristic, or a deterministic mock for testing) implements Provider so
// the controller loop never depends on a specific detection technique.
package provider

// DetectedVehicle is a single detection within a frame. Coordinates are
// normalized to [0, 1] relative to the frame so providers with
// different input resolutions produce comparable output.
type DetectedVehicle struct {
	X           float64 // bounding-box center X, 0-1
	Y           float64 // bounding-box center Y, 0-1
	Width       float64
	Height      float64
	Confidence  float64
	VehicleType string // "car", "truck", "bus", "motorcycle", "unknown"
}

// DetectionResult is one detection pass over a single frame. Every
// provider returns exactly this shape regardless of the underlying
// model.
type DetectionResult struct {
	Vehicles            []DetectedVehicle
	FrameTimestampS     float64
	ProcessingTimeMS    float64
	ConfidenceThreshold float64
	ProviderName        string
}

// Count returns how many vehicles were detected.
func (r DetectionResult) Count() int {
	return len(r.Vehicles)
}

// Provider is the interface any vehicle-detection backend implements.
//
// Lifecycle: Initialize is called exactly once at startup, Detect is
// called repeatedly from the controller loop, and Shutdown is called on
// teardown. Implementations SHOULD support the config keys documented on
// config.VisionConfig.ToMap and MUST silently ignore keys they don't
// understand.
type Provider interface {
	Initialize(cfg map[string]any) error
	Detect(frame []byte, width, height int) (DetectionResult, error)
	Shutdown() error
	Name() string
}
