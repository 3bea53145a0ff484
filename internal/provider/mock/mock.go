// Package mock implements a deterministic-enough synthetic detection
// provider so the timing engine and controller loop can be developed
// and tested without a real camera or model: it generates Poisson-ish
// arrivals against a per-lane queue and renders them as plausible
// bounding boxes.
package mock

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/provider"
)

const maxQueue = 25

type queueKey struct {
	direction config.Direction
	lane      config.LaneKind
}

// Provider is the mock vehicle-detection backend.
type Provider struct {
	baseRate    float64
	peakMult    float64
	leftFrac    float64
	enableSurge bool
	rng         *rand.Rand
	startedAt   time.Time
	initialized bool

	queues map[queueKey]int
}

// New builds an uninitialized mock provider; call Initialize before use.
func New() *Provider {
	return &Provider{}
}

// Name identifies this provider.
func (p *Provider) Name() string {
	return "mock"
}

// Initialize reads the provider's own config keys (base_arrival_rate,
// peak_multiplier, left_turn_fraction, enable_surge, random_seed) and
// silently ignores anything else in the map, per the Provider config
// contract.
func (p *Provider) Initialize(cfg map[string]any) error {
	p.baseRate = floatOr(cfg, "base_arrival_rate", 0.3)
	p.peakMult = floatOr(cfg, "peak_multiplier", 2.5)
	p.leftFrac = floatOr(cfg, "left_turn_fraction", 0.15)
	p.enableSurge = boolOr(cfg, "enable_surge", true)

	seed := int64(0)
	if s, ok := cfg["random_seed"]; ok {
		if si, ok := toInt64(s); ok {
			seed = si
		}
	} else {
		seed = time.Now().UnixNano()
	}
	p.rng = rand.New(rand.NewSource(seed))
	p.startedAt = time.Now()

	p.queues = make(map[queueKey]int, 8)
	for _, d := range config.Directions() {
		p.queues[queueKey{d, config.Through}] = 0
		p.queues[queueKey{d, config.LeftTurn}] = 0
	}

	p.initialized = true
	return nil
}

// Detect ignores the frame entirely and generates synthetic detections
// from a time-varying Poisson arrival model with an optional random
// surge on one approach.
func (p *Provider) Detect(frame []byte, width, height int) (provider.DetectionResult, error) {
	if !p.initialized {
		return provider.DetectionResult{}, fmt.Errorf("mock provider: not initialized")
	}
	t0 := time.Now()
	elapsed := t0.Sub(p.startedAt).Seconds()

	cyclePosition := math.Mod(elapsed, 120.0) / 120.0
	timeMult := 1.0 + (p.peakMult-1.0)*math.Max(0, math.Sin(cyclePosition*math.Pi))

	var surgeDir config.Direction
	hasSurge := false
	if p.enableSurge && p.rng.Float64() < 0.02 {
		dirs := config.Directions()
		surgeDir = dirs[p.rng.Intn(len(dirs))]
		hasSurge = true
	}

	var vehicles []provider.DetectedVehicle

	for _, d := range config.Directions() {
		rate := p.baseRate * timeMult
		if hasSurge && surgeDir == d {
			rate *= 3.0
		}

		throughArrival := boolAt(p.rng, rate)
		throughDeparture := boolAt(p.rng, 0.4)
		keyThrough := queueKey{d, config.Through}
		p.queues[keyThrough] = clampQueue(p.queues[keyThrough] + toInt(throughArrival) - toInt(throughDeparture))

		leftArrival := boolAt(p.rng, rate*p.leftFrac)
		leftDeparture := boolAt(p.rng, 0.3)
		keyLeft := queueKey{d, config.LeftTurn}
		p.queues[keyLeft] = clampQueue(p.queues[keyLeft] + toInt(leftArrival) - toInt(leftDeparture))

		for i := 0; i < p.queues[keyThrough]; i++ {
			vehicles = append(vehicles, makeVehicle(d, config.Through, i))
		}
		for i := 0; i < p.queues[keyLeft]; i++ {
			vehicles = append(vehicles, makeVehicle(d, config.LeftTurn, i))
		}
	}

	return provider.DetectionResult{
		Vehicles:            vehicles,
		FrameTimestampS:     t0.Sub(p.startedAt).Seconds(),
		ProcessingTimeMS:    time.Since(t0).Seconds() * 1000.0,
		ConfidenceThreshold: 0.95,
		ProviderName:        p.Name(),
	}, nil
}

// Shutdown releases the provider's state.
func (p *Provider) Shutdown() error {
	p.initialized = false
	return nil
}

// LaneQueue is one (direction, lane) queue count, exported for callers
// outside this package.
type LaneQueue struct {
	Direction config.Direction
	Lane      config.LaneKind
	Count     int
}

// QueueCounts exposes the synthetic queue state directly, bypassing ROI
// logic — useful for tests and for wiring a mock run without a real
// frame/camera pipeline at all.
func (p *Provider) QueueCounts() []LaneQueue {
	out := make([]LaneQueue, 0, len(p.queues))
	for k, v := range p.queues {
		out = append(out, LaneQueue{Direction: k.direction, Lane: k.lane, Count: v})
	}
	return out
}

// SetQueue manually overrides a queue count, for exercising specific
// scenarios in tests.
func (p *Provider) SetQueue(d config.Direction, lane config.LaneKind, count int) {
	if count < 0 {
		count = 0
	}
	if p.queues == nil {
		p.queues = make(map[queueKey]int, 8)
	}
	p.queues[queueKey{d, lane}] = count
}

func makeVehicle(direction config.Direction, lane config.LaneKind, index int) provider.DetectedVehicle {
	base := map[config.Direction][2]float64{
		config.North: {0.45, 0.1},
		config.South: {0.55, 0.9},
		config.East:  {0.9, 0.45},
		config.West:  {0.1, 0.55},
	}[direction]
	bx, by := base[0], base[1]

	if lane == config.LeftTurn {
		if direction == config.North || direction == config.South {
			bx -= 0.05
		} else {
			by -= 0.05
		}
	}

	const spacing = 0.03
	switch direction {
	case config.North:
		by -= float64(index) * spacing
	case config.South:
		by += float64(index) * spacing
	case config.East:
		bx += float64(index) * spacing
	case config.West:
		bx -= float64(index) * spacing
	}

	bx = clamp01(bx)
	by = clamp01(by)

	return provider.DetectedVehicle{
		X: bx, Y: by,
		Width: 0.04, Height: 0.08,
		Confidence:  0.95,
		VehicleType: "car",
	}
}

func clamp01(v float64) float64 {
	if v < 0.02 {
		return 0.02
	}
	if v > 0.98 {
		return 0.98
	}
	return v
}

func clampQueue(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxQueue {
		return maxQueue
	}
	return v
}

func boolAt(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

func toInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func floatOr(cfg map[string]any, key string, def float64) float64 {
	if v, ok := cfg[key]; ok {
		if f, ok := toFloat64(v); ok {
			return f
		}
	}
	return def
}

func boolOr(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
