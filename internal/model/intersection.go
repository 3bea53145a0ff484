package model

import (
	"fmt"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

// Approach is one of the four cardinal approaches: a through lane, a
// left-turn lane, and the pedestrian crossing that runs concurrent with
// the through phase.
type Approach struct {
	Direction            config.Direction
	ThroughLane          *Lane
	LeftTurnLane         *Lane
	CrosswalkDistanceFt  float64
}

// TotalQueue is the sum of both lanes' queue counts.
func (a *Approach) TotalQueue() int {
	return a.ThroughLane.QueueCount + a.LeftTurnLane.QueueCount
}

// Intersection is the complete four-approach live state that the
// controller, timing engine, and observers all read from.
type Intersection struct {
	Name       string
	Approaches map[config.Direction]*Approach
}

// NewStandardIntersection builds a four-way intersection with one through
// lane and one left-turn lane per approach, using the given saturation
// flow defaults and crosswalk distance.
func NewStandardIntersection(name string, flow config.FlowDefaults, crosswalkFt float64) *Intersection {
	approaches := make(map[config.Direction]*Approach, 4)
	for _, d := range config.Directions() {
		approaches[d] = &Approach{
			Direction:           d,
			ThroughLane:         NewLane(d, config.Through, flow.ThroughLaneSatFlow),
			LeftTurnLane:        NewLane(d, config.LeftTurn, flow.LeftTurnLaneSatFlow),
			CrosswalkDistanceFt: crosswalkFt,
		}
	}
	return &Intersection{Name: name, Approaches: approaches}
}

// Approach returns the approach for a direction, or an error if no
// approach is registered for that direction.
func (i *Intersection) Approach(d config.Direction) (*Approach, error) {
	a, ok := i.Approaches[d]
	if !ok {
		return nil, fmt.Errorf("no approach registered for direction %q", d)
	}
	return a, nil
}

// Validate enforces the invariant that an intersection carries exactly
// four approaches, one per direction.
func (i *Intersection) Validate() error {
	if len(i.Approaches) != 4 {
		return fmt.Errorf("intersection must have exactly 4 approaches, got %d", len(i.Approaches))
	}
	for _, d := range config.Directions() {
		if _, ok := i.Approaches[d]; !ok {
			return fmt.Errorf("intersection missing approach for direction %q", d)
		}
	}
	return nil
}

// AllLanes returns all eight lanes (through + left-turn per approach) in
// a deterministic direction order.
func (i *Intersection) AllLanes() []*Lane {
	lanes := make([]*Lane, 0, 8)
	for _, d := range config.Directions() {
		a := i.Approaches[d]
		lanes = append(lanes, a.ThroughLane, a.LeftTurnLane)
	}
	return lanes
}

// TotalQueue sums queue counts across every approach.
func (i *Intersection) TotalQueue() int {
	total := 0
	for _, a := range i.Approaches {
		total += a.TotalQueue()
	}
	return total
}

// QueueSnapshot is a simple per-approach queue count, used for status
// snapshots and logging.
type QueueSnapshot struct {
	Through  int `json:"through"`
	LeftTurn int `json:"left_turn"`
}

// Snapshot returns the per-direction queue counts for observers.
func (i *Intersection) Snapshot() map[config.Direction]QueueSnapshot {
	out := make(map[config.Direction]QueueSnapshot, len(i.Approaches))
	for d, a := range i.Approaches {
		out[d] = QueueSnapshot{Through: a.ThroughLane.QueueCount, LeftTurn: a.LeftTurnLane.QueueCount}
	}
	return out
}
