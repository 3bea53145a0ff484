// Package signal implements the NEMA-style phase ring and the per-tick
// signal state machine: the safety-critical core that advances
// green -> yellow -> all-red -> next-phase under hard timing invariants.
package signal

import (
	"fmt"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

// PhaseKind distinguishes a through phase from a left-turn phase.
type PhaseKind string

const (
	PhaseThrough  PhaseKind = "through"
	PhaseLeftTurn PhaseKind = "left_turn"
)

// Phase is one contiguous interval during which a fixed, non-conflicting
// set of movements may be served.
type Phase struct {
	ID               int
	Kind             PhaseKind
	ServedDirections []config.Direction

	GreenS   float64
	YellowS  float64
	AllRedS  float64

	WalkS          float64
	PedClearanceS  float64

	// UseProtectedLeft is decided per-cycle by the adaptive engine; it
	// only matters for left-turn phases.
	UseProtectedLeft bool
}

// TotalPhaseTime is green + yellow + all-red.
func (p *Phase) TotalPhaseTime() float64 {
	return p.GreenS + p.YellowS + p.AllRedS
}

// IsLeftTurn reports whether this is a left-turn phase.
func (p *Phase) IsLeftTurn() bool {
	return p.Kind == PhaseLeftTurn
}

// ValidateServedDirections enforces that a phase serves exactly one
// non-conflicting pair: {North, South} or {East, West}.
func (p *Phase) ValidateServedDirections() error {
	set := make(map[config.Direction]bool, len(p.ServedDirections))
	for _, d := range p.ServedDirections {
		set[d] = true
	}
	ns := set[config.North] && set[config.South] && len(set) == 2
	ew := set[config.East] && set[config.West] && len(set) == 2
	if !ns && !ew {
		return fmt.Errorf("phase %d served_directions must be exactly {N,S} or {E,W}, got %v", p.ID, p.ServedDirections)
	}
	return nil
}

// Ring is the ordered, cyclic sequence of phases that make up one signal
// cycle.
type Ring struct {
	Phases []*Phase
}

// NewStandardFourWayRing builds the canonical four-phase ring:
// (1) N/S left, (2) N/S through, (3) E/W left, (4) E/W through.
func NewStandardFourWayRing(timing config.TimingConstraints) *Ring {
	pedClearance := timing.PedClearanceS()

	return &Ring{Phases: []*Phase{
		{
			ID:               1,
			Kind:             PhaseLeftTurn,
			ServedDirections: []config.Direction{config.North, config.South},
			GreenS:           timing.MinProtectedLeftGreenS,
			YellowS:          timing.YellowS,
			AllRedS:          timing.AllRedS,
		},
		{
			ID:               2,
			Kind:             PhaseThrough,
			ServedDirections: []config.Direction{config.North, config.South},
			GreenS:           timing.MinGreenS,
			YellowS:          timing.YellowS,
			AllRedS:          timing.AllRedS,
			WalkS:            timing.MinWalkS,
			PedClearanceS:    pedClearance,
		},
		{
			ID:               3,
			Kind:             PhaseLeftTurn,
			ServedDirections: []config.Direction{config.East, config.West},
			GreenS:           timing.MinProtectedLeftGreenS,
			YellowS:          timing.YellowS,
			AllRedS:          timing.AllRedS,
		},
		{
			ID:               4,
			Kind:             PhaseThrough,
			ServedDirections: []config.Direction{config.East, config.West},
			GreenS:           timing.MinGreenS,
			YellowS:          timing.YellowS,
			AllRedS:          timing.AllRedS,
			WalkS:            timing.MinWalkS,
			PedClearanceS:    pedClearance,
		},
	}}
}

// TotalCycleTime sums TotalPhaseTime across all phases.
func (r *Ring) TotalCycleTime() float64 {
	total := 0.0
	for _, p := range r.Phases {
		total += p.TotalPhaseTime()
	}
	return total
}

// NextPhaseIndex returns (current+1) mod len(Phases); the ring is cyclic
// and modeled as an index into a slice, never as pointer links.
func (r *Ring) NextPhaseIndex(current int) int {
	return (current + 1) % len(r.Phases)
}

// Validate enforces that the ring is non-empty, every phase serves a
// non-conflicting direction pair, and adjacent phases (cyclically) never
// share a non-clearance movement: two neighbouring phases may not serve
// the same axis with the same phase kind. A left-turn phase followed by
// a through phase on the same axis (as in the standard build) is allowed.
func (r *Ring) Validate() error {
	if len(r.Phases) == 0 {
		return fmt.Errorf("phase ring must not be empty")
	}
	for _, p := range r.Phases {
		if err := p.ValidateServedDirections(); err != nil {
			return err
		}
	}
	n := len(r.Phases)
	for i, p := range r.Phases {
		next := r.Phases[(i+1)%n]
		if sameAxis(p.ServedDirections, next.ServedDirections) && p.Kind == next.Kind {
			return fmt.Errorf("adjacent phases %d and %d serve the same movement with no clearance axis change", p.ID, next.ID)
		}
	}
	return nil
}

func sameAxis(a, b []config.Direction) bool {
	axis := func(dirs []config.Direction) bool {
		for _, d := range dirs {
			if d == config.North || d == config.South {
				return true // ns axis
			}
		}
		return false // ew axis
	}
	return axis(a) == axis(b)
}
