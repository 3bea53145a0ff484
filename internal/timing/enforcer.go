// Package timing holds the two pieces of the timing pipeline: the
// Enforcer, which clamps any proposed phase durations to safe
// limits, and the adaptive Engine, which proposes those durations
// from observed demand. The enforcer always runs last and always wins:
// the adaptive engine's output is a suggestion, the enforcer's output is
// what actually reaches the signal heads.
package timing

import "github.com/tiger/adaptive-intersection-controller/internal/config"
import "github.com/tiger/adaptive-intersection-controller/internal/signal"

// Enforcer clamps phase durations to the safety bounds in a
// TimingConstraints. It is a pure function over its inputs: calling it
// twice on an already-legal phase is a no-op, and it never depends on
// anything but the phase and the constraints.
type Enforcer struct {
	Constraints config.TimingConstraints
}

// NewEnforcer builds an Enforcer bound to a fixed set of constraints.
func NewEnforcer(c config.TimingConstraints) *Enforcer {
	return &Enforcer{Constraints: c}
}

// Enforce returns a copy of phase with every duration clamped to the
// enforcer's constraints. Yellow and all-red are always forced to the
// fixed constraint values; they are never adaptive. Green is clamped to
// the min/max pair appropriate to the phase kind, then the pedestrian
// walk+clearance requirement is applied on top — a through phase's green
// is never shorter than what full-speed pedestrians need, even if that
// means exceeding what the adaptive engine requested or MaxGreenS itself:
// the pedestrian extension is applied after the max clamp.
func (e *Enforcer) Enforce(phase signal.Phase) signal.Phase {
	c := e.Constraints
	out := phase

	minGreen, maxGreen := c.MinGreenS, c.MaxGreenS
	if phase.Kind == signal.PhaseLeftTurn {
		minGreen, maxGreen = c.MinProtectedLeftGreenS, c.MaxProtectedLeftGreenS
	}
	out.GreenS = clamp(phase.GreenS, minGreen, maxGreen)

	out.YellowS = c.YellowS
	out.AllRedS = c.AllRedS

	if phase.Kind != signal.PhaseLeftTurn {
		out.WalkS = max64(c.MinWalkS, phase.WalkS)
		out.PedClearanceS = c.PedClearanceS()

		minPedGreen := out.WalkS + out.PedClearanceS
		if out.GreenS < minPedGreen {
			out.GreenS = minPedGreen
		}
	}

	return out
}

// EnforceCycle enforces every phase individually, then verifies the
// resulting cycle total sits within [MinCycleS, MaxCycleS]. If it does
// not, green times are scaled proportionally to hit the bound exactly,
// and every phase is re-clamped through Enforce afterward — scaling can
// push a phase back out of its own min/max or ped-clearance requirement,
// and that second pass is what guarantees it never does.
func (e *Enforcer) EnforceCycle(phases []signal.Phase) []signal.Phase {
	out := make([]signal.Phase, len(phases))
	for i, p := range phases {
		out[i] = e.Enforce(p)
	}

	total := 0.0
	for _, p := range out {
		total += p.TotalPhaseTime()
	}

	c := e.Constraints
	switch {
	case total < c.MinCycleS:
		e.scaleGreens(out, total, c.MinCycleS)
	case total > c.MaxCycleS:
		e.scaleGreens(out, total, c.MaxCycleS)
	}
	return out
}

func (e *Enforcer) scaleGreens(phases []signal.Phase, currentTotal, targetTotal float64) {
	fixed := 0.0
	for _, p := range phases {
		fixed += p.YellowS + p.AllRedS
	}
	greenTotal := currentTotal - fixed
	if greenTotal <= 0 {
		return
	}
	targetGreen := targetTotal - fixed
	ratio := targetGreen / greenTotal

	for i, p := range phases {
		p.GreenS *= ratio
		phases[i] = e.Enforce(p)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
