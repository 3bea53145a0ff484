package timing

import (
	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/model"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
)

// PhaseDemand is the computed demand metric for a single phase, as of
// the most recent ComputeCyclePlan call.
type PhaseDemand struct {
	PhaseID            int
	TotalQueue         int
	IdealGreenS        float64
	DegreeOfSaturation float64
	NeedsProtectedLeft bool
}

// CyclePlan is the adaptive engine's proposal for the next cycle. It is
// not yet safety-checked: ApplyPlan always runs it through the Enforcer
// before it reaches the signal heads.
type CyclePlan struct {
	CycleLengthS float64
	PhaseDemands []PhaseDemand
	PhaseGreens  map[int]float64
}

// Engine recomputes phase green splits at the start of every cycle from
// observed queue lengths and saturation flow, in the manner of SCATS:
// degree-of-saturation per phase, Webster's formula for overall cycle
// length, and proportional allocation of the resulting green budget.
type Engine struct {
	Intersection *model.Intersection
	Timing       config.TimingConstraints
	Enforcer     *Enforcer

	// SmoothingAlpha weights how quickly DS reacts to a new observation
	// versus the previous cycle's smoothed value. Higher is more
	// reactive.
	SmoothingAlpha float64

	prevDS map[int]float64
}

// NewEngine builds an adaptive timing engine for a fixed intersection and
// constraint set, with the SCATS-standard smoothing factor.
func NewEngine(in *model.Intersection, timing config.TimingConstraints) *Engine {
	return &Engine{
		Intersection:   in,
		Timing:         timing,
		Enforcer:       NewEnforcer(timing),
		SmoothingAlpha: 0.6,
		prevDS:         make(map[int]float64),
	}
}

// ComputeCyclePlan computes demand metrics, overall cycle length, and a
// proportional green split for every phase in the ring. The ring's
// current green times are read (as the "current green" baseline for DS)
// but never mutated; call ApplyPlan to write the plan back.
func (e *Engine) ComputeCyclePlan(ring *signal.Ring) CyclePlan {
	demands := e.computeDemands(ring)
	cycleLength := e.computeCycleLength(demands)
	greens := e.allocateGreenSplits(demands, cycleLength, ring)

	return CyclePlan{
		CycleLengthS: cycleLength,
		PhaseDemands: demands,
		PhaseGreens:  greens,
	}
}

// ApplyPlan writes a computed plan's green times and left-turn mode back
// onto the ring's phases, then runs the full phase set through
// EnforceCycle so the adaptive proposal never reaches the signal heads
// unchecked.
func (e *Engine) ApplyPlan(plan CyclePlan, ring *signal.Ring) {
	for _, phase := range ring.Phases {
		if g, ok := plan.PhaseGreens[phase.ID]; ok {
			phase.GreenS = g
		}
		for _, d := range plan.PhaseDemands {
			if d.PhaseID == phase.ID {
				phase.UseProtectedLeft = d.NeedsProtectedLeft
				break
			}
		}
	}

	enforced := make([]signal.Phase, len(ring.Phases))
	for i, p := range ring.Phases {
		enforced[i] = *p
	}
	enforced = e.Enforcer.EnforceCycle(enforced)
	for i, p := range enforced {
		*ring.Phases[i] = p
	}
}

func (e *Engine) computeDemands(ring *signal.Ring) []PhaseDemand {
	demands := make([]PhaseDemand, 0, len(ring.Phases))

	for _, phase := range ring.Phases {
		totalQueue := 0
		maxIdealGreen := 0.0
		leftTurnTotal := 0
		var satPerSec float64

		for _, dir := range phase.ServedDirections {
			approach, err := e.Intersection.Approach(dir)
			if err != nil {
				continue
			}
			lane := approach.ThroughLane
			if phase.IsLeftTurn() {
				lane = approach.LeftTurnLane
				leftTurnTotal += lane.QueueCount
			}
			totalQueue += lane.QueueCount
			ideal := lane.GreenToClear(e.Timing.StartupLostS)
			if ideal > maxIdealGreen {
				maxIdealGreen = ideal
			}
			if satPerSec == 0 {
				satPerSec = lane.SatPerSec()
			}
		}

		currentGreen := phase.GreenS
		denom := currentGreen * satPerSec
		if denom < 1 {
			denom = 1
		}
		ds := float64(totalQueue) / denom

		prevDS := e.prevDS[phase.ID]
		if _, seen := e.prevDS[phase.ID]; !seen {
			prevDS = ds
		}
		smoothedDS := e.SmoothingAlpha*ds + (1-e.SmoothingAlpha)*prevDS
		e.prevDS[phase.ID] = smoothedDS

		needsProtected := phase.IsLeftTurn() && leftTurnTotal >= e.Timing.LeftTurnQueueThreshold

		demands = append(demands, PhaseDemand{
			PhaseID:            phase.ID,
			TotalQueue:         totalQueue,
			IdealGreenS:        maxIdealGreen,
			DegreeOfSaturation: smoothedDS,
			NeedsProtectedLeft: needsProtected,
		})
	}

	return demands
}

// computeCycleLength applies Webster's optimal cycle formula,
// C = (1.5*L + 5) / (1 - Y), with Y approximated by the average smoothed
// DS across phases (capped at 0.90 to keep the formula well-behaved),
// falling back to the configured minimum cycle under very low demand.
func (e *Engine) computeCycleLength(demands []PhaseDemand) float64 {
	totalLost := float64(len(demands)) * (e.Timing.YellowS + e.Timing.AllRedS)

	avgDS := 0.0
	if len(demands) > 0 {
		sum := 0.0
		for _, d := range demands {
			sum += d.DegreeOfSaturation
		}
		avgDS = sum / float64(len(demands))
	}

	y := avgDS
	if y > 0.90 {
		y = 0.90
	}

	var cycle float64
	if y < 0.05 {
		cycle = e.Timing.MinCycleS
	} else {
		cycle = (1.5*totalLost + 5.0) / (1.0 - y)
	}

	if cycle < e.Timing.MinCycleS {
		cycle = e.Timing.MinCycleS
	}
	if cycle > e.Timing.MaxCycleS {
		cycle = e.Timing.MaxCycleS
	}
	return cycle
}

// allocateGreenSplits distributes the green budget left over after
// fixed yellow/all-red time proportionally to each phase's demand
// weight. A phase with no queued demand gets a floor weight of
// MinGreenS; an unprotected (permissive) left-turn phase gets a fixed,
// minimal weight rather than one driven by its ideal green, since it is
// served concurrently with the through movement and is not claiming a
// dedicated slice of the cycle.
func (e *Engine) allocateGreenSplits(demands []PhaseDemand, cycleLength float64, ring *signal.Ring) map[int]float64 {
	totalFixed := 0.0
	for _, p := range ring.Phases {
		totalFixed += p.YellowS + p.AllRedS
	}
	availableGreen := cycleLength - totalFixed
	if availableGreen < 0 {
		availableGreen = 0
	}

	phaseByID := make(map[int]*signal.Phase, len(ring.Phases))
	for _, p := range ring.Phases {
		phaseByID[p.ID] = p
	}

	weights := make(map[int]float64, len(demands))
	for _, d := range demands {
		weight := e.Timing.MinGreenS
		if d.TotalQueue > 0 && d.IdealGreenS > e.Timing.MinGreenS {
			weight = d.IdealGreenS
		}

		if phase := phaseByID[d.PhaseID]; phase != nil && phase.IsLeftTurn() && !d.NeedsProtectedLeft {
			weight = e.Timing.MinProtectedLeftGreenS * 0.5
		}

		weights[d.PhaseID] = weight
	}

	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight <= 0 {
		totalWeight = 1.0
	}

	greens := make(map[int]float64, len(weights))
	for id, w := range weights {
		greens[id] = (w / totalWeight) * availableGreen
	}
	return greens
}
