package timing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/model"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
)

func TestComputeCyclePlanLowDemandUsesMinCycle(t *testing.T) {
	in := model.NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	timing := config.DefaultTimingConstraints()
	ring := signal.NewStandardFourWayRing(timing)
	engine := NewEngine(in, timing)

	plan := engine.ComputeCyclePlan(ring)
	require.Equal(t, timing.MinCycleS, plan.CycleLengthS)
}

func TestComputeCyclePlanHighDemandProducesLongerCycle(t *testing.T) {
	in := model.NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	timing := config.DefaultTimingConstraints()
	ring := signal.NewStandardFourWayRing(timing)

	for _, d := range config.Directions() {
		a, err := in.Approach(d)
		require.NoError(t, err)
		a.ThroughLane.Update(40, 0.5)
		a.LeftTurnLane.Update(2, 0.1)
	}

	engine := NewEngine(in, timing)
	plan := engine.ComputeCyclePlan(ring)
	require.Greater(t, plan.CycleLengthS, timing.MinCycleS)
}

func TestNeedsProtectedLeftWhenQueueAtThreshold(t *testing.T) {
	in := model.NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	timing := config.DefaultTimingConstraints()
	ring := signal.NewStandardFourWayRing(timing)

	a, err := in.Approach(config.North)
	require.NoError(t, err)
	a.LeftTurnLane.Update(timing.LeftTurnQueueThreshold, 0)
	b, err := in.Approach(config.South)
	require.NoError(t, err)
	b.LeftTurnLane.Update(timing.LeftTurnQueueThreshold, 0)

	engine := NewEngine(in, timing)
	plan := engine.ComputeCyclePlan(ring)

	found := false
	for _, d := range plan.PhaseDemands {
		if d.PhaseID == 1 {
			require.True(t, d.NeedsProtectedLeft)
			found = true
		}
	}
	require.True(t, found)
}

func TestApplyPlanEnforcesResultingPhases(t *testing.T) {
	in := model.NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	timing := config.DefaultTimingConstraints()
	ring := signal.NewStandardFourWayRing(timing)

	for _, d := range config.Directions() {
		a, err := in.Approach(d)
		require.NoError(t, err)
		a.ThroughLane.Update(200, 1.0)
	}

	engine := NewEngine(in, timing)
	plan := engine.ComputeCyclePlan(ring)
	engine.ApplyPlan(plan, ring)

	for _, p := range ring.Phases {
		if p.Kind == signal.PhaseThrough {
			require.GreaterOrEqual(t, p.GreenS, timing.MinGreenS)
			require.LessOrEqual(t, p.GreenS, timing.MaxGreenS)
		} else {
			require.GreaterOrEqual(t, p.GreenS, timing.MinProtectedLeftGreenS)
			require.LessOrEqual(t, p.GreenS, timing.MaxProtectedLeftGreenS)
		}
	}
}
