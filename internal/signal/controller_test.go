package signal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	ring := NewStandardFourWayRing(config.DefaultTimingConstraints())
	c, err := NewController(ring)
	require.NoError(t, err)
	return c
}

func TestControllerStartsAtPhaseOneGreen(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, 1, c.ActivePhase().ID)
	require.Equal(t, StepGreen, c.Step())
	require.Equal(t, ModeNormal, c.CurrentMode())
}

func TestControllerAdvancesGreenToYellowToAllRedToNextPhase(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	tr := c.Tick(timing.MinProtectedLeftGreenS)
	require.True(t, tr.StepChanged)
	require.Equal(t, StepYellow, c.Step())

	tr = c.Tick(timing.YellowS)
	require.True(t, tr.StepChanged)
	require.Equal(t, StepAllRed, c.Step())

	tr = c.Tick(timing.AllRedS)
	require.True(t, tr.PhaseAdvanced)
	require.Equal(t, 2, c.ActivePhase().ID)
	require.Equal(t, StepGreen, c.Step())
}

func TestControllerNeverSkipsClearanceSubSteps(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	// Small ticks never cause a step or phase change ahead of time.
	for i := 0; i < 5; i++ {
		tr := c.Tick(0.1)
		require.False(t, tr.PhaseAdvanced)
	}
	require.Equal(t, StepGreen, c.Step())
	require.Less(t, c.StepElapsed(), timing.MinProtectedLeftGreenS)
}

func TestControllerCycleCompleteAfterFourPhases(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	completedCycle := false
	for i := 0; i < 4 && !completedCycle; i++ {
		phase := c.ActivePhase()
		c.Tick(phase.GreenS)
		c.Tick(phase.YellowS)
		tr := c.Tick(phase.AllRedS)
		if tr.CycleComplete {
			completedCycle = true
		}
	}
	require.True(t, completedCycle)
	require.Equal(t, 1, c.ActivePhase().ID)
	require.Equal(t, 1, c.CycleCount())
	_ = timing
}

func TestPreemptionDuringGreenFinishesClearanceBeforeHold(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	require.NoError(t, c.RequestPreemption(config.East, 15))
	require.Equal(t, ModePreemptClearance, c.CurrentMode())
	require.Equal(t, StepYellow, c.Step())

	c.Tick(timing.YellowS)
	require.Equal(t, StepAllRed, c.Step())

	c.Tick(timing.AllRedS)
	require.Equal(t, ModePreemptHold, c.CurrentMode())
	require.Equal(t, StepGreen, c.Step())

	heads := c.Heads()
	require.Equal(t, VehicleGreen, heads[config.East].Vehicle)
	require.Equal(t, VehicleRed, heads[config.North].Vehicle)
	require.Equal(t, VehicleRed, heads[config.South].Vehicle)
	require.Equal(t, VehicleRed, heads[config.West].Vehicle)
}

func TestPreemptionHoldTimesOutAndResumesRing(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	require.NoError(t, c.RequestPreemption(config.East, 5))
	c.Tick(timing.YellowS)
	c.Tick(timing.AllRedS)
	require.Equal(t, ModePreemptHold, c.CurrentMode())

	c.Tick(5) // hold expires
	require.Equal(t, StepYellow, c.Step())
	c.Tick(timing.YellowS)
	require.Equal(t, ModePreemptExit, c.CurrentMode())
	c.Tick(timing.AllRedS)
	require.Equal(t, ModeNormal, c.CurrentMode())
	require.Equal(t, 2, c.ActivePhase().ID)
}

func TestRequestPreemptionRejectsInvalidDirection(t *testing.T) {
	c := newTestController(t)
	require.Error(t, c.RequestPreemption(config.Direction("NE"), 10))
}

func TestRequestPreemptionRejectsDoubleActivation(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.RequestPreemption(config.East, 10))
	require.Error(t, c.RequestPreemption(config.West, 10))
}

func TestHasConflictDetectsOnlyCrossAxisGreens(t *testing.T) {
	sameAxisGreen := map[config.Direction]Heads{
		config.North: {Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedWalk},
		config.South: {Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedWalk},
		config.East:  {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
		config.West:  {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
	}
	require.False(t, hasConflict(sameAxisGreen))

	crossAxisGreen := map[config.Direction]Heads{
		config.North: {Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedWalk},
		config.South: {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
		config.East:  {Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedDontWalk},
		config.West:  {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
	}
	require.True(t, hasConflict(crossAxisGreen))

	leftArrowConflict := map[config.Direction]Heads{
		config.North: {Vehicle: VehicleRed, LeftTurn: LeftGreenArrow, Ped: PedDontWalk},
		config.South: {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
		config.East:  {Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedDontWalk},
		config.West:  {Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk},
	}
	require.True(t, hasConflict(leftArrowConflict))
}

func TestEnterFaultForcesAllRedAndHaltsTransitions(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	c.EnterFault()
	require.True(t, c.IsFaulted())
	require.Equal(t, ModeFault, c.CurrentMode())

	for _, h := range c.Heads() {
		require.Equal(t, VehicleRed, h.Vehicle)
		require.Equal(t, LeftRed, h.LeftTurn)
		require.Equal(t, PedDontWalk, h.Ped)
	}

	tr := c.Tick(timing.MinProtectedLeftGreenS + timing.YellowS + timing.AllRedS)
	require.Equal(t, Transition{}, tr)
	require.Equal(t, ModeFault, c.CurrentMode())
	require.Equal(t, 1, c.ActivePhase().ID)
	require.Equal(t, StepGreen, c.Step())
}

func TestReleaseFaultResumesInterruptedMode(t *testing.T) {
	c := newTestController(t)
	timing := config.DefaultTimingConstraints()

	require.NoError(t, c.RequestPreemption(config.East, 15))
	c.Tick(timing.YellowS)
	c.Tick(timing.AllRedS)
	require.Equal(t, ModePreemptHold, c.CurrentMode())

	c.EnterFault()
	require.True(t, c.IsFaulted())

	c.ReleaseFault()
	require.Equal(t, ModePreemptHold, c.CurrentMode())
	require.Equal(t, 0.0, c.StepElapsed())

	heads := c.Heads()
	require.Equal(t, VehicleGreen, heads[config.East].Vehicle)
}

func TestEnterFaultIsIdempotent(t *testing.T) {
	c := newTestController(t)
	c.Tick(1) // mid-green, non-zero preFaultMode context
	c.EnterFault()
	c.EnterFault()
	c.ReleaseFault()
	require.Equal(t, ModeNormal, c.CurrentMode())
}
