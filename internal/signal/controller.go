package signal

import (
	"fmt"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

// Mode distinguishes normal ring operation from an active preemption hold.
type Mode string

const (
	ModeNormal             Mode = "normal"
	ModePreemptClearance   Mode = "preempt_clearance"   // finishing yellow/all-red of the interrupted phase
	ModePreemptHold        Mode = "preempt_hold"         // serving the preempted direction green
	ModePreemptExit        Mode = "preempt_exit"         // all-red before resuming the ring
	ModeFault              Mode = "fault"                // all-way flashing red; normal transitions halted
)

// Transition describes what happened on a single Tick call, for
// observers and telemetry.
type Transition struct {
	StepChanged   bool
	PhaseAdvanced bool
	CycleComplete bool
}

// Controller is the safety-critical signal state machine: it owns the
// single authoritative notion of "what is green right now" and advances
// it strictly through green -> yellow -> all-red -> next phase, never
// skipping a clearance interval, even under preemption.
type Controller struct {
	Ring *Ring

	activeIdx   int
	step        Step
	stepElapsed float64
	cycleCount  int

	mode             Mode
	preFaultMode     Mode // mode to resume once the fault is released
	preemptDirection config.Direction
	preemptHoldS     float64
	resumeIdx        int
}

// NewController builds a controller positioned at the first phase of the
// ring, in its green step.
func NewController(ring *Ring) (*Controller, error) {
	if err := ring.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phase ring: %w", err)
	}
	return &Controller{
		Ring: ring,
		mode: ModeNormal,
		step: StepGreen,
	}, nil
}

// ActivePhase returns the ring phase at the current phase index. Under
// preemption this is the interrupted ring phase; the hold itself has no
// Phase of its own.
func (c *Controller) ActivePhase() *Phase {
	return c.Ring.Phases[c.activeIdx]
}

// Step returns the current sub-interval.
func (c *Controller) Step() Step {
	return c.step
}

// CurrentMode returns the controller's operating mode.
func (c *Controller) CurrentMode() Mode {
	return c.mode
}

// StepElapsed returns seconds elapsed within the current step.
func (c *Controller) StepElapsed() float64 {
	return c.stepElapsed
}

// CycleCount returns how many full ring cycles have completed.
func (c *Controller) CycleCount() int {
	return c.cycleCount
}

// Heads computes the current display state for every direction.
func (c *Controller) Heads() map[config.Direction]Heads {
	switch c.mode {
	case ModeNormal:
		return DeriveHeads(c.Ring, c.activeIdx, c.step)
	case ModeFault:
		return allRedHeads()
	default:
		return c.preemptionHeads()
	}
}

// allRedHeads is the fault-mode and preemption-baseline display: every
// direction dark except for red.
func allRedHeads() map[config.Direction]Heads {
	out := make(map[config.Direction]Heads, 4)
	for _, d := range config.Directions() {
		out[d] = Heads{Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk}
	}
	return out
}

func (c *Controller) preemptionHeads() map[config.Direction]Heads {
	out := allRedHeads()
	switch c.mode {
	case ModePreemptClearance:
		return DeriveHeads(c.Ring, c.activeIdx, c.step)
	case ModePreemptHold:
		switch c.step {
		case StepGreen:
			out[c.preemptDirection] = Heads{Vehicle: VehicleGreen, LeftTurn: LeftRed, Ped: PedDontWalk}
		case StepYellow:
			out[c.preemptDirection] = Heads{Vehicle: VehicleYellow, LeftTurn: LeftRed, Ped: PedDontWalk}
		default:
			out[c.preemptDirection] = Heads{Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk}
		}
		return out
	default: // ModePreemptExit: all red
		return out
	}
}

// Tick advances the state machine by dtS seconds and returns what
// happened. dtS must be non-negative; callers (the fixed-rate runtime
// loop) are responsible for supplying a correctly drift-corrected
// interval.
//
// Every tick first runs the controller's own internal conflict check
// against the heads it is currently showing, before advancing anything,
// independent of the external
// safety.ConflictMonitor the runtime loop also runs against the same
// heads: defense in depth means two separate implementations must both
// fault on the same input, not one code path trusted twice. If the
// internal check ever finds a conflicting pair lit, Tick enters fault
// mode itself and halts — it does not wait for the external monitor to
// tell it to.
func (c *Controller) Tick(dtS float64) Transition {
	var t Transition
	if dtS < 0 {
		return t
	}
	if c.mode == ModeFault {
		return t
	}
	if hasConflict(c.Heads()) {
		c.EnterFault()
		return t
	}
	c.stepElapsed += dtS

	switch c.mode {
	case ModeNormal:
		return c.tickNormal()
	case ModePreemptClearance:
		return c.tickPreemptClearance()
	case ModePreemptHold:
		return c.tickPreemptHold()
	case ModePreemptExit:
		return c.tickPreemptExit()
	}
	return t
}

// EnterFault forces every head to red and halts all normal transitions.
// It is idempotent and may be called either by Tick's own internal
// conflict check or by the runtime loop on behalf of the independent
// safety.ConflictMonitor — whichever watchdog sees the conflict first.
// The mode in effect at the moment of the fault is remembered so
// ReleaseFault can resume exactly where the machine was interrupted,
// rather than restarting the ring from phase one.
func (c *Controller) EnterFault() {
	if c.mode == ModeFault {
		return
	}
	c.preFaultMode = c.mode
	c.mode = ModeFault
}

// ReleaseFault exits fault mode and resumes the mode the controller was
// in when the fault was entered. Per spec, exit from fault mode is
// governed by the conflict monitor: only the runtime loop, once its
// ConflictMonitor reports the clean-check threshold satisfied, should
// call this. The interrupted step is restarted from zero elapsed time
// rather than resumed mid-interval, since a fault of unknown duration
// must never let a clearance interval appear shorter than it actually
// needs to be.
func (c *Controller) ReleaseFault() {
	if c.mode != ModeFault {
		return
	}
	c.mode = c.preFaultMode
	c.stepElapsed = 0
}

// IsFaulted reports whether the controller is currently latched in
// fault mode.
func (c *Controller) IsFaulted() bool {
	return c.mode == ModeFault
}

// hasConflict duplicates safety.ConflictMonitor's cross-axis check
// against a set of rendered heads. It is intentionally a separate
// implementation, not a shared call into the safety package, so a bug
// in one watchdog cannot silently mask what the other would have
// caught.
func hasConflict(heads map[config.Direction]Heads) bool {
	green := make(map[config.Direction]bool, 4)
	for d, h := range heads {
		if h.Vehicle == VehicleGreen || h.Vehicle == VehicleYellow {
			green[d] = true
		}
		if h.LeftTurn == LeftGreenArrow {
			green[d] = true
		}
	}
	for _, pair := range [...][2]config.Direction{
		{config.North, config.East},
		{config.North, config.West},
		{config.South, config.East},
		{config.South, config.West},
	} {
		if green[pair[0]] && green[pair[1]] {
			return true
		}
	}
	return false
}

func (c *Controller) tickNormal() Transition {
	var t Transition
	phase := c.ActivePhase()
	switch c.step {
	case StepGreen:
		if c.stepElapsed >= phase.GreenS {
			c.advanceStep(StepYellow, &t)
		}
	case StepYellow:
		if c.stepElapsed >= phase.YellowS {
			c.advanceStep(StepAllRed, &t)
		}
	case StepAllRed:
		if c.stepElapsed >= phase.AllRedS {
			c.advancePhase(&t)
		}
	}
	return t
}

func (c *Controller) advanceStep(next Step, t *Transition) {
	c.step = next
	c.stepElapsed = 0
	t.StepChanged = true
}

func (c *Controller) advancePhase(t *Transition) {
	nextIdx := c.Ring.NextPhaseIndex(c.activeIdx)
	if nextIdx <= c.activeIdx {
		c.cycleCount++
		t.CycleComplete = true
	}
	c.activeIdx = nextIdx
	c.step = StepGreen
	c.stepElapsed = 0
	t.PhaseAdvanced = true
}

// RequestPreemption begins preempting for an emergency vehicle approaching
// from dir. If the controller is already mid-green it does not jump
// straight to the preemption hold: it finishes the in-progress yellow and
// all-red clearance first, exactly as a normal phase change would, so no
// conflicting movement ever loses its clearance interval.
//
// A request arriving while a previous hold is already winding down (its
// own yellow, or the post-hold all-red exit) retargets the in-progress
// clearance to the newly requested direction instead of letting it
// resume the ring — this is what lets safety.Manager.Clear() hand the
// intersection straight to the next queued event without first
// round-tripping through ModeNormal. A request arriving while a hold is
// still actually green, or while the first hold hasn't been reached yet,
// is rejected: that is a genuine second preemption stacked on an active
// one, not a same-instant handoff.
func (c *Controller) RequestPreemption(dir config.Direction, holdS float64) error {
	if err := dir.Validate(); err != nil {
		return err
	}

	handoff := c.mode == ModePreemptExit || (c.mode == ModePreemptHold && c.step != StepGreen)
	if c.mode != ModeNormal && !handoff {
		return fmt.Errorf("preemption already active")
	}

	c.preemptDirection = dir
	c.preemptHoldS = holdS
	c.resumeIdx = c.Ring.NextPhaseIndex(c.activeIdx)

	if handoff {
		// Let whatever clearance interval is already running finish
		// undisturbed; tickPreemptClearance carries it into a hold for
		// the new direction once that interval elapses.
		c.mode = ModePreemptClearance
		return nil
	}

	if c.step == StepGreen {
		c.mode = ModePreemptClearance
		c.advanceStep(StepYellow, &Transition{})
		return nil
	}
	// Already clearing (yellow or all-red): let the in-progress clearance
	// finish, then enter the hold.
	c.mode = ModePreemptClearance
	return nil
}

func (c *Controller) tickPreemptClearance() Transition {
	var t Transition
	phase := c.ActivePhase()
	switch c.step {
	case StepYellow:
		if c.stepElapsed >= phase.YellowS {
			c.advanceStep(StepAllRed, &t)
		}
	case StepAllRed:
		if c.stepElapsed >= phase.AllRedS {
			c.mode = ModePreemptHold
			c.step = StepGreen
			c.stepElapsed = 0
			t.StepChanged = true
		}
	}
	return t
}

func (c *Controller) tickPreemptHold() Transition {
	var t Transition
	switch c.step {
	case StepGreen:
		if c.stepElapsed >= c.preemptHoldS {
			c.advanceStep(StepYellow, &t)
		}
	case StepYellow:
		if c.stepElapsed >= c.Ring.Phases[0].YellowS {
			c.mode = ModePreemptExit
			c.step = StepAllRed
			c.stepElapsed = 0
			t.StepChanged = true
		}
	}
	return t
}

func (c *Controller) tickPreemptExit() Transition {
	var t Transition
	if c.stepElapsed >= c.Ring.Phases[0].AllRedS {
		c.mode = ModeNormal
		c.activeIdx = c.resumeIdx
		c.step = StepGreen
		c.stepElapsed = 0
		t.PhaseAdvanced = true
	}
	return t
}

// ClearPreemption ends the emergency hold. A hold still showing green is
// cut short into its own yellow clearance rather than being cut straight
// to red: the subsequent Tick calls carry it through yellow and all-red
// exactly as tickPreemptHold always does, so an emergency green is never
// followed by anything but a normal clearance sequence.
func (c *Controller) ClearPreemption() {
	switch c.mode {
	case ModeNormal:
		return
	case ModePreemptHold:
		if c.step == StepGreen {
			c.step = StepYellow
			c.stepElapsed = 0
		}
		// else: already clearing out of the hold (yellow); let it finish.
	case ModePreemptClearance:
		// Hold never actually started; finish the in-progress clearance
		// instead of entering the hold. A running yellow completes under
		// normal ring stepping (yellow -> all-red -> next phase); an
		// all-red goes straight to exit.
		if c.step == StepYellow {
			c.mode = ModeNormal
			return
		}
		c.mode = ModePreemptExit
		c.step = StepAllRed
		c.stepElapsed = 0
	}
}
