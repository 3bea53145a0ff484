package signal

import "github.com/tiger/adaptive-intersection-controller/internal/config"

// Step identifies which sub-interval of a phase is currently active.
type Step string

const (
	StepGreen  Step = "green"
	StepYellow Step = "yellow"
	StepAllRed Step = "all_red"
)

// VehicleIndication is the display state of a through signal head.
type VehicleIndication string

const (
	VehicleRed    VehicleIndication = "red"
	VehicleYellow VehicleIndication = "yellow"
	VehicleGreen  VehicleIndication = "green"
)

// LeftTurnIndication is the display state of a protected/permissive
// left-turn signal head.
type LeftTurnIndication string

const (
	LeftRed            LeftTurnIndication = "red"
	LeftGreenArrow     LeftTurnIndication = "green_arrow"
	LeftYellowArrow    LeftTurnIndication = "yellow_arrow"
	LeftFlashingYellow LeftTurnIndication = "flashing_yellow"
)

// PedIndication is the display state of a pedestrian signal head.
type PedIndication string

const (
	PedDontWalk  PedIndication = "dont_walk"
	PedWalk      PedIndication = "walk"
	PedClearance PedIndication = "ped_clearance"
)

// Heads is the full set of displayed indications for one direction at a
// single instant.
type Heads struct {
	Vehicle  VehicleIndication
	LeftTurn LeftTurnIndication
	Ped      PedIndication
}

// DeriveHeads computes the signal heads every direction must show for the
// current phase/step combination. It is a pure function of (phase, step) —
// never of elapsed time — so it never mutates anything and is cheap enough
// to be recomputed on every Controller.Heads call.
func DeriveHeads(ring *Ring, activeIdx int, step Step) map[config.Direction]Heads {
	active := ring.Phases[activeIdx]
	served := servedSet(active.ServedDirections)

	out := make(map[config.Direction]Heads, 4)
	for _, d := range config.Directions() {
		if served[d] {
			out[d] = headsForServed(active, step)
		} else {
			out[d] = Heads{Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk}
		}
	}
	return out
}

func servedSet(dirs []config.Direction) map[config.Direction]bool {
	set := make(map[config.Direction]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}
	return set
}

func headsForServed(active *Phase, step Step) Heads {
	switch active.Kind {
	case PhaseLeftTurn:
		leftGreen := LeftGreenArrow
		if !active.UseProtectedLeft {
			leftGreen = LeftFlashingYellow
		}
		switch step {
		case StepGreen:
			return Heads{Vehicle: VehicleRed, LeftTurn: leftGreen, Ped: PedDontWalk}
		case StepYellow:
			return Heads{Vehicle: VehicleRed, LeftTurn: LeftYellowArrow, Ped: PedDontWalk}
		default:
			return Heads{Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: PedDontWalk}
		}
	default: // PhaseThrough
		ped := derivePed(step)
		switch step {
		case StepGreen:
			return Heads{Vehicle: VehicleGreen, LeftTurn: LeftFlashingYellow, Ped: ped}
		case StepYellow:
			return Heads{Vehicle: VehicleYellow, LeftTurn: LeftRed, Ped: ped}
		default:
			return Heads{Vehicle: VehicleRed, LeftTurn: LeftRed, Ped: ped}
		}
	}
}

// derivePed reports walk across the full green interval and ped_clearance
// across the full yellow interval, matching original_source/models/signal.py.
func derivePed(step Step) PedIndication {
	switch step {
	case StepGreen:
		return PedWalk
	case StepYellow:
		return PedClearance
	default:
		return PedDontWalk
	}
}
