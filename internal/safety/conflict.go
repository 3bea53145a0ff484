// Package safety implements the two independent watchdogs layered on
// top of the signal state machine: a conflict monitor that re-derives
// green directions from the signal heads and force-latches a fault if
// it ever sees two conflicting movements lit at once, and a preemption
// manager that sequences emergency-vehicle preemption requests.
//
// Both are deliberately independent of the signal Controller's own
// internal bookkeeping — defense in depth, not a second code path that
// trusts the same state the controller trusts.
package safety

import (
	"fmt"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
)

type directionPair struct {
	a, b config.Direction
}

// conflictingPairs lists every pair of directions that must never both
// show green/yellow/green-arrow at once. North/South and East/West are
// each a non-conflicting axis; every cross-axis pair conflicts.
var conflictingPairs = []directionPair{
	{config.North, config.East},
	{config.North, config.West},
	{config.South, config.East},
	{config.South, config.West},
}

// DefaultCleanChecksToClear is the number of consecutive clean checks
// required before a latched fault self-clears.
const DefaultCleanChecksToClear = 50

// ConflictMonitor watches a set of derived signal heads and latches a
// fault if it ever observes a conflicting pair of green movements. It
// reads only the heads it is given — never the controller's internal
// phase/step bookkeeping — so a bug in the controller's own transition
// logic cannot also fool the monitor.
type ConflictMonitor struct {
	FaultActive        bool
	ConflictCount      int
	CleanChecksToClear int

	consecutiveClean int
}

// NewConflictMonitor builds a monitor with the standard clean-check
// threshold.
func NewConflictMonitor() *ConflictMonitor {
	return &ConflictMonitor{CleanChecksToClear: DefaultCleanChecksToClear}
}

// Check runs one conflict check against a snapshot of signal heads. It
// returns true if the intersection is healthy and false if a conflict
// was just detected (the caller should treat false as "force fault
// mode now", not merely "a fault is latched").
func (m *ConflictMonitor) Check(heads map[config.Direction]signal.Heads) bool {
	green := make(map[config.Direction]bool, 4)
	for d, h := range heads {
		if h.Vehicle == signal.VehicleGreen || h.Vehicle == signal.VehicleYellow {
			green[d] = true
		}
		if h.LeftTurn == signal.LeftGreenArrow {
			green[d] = true
		}
	}

	for _, pair := range conflictingPairs {
		if green[pair.a] && green[pair.b] {
			m.onConflictDetected()
			return false
		}
	}

	if m.FaultActive {
		m.consecutiveClean++
		if m.consecutiveClean >= m.CleanChecksToClear {
			m.FaultActive = false
			m.consecutiveClean = 0
		}
	}
	return true
}

func (m *ConflictMonitor) onConflictDetected() {
	m.ConflictCount++
	m.consecutiveClean = 0
	m.FaultActive = true
}

// ConsecutiveClean exposes the running clean-check count, chiefly for
// telemetry.
func (m *ConflictMonitor) ConsecutiveClean() int {
	return m.consecutiveClean
}

// Describe renders a short human-readable fault description, useful for
// telemetry events and CLI status output.
func (m *ConflictMonitor) Describe() string {
	if !m.FaultActive {
		return "healthy"
	}
	return fmt.Sprintf("fault active (conflict #%d, %d/%d clean checks)", m.ConflictCount, m.consecutiveClean, m.CleanChecksToClear)
}
