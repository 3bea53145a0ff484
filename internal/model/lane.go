// Package model holds the live, mutable intersection state: lanes,
// approaches, and their queue counts. Lanes are mutated only by the
// detection-provider bridge; every other subsystem reads them.
package model

import (
	"math"
	"time"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

// Lane is a single through or left-turn lane within an approach.
type Lane struct {
	Direction      config.Direction
	Kind           config.LaneKind
	SaturationFlow float64 // veh/hr

	QueueCount   int
	ArrivalRate  float64 // estimated vehicles/sec arriving
	LastUpdated  time.Time
}

// NewLane constructs a lane with zero live state.
func NewLane(direction config.Direction, kind config.LaneKind, saturationFlow float64) *Lane {
	return &Lane{
		Direction:      direction,
		Kind:           kind,
		SaturationFlow: saturationFlow,
		LastUpdated:    time.Now(),
	}
}

// SatPerSec converts the hourly saturation flow to vehicles per second.
func (l *Lane) SatPerSec() float64 {
	return l.SaturationFlow / 3600.0
}

// GreenToClear returns the seconds of green needed to discharge the
// current queue, including the fixed startup lost time, or zero if the
// queue is empty.
func (l *Lane) GreenToClear(startupLostS float64) float64 {
	if l.QueueCount <= 0 {
		return 0.0
	}
	return float64(l.QueueCount)/l.SatPerSec() + startupLostS
}

// DegreeOfSaturation returns queued demand divided by the capacity a given
// green duration grants. An empty or non-positive green duration yields
// +Inf (unboundedly oversaturated).
func (l *Lane) DegreeOfSaturation(greenS float64) float64 {
	if greenS <= 0 {
		return math.Inf(1)
	}
	capacity := l.SatPerSec() * greenS
	if capacity <= 0 {
		return math.Inf(1)
	}
	return float64(l.QueueCount) / capacity
}

// Update writes a new queue count and arrival rate observed by the
// detection-provider bridge. Negative values are clamped to zero.
func (l *Lane) Update(queueCount int, arrivalRate float64) {
	if queueCount < 0 {
		queueCount = 0
	}
	if arrivalRate < 0 {
		arrivalRate = 0
	}
	l.QueueCount = queueCount
	l.ArrivalRate = arrivalRate
	l.LastUpdated = time.Now()
}
