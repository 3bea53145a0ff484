package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

func TestLaneGreenToClearZeroQueue(t *testing.T) {
	l := NewLane(config.North, config.Through, 1800)
	require.Equal(t, 0.0, l.GreenToClear(2.0))
}

func TestLaneGreenToClearWithQueue(t *testing.T) {
	l := NewLane(config.North, config.Through, 1800)
	l.Update(10, 0)
	// sat_per_sec = 0.5 veh/s -> 10/0.5 = 20s + 2s lost = 22s
	require.InDelta(t, 22.0, l.GreenToClear(2.0), 1e-9)
}

func TestLaneDegreeOfSaturationInfWhenGreenZero(t *testing.T) {
	l := NewLane(config.North, config.Through, 1800)
	l.Update(5, 0)
	require.True(t, math.IsInf(l.DegreeOfSaturation(0), 1))
}

func TestLaneUpdateClampsNegatives(t *testing.T) {
	l := NewLane(config.North, config.Through, 1800)
	l.Update(-3, -1)
	require.Equal(t, 0, l.QueueCount)
	require.Equal(t, 0.0, l.ArrivalRate)
}

func TestNewStandardIntersectionHasFourApproaches(t *testing.T) {
	in := NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	require.NoError(t, in.Validate())
	require.Len(t, in.Approaches, 4)
	require.Len(t, in.AllLanes(), 8)
}

func TestIntersectionApproachUnknownDirection(t *testing.T) {
	in := NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	_, err := in.Approach(config.Direction("NE"))
	require.Error(t, err)
}

func TestIntersectionTotalQueue(t *testing.T) {
	in := NewStandardIntersection("Test", config.DefaultFlowDefaults(), 48.0)
	in.Approaches[config.North].ThroughLane.Update(5, 0)
	in.Approaches[config.South].LeftTurnLane.Update(3, 0)
	require.Equal(t, 8, in.TotalQueue())
}
