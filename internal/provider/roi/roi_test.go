package roi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/provider"
)

func TestPointInPolygonSquare(t *testing.T) {
	square := [][2]float64{{0.4, 0.0}, {0.6, 0.0}, {0.6, 0.3}, {0.4, 0.3}}
	require.True(t, PointInPolygon(0.5, 0.1, square))
	require.False(t, PointInPolygon(0.9, 0.1, square))
}

func TestPointInPolygonRejectsDegeneratePolygon(t *testing.T) {
	require.False(t, PointInPolygon(0.5, 0.5, [][2]float64{{0, 0}, {1, 1}}))
}

func TestCountByROIAssignsFirstMatchingLane(t *testing.T) {
	lanes := []config.LaneROI{
		{Direction: config.North, LaneKind: config.Through, Polygon: [][2]float64{{0.3, 0}, {0.6, 0}, {0.6, 0.3}, {0.3, 0.3}}},
		{Direction: config.North, LaneKind: config.LeftTurn, Polygon: [][2]float64{{0.2, 0}, {0.3, 0}, {0.3, 0.3}, {0.2, 0.3}}},
	}
	result := provider.DetectionResult{Vehicles: []provider.DetectedVehicle{
		{X: 0.45, Y: 0.1},
		{X: 0.25, Y: 0.1},
		{X: 0.99, Y: 0.99}, // matches nothing
	}}
	counts := CountByROI(result, lanes)
	require.Len(t, counts, 2)
	for _, c := range counts {
		if c.Lane == config.Through {
			require.Equal(t, 1, c.Count)
		} else {
			require.Equal(t, 1, c.Count)
		}
	}
}

func TestCountByQuadrantSplitsByFrameRegion(t *testing.T) {
	result := provider.DetectionResult{Vehicles: []provider.DetectedVehicle{
		{X: 0.5, Y: 0.1},  // north
		{X: 0.5, Y: 0.9},  // south
		{X: 0.9, Y: 0.5},  // east
		{X: 0.1, Y: 0.5},  // west
		{X: 0.5, Y: 0.5},  // center, uncounted
	}}
	counts := CountByQuadrant(result)
	require.Equal(t, 1, counts[config.North])
	require.Equal(t, 1, counts[config.South])
	require.Equal(t, 1, counts[config.East])
	require.Equal(t, 1, counts[config.West])
}
