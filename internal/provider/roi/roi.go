// Package roi turns a provider's raw DetectionResult into per-lane
// vehicle counts, either by testing each detection's bounding-box
// center against a configured region-of-interest polygon, or by a
// coarse quadrant split of the frame for callers that have no lane
// polygons configured.
package roi

import (
	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/provider"
)

// LaneCount is the vehicle count for a single lane after ROI filtering.
type LaneCount struct {
	Direction config.Direction
	Lane      config.LaneKind
	Count     int
}

// PointInPolygon implements the ray-casting algorithm against a polygon
// given in normalized (0-1) coordinates. A polygon with fewer than 3
// points can never contain a point.
func PointInPolygon(px, py float64, polygon [][2]float64) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := polygon[i][0], polygon[i][1]
		xj, yj := polygon[j][0], polygon[j][1]
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// CountByROI filters a detection result's vehicles against each lane's
// ROI polygon and returns a count per lane. Each vehicle is counted in
// at most one lane — the first polygon (in the order given) that
// contains its bounding-box center.
func CountByROI(result provider.DetectionResult, lanes []config.LaneROI) []LaneCount {
	counts := make(map[config.Direction]map[config.LaneKind]int, len(lanes))
	for _, roi := range lanes {
		if counts[roi.Direction] == nil {
			counts[roi.Direction] = make(map[config.LaneKind]int, 2)
		}
		counts[roi.Direction][roi.LaneKind] = 0
	}

	for _, v := range result.Vehicles {
		for _, roi := range lanes {
			if len(roi.Polygon) == 0 {
				continue
			}
			if PointInPolygon(v.X, v.Y, roi.Polygon) {
				counts[roi.Direction][roi.LaneKind]++
				break
			}
		}
	}

	out := make([]LaneCount, 0, len(lanes))
	for _, roi := range lanes {
		out = append(out, LaneCount{
			Direction: roi.Direction,
			Lane:      roi.LaneKind,
			Count:     counts[roi.Direction][roi.LaneKind],
		})
	}
	return out
}

// CountByQuadrant is the fallback used when no ROI polygons are
// configured: it splits the frame into four quadrants by a top-down
// camera convention (top -> north approach, bottom -> south, right ->
// east, left -> west) and returns one vehicle total per approach. It
// does not split a total into through and left-turn lanes, since
// quadrant splitting alone cannot distinguish a through vehicle from a
// left-turning one.
// Vehicles in the center strip are inside the intersection itself and
// are not counted against any approach.
func CountByQuadrant(result provider.DetectionResult) map[config.Direction]int {
	counts := make(map[config.Direction]int, 4)
	for _, d := range config.Directions() {
		counts[d] = 0
	}

	for _, v := range result.Vehicles {
		switch {
		case v.Y < 0.3:
			counts[config.North]++
		case v.Y > 0.7:
			counts[config.South]++
		case v.X > 0.7:
			counts[config.East]++
		case v.X < 0.3:
			counts[config.West]++
		}
	}
	return counts
}
