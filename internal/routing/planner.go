package routing

import (
	"context"
	"errors"
)

// ErrNoWaypoints is returned when an optimization is requested with
// nothing to visit.
var ErrNoWaypoints = errors.New("routing: no waypoints to optimize")

// averageSpeedMps converts leg distances into travel time. Urban bus
// traffic averages out around 25 km/h.
const averageSpeedMps = 6.94

// HaversinePlanner is the local implementation of the geospatial routing
// service: a greedy nearest-neighbor ordering over great-circle distances.
// The external-provider wire protocol is deliberately out of scope; callers
// treat this the same as any remote planner, including honoring context
// deadlines.
type HaversinePlanner struct{}

func NewHaversinePlanner() *HaversinePlanner {
	return &HaversinePlanner{}
}

// Optimize orders waypoints by repeatedly visiting the nearest unvisited
// point, starting from origin when given, and returns per-leg metrics.
func (p *HaversinePlanner) Optimize(ctx context.Context, origin *LatLng, waypoints []LatLng, destination *LatLng) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}

	visited := make([]bool, len(waypoints))
	plan := &Plan{
		Order: make([]int, 0, len(waypoints)),
		Legs:  make([]Leg, 0, len(waypoints)+1),
	}

	var cursor LatLng
	if origin != nil {
		cursor = *origin
	} else {
		// No origin: start at the first waypoint with a zero-length leg.
		cursor = waypoints[0]
	}

	for range waypoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := -1
		best := 0.0
		for i, wp := range waypoints {
			if visited[i] {
				continue
			}
			d := Haversine(cursor.Lat, cursor.Lng, wp.Lat, wp.Lng)
			if next == -1 || d < best {
				next = i
				best = d
			}
		}
		visited[next] = true
		plan.Order = append(plan.Order, next)
		plan.Legs = append(plan.Legs, legFor(best))
		cursor = waypoints[next]
	}

	if destination != nil {
		d := Haversine(cursor.Lat, cursor.Lng, destination.Lat, destination.Lng)
		plan.Legs = append(plan.Legs, legFor(d))
	}

	return plan, nil
}

// RouteMetrics traverses origin → waypoints (in given order) → destination
// and returns the aggregate distance and duration.
func (p *HaversinePlanner) RouteMetrics(ctx context.Context, origin LatLng, waypoints []LatLng, destination LatLng) (*Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]LatLng, 0, len(waypoints)+2)
	points = append(points, origin)
	points = append(points, waypoints...)
	points = append(points, destination)

	var meters float64
	for i := 1; i < len(points); i++ {
		meters += Haversine(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}

	return &Metrics{
		DistanceKm:      meters / 1000,
		DurationMinutes: meters / averageSpeedMps / 60,
	}, nil
}

func legFor(meters float64) Leg {
	return Leg{
		DistanceM: meters,
		DurationS: meters / averageSpeedMps,
	}
}
