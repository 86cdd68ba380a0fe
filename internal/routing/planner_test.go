package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize(t *testing.T) {
	ctx := context.Background()
	planner := NewHaversinePlanner()

	t.Run("greedy nearest neighbor from the origin", func(t *testing.T) {
		origin := &LatLng{Lat: 0, Lng: 0}
		// Submitted out of order; distance from the cursor decides the visit
		// sequence.
		waypoints := []LatLng{
			{Lat: 0, Lng: 0.03}, // farthest
			{Lat: 0, Lng: 0.01}, // nearest
			{Lat: 0, Lng: 0.02},
		}
		destination := &LatLng{Lat: 0, Lng: 0.04}

		plan, err := planner.Optimize(ctx, origin, waypoints, destination)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 0}, plan.Order)
		// One leg per waypoint plus the run-in to the destination.
		require.Len(t, plan.Legs, 4)
		for _, leg := range plan.Legs {
			assert.InDelta(t, 1113.0, leg.DistanceM, 5.0)
			assert.Greater(t, leg.DurationS, 0.0)
		}
	})

	t.Run("no origin starts at the first waypoint", func(t *testing.T) {
		waypoints := []LatLng{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 0.01},
		}
		plan, err := planner.Optimize(ctx, nil, waypoints, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, plan.Order)
		require.Len(t, plan.Legs, 2)
		assert.Equal(t, 0.0, plan.Legs[0].DistanceM)
	})

	t.Run("empty waypoints", func(t *testing.T) {
		_, err := planner.Optimize(ctx, &LatLng{}, nil, nil)
		assert.ErrorIs(t, err, ErrNoWaypoints)
	})

	t.Run("honors a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := planner.Optimize(cancelled, &LatLng{}, []LatLng{{Lat: 1, Lng: 1}}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRouteMetrics(t *testing.T) {
	ctx := context.Background()
	planner := NewHaversinePlanner()

	t.Run("aggregates legs in the given order", func(t *testing.T) {
		metrics, err := planner.RouteMetrics(ctx,
			LatLng{Lat: 0, Lng: 0},
			[]LatLng{{Lat: 0, Lng: 0.01}, {Lat: 0, Lng: 0.02}},
			LatLng{Lat: 0, Lng: 0.03},
		)
		require.NoError(t, err)
		// Three equatorial legs of ~1.11 km each.
		assert.InDelta(t, 3.34, metrics.DistanceKm, 0.05)
		assert.InDelta(t, metrics.DistanceKm*1000/averageSpeedMps/60, metrics.DurationMinutes, 0.01)
	})

	t.Run("honors a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := planner.RouteMetrics(cancelled, LatLng{}, nil, LatLng{Lat: 1, Lng: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHaversine(t *testing.T) {
	// One degree of longitude at the equator is about 111.19 km.
	d := Haversine(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 200)

	assert.Equal(t, 0.0, Haversine(-1.2921, 36.8219, -1.2921, 36.8219))
}

func TestBearing(t *testing.T) {
	assert.InDelta(t, 0.0, Bearing(0, 0, 1, 0), 0.5)   // due north
	assert.InDelta(t, 90.0, Bearing(0, 0, 0, 1), 0.5)  // due east
	assert.InDelta(t, 180.0, Bearing(1, 0, 0, 0), 0.5) // due south
}
