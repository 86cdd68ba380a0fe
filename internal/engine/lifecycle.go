package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
	"bustrack/internal/routing"
)

// StartTripResult reports a successful SCHEDULED → ONGOING transition.
// Notification failures never fail the transition; they are counted here.
type StartTripResult struct {
	Trip             *models.Trip `json:"trip"`
	Notified         int          `json:"notified"`
	DeliveryFailures int          `json:"delivery_failures"`
}

// StartTrip transitions a trip from SCHEDULED to ONGOING. Preconditions:
// every passenger assigned to the trip's bus holds a PRESENT or ABSENT
// attendance record (the boarding gate), the trip is exactly SCHEDULED,
// and no other trip for the same bus is ONGOING. On success the trip is
// seeded with the depot position and each boarded passenger's guardian is
// notified with a per-passenger ETA (planner failure degrades to a fixed
// default, never blocking the start).
func (e *Engine) StartTrip(ctx context.Context, tripID uint) (*StartTripResult, error) {
	trip, err := e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}

	lock := e.busLock(trip.BusID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the bus lock; a concurrent Start may have won.
	trip, err = e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}
	if trip.Status != models.TripScheduled {
		if trip.Status == models.TripCompleted {
			return nil, ErrTripCompleted
		}
		return nil, ErrTripNotScheduled
	}

	ongoing, err := e.store.OngoingTripForBus(ctx, trip.BusID)
	if err != nil {
		return nil, err
	}
	if ongoing != nil && ongoing.ID != trip.ID {
		return nil, ErrBusAlreadyOnTrip
	}

	passengers, err := e.store.PassengersByBus(ctx, trip.BusID)
	if err != nil {
		return nil, err
	}
	records, err := e.store.AttendanceForTrip(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	byPassenger := make(map[uint]models.AttendanceRecord, len(records))
	for _, r := range records {
		byPassenger[r.PassengerID] = r
	}

	var pending []string
	for _, p := range passengers {
		rec, ok := byPassenger[p.ID]
		if !ok || rec.Status == models.AttendancePending {
			pending = append(pending, p.Name)
		}
	}
	if len(pending) > 0 {
		return nil, &BoardingIncompleteError{Pending: pending}
	}

	org, err := e.store.Organization(ctx, trip.OrganizationID)
	if err != nil {
		return nil, err
	}
	depot := routing.LatLng{Lat: fallbackDepotLat, Lng: fallbackDepotLng}
	if org.HasDepot {
		depot = routing.LatLng{Lat: org.DepotLat, Lng: org.DepotLng}
	}

	now := e.clock.Now()
	trip.Status = models.TripOngoing
	trip.ActualStart = &now
	trip.CurrentLat = &depot.Lat
	trip.CurrentLng = &depot.Lng
	if err := e.store.SaveTrip(ctx, trip); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"bus_id":  trip.BusID,
		"started": now,
	}).Info("Trip started.")

	e.live.Publish(trip.OrganizationID, "trip_started", map[string]any{
		"trip_id": trip.ID,
		"bus_id":  trip.BusID,
		"lat":     depot.Lat,
		"lng":     depot.Lng,
	})

	report := e.notifyTripStarted(ctx, trip, depot, passengers, byPassenger)
	return &StartTripResult{
		Trip:             trip,
		Notified:         report.Delivered,
		DeliveryFailures: len(report.Failed),
	}, nil
}

// notifyTripStarted fans out the trip-started message to every boarded
// passenger's guardian with a per-passenger ETA and distance.
func (e *Engine) notifyTripStarted(ctx context.Context, trip *models.Trip, depot routing.LatLng, passengers []models.Passenger, records map[uint]models.AttendanceRecord) FanoutReport {
	type target struct {
		guardianID uint
		msg        Message
	}
	targets := make([]target, 0, len(passengers))

	for _, p := range passengers {
		if records[p.ID].Status != models.AttendancePresent {
			continue
		}
		etaMin := defaultETAMinutes
		distanceKm := 0.0
		plannerCtx, cancel := context.WithTimeout(ctx, e.plannerTimeout)
		metrics, err := e.planner.RouteMetrics(plannerCtx, depot, nil, routing.LatLng{Lat: p.HomeLat, Lng: p.HomeLng})
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("passenger_id", p.ID).
				Warn("ETA computation unavailable, using default estimate.")
		} else {
			etaMin = metrics.DurationMinutes
			distanceKm = metrics.DistanceKm
		}

		targets = append(targets, target{
			guardianID: p.GuardianID,
			msg: Message{
				Type:  models.NotifyTripStarted,
				Title: "Bus on the way",
				Body:  fmt.Sprintf("%s's bus has departed. Estimated arrival in %.0f minutes.", p.Name, etaMin),
				Metadata: map[string]any{
					"trip_id":      trip.ID,
					"passenger_id": p.ID,
					"eta_minutes":  etaMin,
					"distance_km":  distanceKm,
				},
			},
		})
	}

	recipients := make([]uint, len(targets))
	messages := make([]Message, len(targets))
	for i, t := range targets {
		recipients[i] = t.guardianID
		messages[i] = t.msg
	}
	return e.fanout(ctx, recipients, messages)
}

// EndTripResult reports a successful ONGOING → COMPLETED transition.
type EndTripResult struct {
	Trip             *models.Trip `json:"trip"`
	Degraded         bool         `json:"degraded"`
	Notified         int          `json:"notified"`
	DeliveryFailures int          `json:"delivery_failures"`
}

// EndTrip transitions a trip from ONGOING to COMPLETED. Final distance and
// duration come from the planner across the route's stops; on planner
// failure the caller-supplied distance estimate (or zero) is used and the
// degradation logged. A negative duration is rejected with
// ErrInvalidDuration, leaving the trip ONGOING; a duration past the sanity
// threshold is flagged, not rejected. COMPLETED is terminal.
func (e *Engine) EndTrip(ctx context.Context, tripID uint, callerDistanceKm *float64) (*EndTripResult, error) {
	trip, err := e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}
	if trip.Status != models.TripOngoing {
		if trip.Status == models.TripCompleted {
			return nil, ErrTripCompleted
		}
		return nil, ErrTripNotOngoing
	}

	now := e.clock.Now()
	if trip.ActualStart == nil || now.Before(*trip.ActualStart) {
		return nil, ErrInvalidDuration
	}
	elapsed := now.Sub(*trip.ActualStart)
	if elapsed > longTripThreshold {
		trip.LongAnomaly = true
		logrus.WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"elapsed": elapsed,
		}).Warn("Anomalously long trip flagged at completion.")
	}

	distanceKm, durationMin, degraded := e.finalMetrics(ctx, trip, callerDistanceKm, elapsed)

	trip.Status = models.TripCompleted
	trip.ActualEnd = &now
	trip.DistanceCoveredKm = distanceKm
	trip.EstimatedDurMin = durationMin
	if err := e.store.SaveTrip(ctx, trip); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"bus_id":      trip.BusID,
		"distance_km": distanceKm,
		"degraded":    degraded,
	}).Info("Trip completed.")

	e.live.Publish(trip.OrganizationID, "trip_completed", map[string]any{
		"trip_id":     trip.ID,
		"bus_id":      trip.BusID,
		"distance_km": distanceKm,
	})

	report := e.notifyTripCompleted(ctx, trip)
	return &EndTripResult{
		Trip:             trip,
		Degraded:         degraded,
		Notified:         report.Delivered,
		DeliveryFailures: len(report.Failed),
	}, nil
}

// finalMetrics computes the completed trip's distance/duration from the
// planner, degrading to the caller estimate (or zero) plus wall-clock
// duration when the planner is unavailable or the route has too few stops.
func (e *Engine) finalMetrics(ctx context.Context, trip *models.Trip, callerDistanceKm *float64, elapsed time.Duration) (float64, float64, bool) {
	fallback := func(err error) (float64, float64, bool) {
		distance := 0.0
		if callerDistanceKm != nil {
			distance = *callerDistanceKm
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"trip_id":     trip.ID,
			"distance_km": distance,
		}).Warn("Final trip metrics degraded: routing service unavailable.")
		return distance, elapsed.Minutes(), true
	}

	route, err := e.store.Route(ctx, trip.RouteID)
	if err != nil {
		return fallback(err)
	}
	if len(route.Stops) < 2 {
		return fallback(fmt.Errorf("route %d has %d stops", route.ID, len(route.Stops)))
	}

	stops := route.Stops
	origin := routing.LatLng{Lat: stops[0].Lat, Lng: stops[0].Lng}
	destination := routing.LatLng{Lat: stops[len(stops)-1].Lat, Lng: stops[len(stops)-1].Lng}
	waypoints := make([]routing.LatLng, 0, len(stops)-2)
	for _, s := range stops[1 : len(stops)-1] {
		waypoints = append(waypoints, routing.LatLng{Lat: s.Lat, Lng: s.Lng})
	}

	plannerCtx, cancel := context.WithTimeout(ctx, e.plannerTimeout)
	defer cancel()
	metrics, err := e.planner.RouteMetrics(plannerCtx, origin, waypoints, destination)
	if err != nil {
		return fallback(err)
	}
	return metrics.DistanceKm, metrics.DurationMinutes, false
}

// notifyTripCompleted fans out the trip-completed message to every
// assigned passenger's guardian.
func (e *Engine) notifyTripCompleted(ctx context.Context, trip *models.Trip) FanoutReport {
	passengers, err := e.store.PassengersByBus(ctx, trip.BusID)
	if err != nil {
		logrus.WithError(err).WithField("trip_id", trip.ID).
			Warn("Could not load passengers for completion fanout.")
		return FanoutReport{}
	}

	recipients := make([]uint, 0, len(passengers))
	messages := make([]Message, 0, len(passengers))
	for _, p := range passengers {
		recipients = append(recipients, p.GuardianID)
		messages = append(messages, Message{
			Type:  models.NotifyTripCompleted,
			Title: "Trip completed",
			Body:  fmt.Sprintf("%s's trip has ended safely.", p.Name),
			Metadata: map[string]any{
				"trip_id":      trip.ID,
				"passenger_id": p.ID,
				"distance_km":  trip.DistanceCoveredKm,
			},
		})
	}
	return e.fanout(ctx, recipients, messages)
}
