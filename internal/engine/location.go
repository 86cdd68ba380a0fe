package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
	"bustrack/internal/routing"
)

// LocationUpdate is one driver position frame from the live channel.
type LocationUpdate struct {
	DriverID  uint
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Speed     float64 // m/s
	Altitude  float64
	Timestamp time.Time
}

// IngestResult reports what an ingested position frame did.
type IngestResult struct {
	Trip      *models.Trip `json:"-"`
	Saved     bool         `json:"saved"`
	EventType string       `json:"event_type"`
	Distance  float64      `json:"distance_m"`
	IsMoving  bool         `json:"is_moving"`
}

// IngestLocation is the high-frequency, fire-and-forget write path for
// driver position updates. It updates the ONGOING trip's current position
// and appends a history row when the movement is significant. It never
// touches the notifier or the planner, so it cannot block on external
// latency. Frames for drivers without an ongoing trip are dropped.
func (e *Engine) IngestLocation(ctx context.Context, in LocationUpdate) (*IngestResult, error) {
	trip, err := e.store.OngoingTripForDriver(ctx, in.DriverID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNoEligibleTrip
	}

	last, err := e.store.LastLocationForTrip(ctx, trip.ID)
	if err != nil {
		return nil, err
	}

	var distance, bearing float64
	isMoving := true
	eventType := "initial"
	if last != nil {
		distance = routing.Haversine(last.Latitude, last.Longitude, in.Latitude, in.Longitude)
		bearing = routing.Bearing(last.Latitude, last.Longitude, in.Latitude, in.Longitude)
		timeDiff := in.Timestamp.Sub(last.Timestamp).Seconds()
		speed := in.Speed
		if speed < 0 {
			speed = 0
		}
		var significant bool
		significant, eventType = significantMovement(distance, speed, timeDiff, last, e.clock.Now())
		isMoving = speed > 0.5
		if !significant {
			// Position still moves forward; history only records
			// significant frames.
			if err := e.store.UpdateTripPosition(ctx, trip.ID, in.Latitude, in.Longitude); err != nil {
				return nil, err
			}
			return &IngestResult{Trip: trip, Saved: false, EventType: eventType, Distance: distance, IsMoving: isMoving}, nil
		}
	}

	record := &models.LocationHistory{
		TripID:           trip.ID,
		DriverID:         in.DriverID,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Accuracy:         in.Accuracy,
		Speed:            in.Speed,
		Bearing:          bearing,
		Altitude:         in.Altitude,
		IsMoving:         isMoving,
		DistanceFromLast: distance,
		Timestamp:        in.Timestamp,
		EventType:        eventType,
	}
	if err := e.store.AppendLocation(ctx, record); err != nil {
		return nil, err
	}
	if err := e.store.UpdateTripPosition(ctx, trip.ID, in.Latitude, in.Longitude); err != nil {
		return nil, err
	}

	e.live.Publish(trip.OrganizationID, "location", map[string]any{
		"trip_id":    trip.ID,
		"bus_id":     trip.BusID,
		"driver_id":  in.DriverID,
		"latitude":   in.Latitude,
		"longitude":  in.Longitude,
		"speed":      in.Speed,
		"bearing":    bearing,
		"is_moving":  isMoving,
		"event_type": eventType,
		"timestamp":  in.Timestamp.Format(time.RFC3339Nano),
	})

	logrus.WithFields(logrus.Fields{
		"trip_id":    trip.ID,
		"driver_id":  in.DriverID,
		"event_type": eventType,
		"distance_m": distance,
	}).Debug("Driver location saved and published.")

	return &IngestResult{Trip: trip, Saved: true, EventType: eventType, Distance: distance, IsMoving: isMoving}, nil
}

// significantMovement decides whether a frame is worth a history row:
// meaningful displacement, a moving/stopped transition, or a periodic
// keepalive.
func significantMovement(distance, speed, timeDiff float64, last *models.LocationHistory, now time.Time) (bool, string) {
	const minDistanceForSave = 5.0
	const minTimeDiffForSave = 10.0
	const minSpeedForMoving = 0.5
	const maxSpeedForStopped = 1.0
	const periodicSaveInterval = 60 * time.Second

	if distance >= minDistanceForSave {
		return true, "move"
	}
	if last.IsMoving && speed < maxSpeedForStopped && timeDiff >= minTimeDiffForSave {
		return true, "stopped"
	}
	if !last.IsMoving && speed >= minSpeedForMoving && timeDiff >= minTimeDiffForSave {
		return true, "started"
	}
	if now.Sub(last.Timestamp) >= periodicSaveInterval {
		return true, "periodic"
	}
	return false, "insignificant"
}
