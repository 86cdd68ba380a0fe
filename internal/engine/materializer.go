package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
)

// materializeStarts expands a recurrence into concrete start timestamps.
// One-time: the single date plus boarding time. Recurring: every day in
// the 7-day window starting today (inclusive) whose weekday is in the
// set. The window is a bounded commitment horizon; it is re-evaluated and
// re-seeded whenever the schedule is processed again.
func (e *Engine) materializeStarts(rec Recurrence, boarding string, now time.Time) ([]time.Time, error) {
	if !rec.IsRecurring() {
		start, err := combineDayTime(rec.Date(), boarding)
		if err != nil {
			return nil, err
		}
		return []time.Time{start}, nil
	}

	starts := make([]time.Time, 0, materializeWindowDays)
	for i := 0; i < materializeWindowDays; i++ {
		day := now.AddDate(0, 0, i)
		if !rec.Includes(day.Weekday()) {
			continue
		}
		start, err := combineDayTime(day, boarding)
		if err != nil {
			return nil, err
		}
		starts = append(starts, start)
	}
	return starts, nil
}

// buildTrips turns start timestamps into SCHEDULED trip rows for the
// schedule. Route/schedule ids may still be zero here; the store wires
// them during the atomic creation commit.
func (e *Engine) buildTrips(schedule *models.Schedule, bus *models.Bus, starts []time.Time) []models.Trip {
	trips := make([]models.Trip, len(starts))
	for i, start := range starts {
		trips[i] = models.Trip{
			OrganizationID: schedule.OrganizationID,
			BusID:          bus.ID,
			DriverID:       schedule.DriverID,
			RouteID:        schedule.RouteID,
			ScheduleID:     schedule.ID,
			Status:         models.TripScheduled,
			ScheduledStart: start,
		}
	}
	return trips
}

// RescheduleResult reports what a reschedule did: the moved trip for
// one-time schedules, or the number of freshly materialized trips for
// recurring ones.
type RescheduleResult struct {
	Trip    *models.Trip `json:"trip,omitempty"`
	Created int          `json:"created"`
}

// RescheduleTrip moves a one-time-derived trip to a new date, or for a
// recurring-derived trip regenerates the 7-day window anchored at the new
// date. Days already holding a trip for the schedule are skipped, keeping
// re-seeding idempotent. The date must not be in the past.
func (e *Engine) RescheduleTrip(ctx context.Context, tripID uint, newDate string) (*RescheduleResult, error) {
	day, err := time.ParseInLocation("2006-01-02", newDate, time.Local)
	if err != nil {
		return nil, ErrInvalidDate
	}
	now := e.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return nil, ErrInvalidDate
	}

	trip, err := e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}
	schedule, err := e.store.Schedule(ctx, trip.ScheduleID)
	if err != nil {
		return nil, err
	}

	if !schedule.IsRecurring() {
		start, err := combineDayTime(day, schedule.BoardingTime)
		if err != nil {
			return nil, err
		}
		trip.ScheduledStart = start
		if err := e.store.SaveTrip(ctx, trip); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"trip_id":   trip.ID,
			"new_start": start,
		}).Info("One-time trip rescheduled in place.")
		return &RescheduleResult{Trip: trip}, nil
	}

	created, err := e.MaterializeWindow(ctx, schedule, day)
	if err != nil {
		return nil, err
	}
	return &RescheduleResult{Trip: trip, Created: created}, nil
}

// MaterializeWindow seeds the recurring schedule's trip window anchored at
// the given day, skipping days that already hold a trip. Returns how many
// trips were created.
func (e *Engine) MaterializeWindow(ctx context.Context, schedule *models.Schedule, anchor time.Time) (int, error) {
	rec := recurrenceFromStored(schedule.Weekdays)
	if !rec.IsRecurring() {
		return 0, ErrInvalidRecurrence
	}

	starts, err := e.materializeStarts(rec, schedule.BoardingTime, anchor)
	if err != nil {
		return 0, err
	}
	if len(starts) == 0 {
		return 0, nil
	}

	from := dayFloor(anchor)
	to := from.AddDate(0, 0, materializeWindowDays)
	existing, err := e.store.TripsForScheduleBetween(ctx, schedule.ID, from, to)
	if err != nil {
		return 0, err
	}
	occupied := make(map[string]bool, len(existing))
	for _, t := range existing {
		occupied[t.ScheduledStart.Format("2006-01-02")] = true
	}

	bus, err := e.store.Bus(ctx, schedule.BusID)
	if err != nil {
		return 0, err
	}

	fresh := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		if !occupied[s.Format("2006-01-02")] {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	trips := e.buildTrips(schedule, bus, fresh)
	if err := e.store.CreateTrips(ctx, trips); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"schedule_id": schedule.ID,
		"anchor":      from,
		"created":     len(trips),
		"skipped":     len(starts) - len(trips),
	}).Info("Recurring trip window materialized.")

	return len(trips), nil
}

func dayFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
