package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
)

// CreateScheduleInput is the admin-facing request for a new schedule.
// Exactly one of Weekdays / Date drives the recurrence. DriverID is
// optional; when absent the bus's currently assigned driver is used.
type CreateScheduleInput struct {
	OrganizationID uint
	BusID          uint
	DriverID       *uint
	BoardingTime   string // "15:04"
	ReturnTime     string // optional, defaults to BoardingTime
	Weekdays       []string
	Date           string // "2006-01-02" for one-time schedules
}

// CreateSchedule validates the plan, synthesizes a fresh route for the
// bus, persists route + schedule + seed trips atomically, and returns the
// schedule together with the number of materialized trips.
func (e *Engine) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*models.Schedule, int, error) {
	rec, err := ParseRecurrence(in.Weekdays, in.Date)
	if err != nil {
		return nil, 0, err
	}
	if _, err := time.Parse("15:04", in.BoardingTime); err != nil {
		return nil, 0, ErrInvalidTime
	}
	if in.ReturnTime == "" {
		in.ReturnTime = in.BoardingTime
	}

	bus, err := e.store.Bus(ctx, in.BusID)
	if err != nil {
		return nil, 0, err
	}

	driverID := uint(0)
	switch {
	case in.DriverID != nil && *in.DriverID != 0:
		driverID = *in.DriverID
	case bus.DriverID != nil && *bus.DriverID != 0:
		driverID = *bus.DriverID
	default:
		return nil, 0, ErrNoDriverAssigned
	}

	passengers, err := e.store.PassengersByBus(ctx, in.BusID)
	if err != nil {
		return nil, 0, err
	}
	if len(passengers) == 0 {
		return nil, 0, ErrNoPassengersAssigned
	}

	org, err := e.store.Organization(ctx, in.OrganizationID)
	if err != nil {
		return nil, 0, err
	}

	route := e.SynthesizeRoute(ctx, org, bus, passengers, in.BoardingTime, in.ReturnTime)

	schedule := &models.Schedule{
		OrganizationID: in.OrganizationID,
		BusID:          in.BusID,
		DriverID:       driverID,
		BoardingTime:   in.BoardingTime,
		Weekdays:       rec.WeekdayNames(),
		Active:         true,
	}

	starts, err := e.materializeStarts(rec, in.BoardingTime, e.clock.Now())
	if err != nil {
		return nil, 0, err
	}
	trips := e.buildTrips(schedule, bus, starts)

	if err := e.store.CreateScheduleGraph(ctx, route, schedule, trips); err != nil {
		return nil, 0, err
	}

	logrus.WithFields(logrus.Fields{
		"schedule_id": schedule.ID,
		"bus_id":      bus.ID,
		"driver_id":   driverID,
		"trips":       len(trips),
		"recurring":   rec.IsRecurring(),
	}).Info("Schedule created with synthesized route and seed trips.")

	return schedule, len(trips), nil
}

// UpdateScheduleInput carries optional schedule mutations; nil fields are
// left untouched.
type UpdateScheduleInput struct {
	BoardingTime *string
	Weekdays     []string
	Active       *bool
}

// UpdateSchedule applies the given mutations. Changing the weekday set is
// validated but does not retroactively touch already-materialized trips;
// the next materialization uses the new cadence.
func (e *Engine) UpdateSchedule(ctx context.Context, id uint, in UpdateScheduleInput) (*models.Schedule, error) {
	schedule, err := e.store.Schedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.BoardingTime != nil {
		if _, err := time.Parse("15:04", *in.BoardingTime); err != nil {
			return nil, ErrInvalidTime
		}
		schedule.BoardingTime = *in.BoardingTime
	}
	if in.Weekdays != nil {
		rec, err := ParseRecurrence(in.Weekdays, "")
		if err != nil {
			return nil, err
		}
		schedule.Weekdays = rec.WeekdayNames()
	}
	if in.Active != nil {
		schedule.Active = *in.Active
	}

	if err := e.store.SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// DeleteSchedule removes the schedule definition. Already-materialized
// trips are kept: history stays intact.
func (e *Engine) DeleteSchedule(ctx context.Context, id uint) error {
	if _, err := e.store.Schedule(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	logrus.WithField("schedule_id", id).Info("Schedule deleted; materialized trips preserved.")
	return nil
}

// ScheduleByID loads a schedule with its route.
func (e *Engine) ScheduleByID(ctx context.Context, id uint) (*models.Schedule, error) {
	schedule, err := e.store.Schedule(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return schedule, err
}
