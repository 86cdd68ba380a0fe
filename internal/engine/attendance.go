package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
)

// VerifyByToken resolves a QR identity token to its passenger, finds that
// passenger's eligible trip (the bus's ONGOING trip, else its next
// SCHEDULED one) and upserts a PRESENT attendance record. Re-scanning an
// already-boarded passenger is a no-op success; boardedAt is kept.
func (e *Engine) VerifyByToken(ctx context.Context, token string) (*models.AttendanceRecord, *models.Trip, error) {
	passenger, err := e.store.PassengerByToken(ctx, token)
	if err != nil {
		return nil, nil, ErrUnknownToken
	}
	if passenger.BusID == nil {
		return nil, nil, ErrNoEligibleTrip
	}

	trip, err := e.store.EligibleTripForBus(ctx, *passenger.BusID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrNoEligibleTrip
	}

	record, err := e.boardPassenger(ctx, trip.ID, passenger.ID)
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"trip_id":      trip.ID,
		"passenger_id": passenger.ID,
	}).Info("Passenger verified by token.")

	e.live.Publish(passenger.OrganizationID, "passenger_boarded", map[string]any{
		"trip_id":      trip.ID,
		"passenger_id": passenger.ID,
	})

	return record, trip, nil
}

// boardPassenger lazily creates the (trip, passenger) record and marks it
// PRESENT, preserving boardedAt when it is already set.
func (e *Engine) boardPassenger(ctx context.Context, tripID, passengerID uint) (*models.AttendanceRecord, error) {
	record, err := e.store.Attendance(ctx, tripID, passengerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &models.AttendanceRecord{
			TripID:      tripID,
			PassengerID: passengerID,
			Status:      models.AttendancePending,
		}
	}
	if record.Status == models.AttendancePresent {
		return record, nil
	}
	now := e.clock.Now()
	record.Status = models.AttendancePresent
	if record.BoardedAt == nil {
		record.BoardedAt = &now
	}
	if err := e.store.SaveAttendance(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// MarkAction is a manual attendance override.
type MarkAction string

const (
	MarkBoard  MarkAction = "board"
	MarkAbsent MarkAction = "absent"
)

// MarkManualResult reports how many records a manual marking touched.
type MarkManualResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// MarkManual upserts attendance records for one or more passengers on a
// trip. Marking is idempotent: a record already in the target state is
// skipped and boardedAt is never overwritten. Bulk calls (more than one
// passenger) only touch records still PENDING, matching the
// "mark all present" action; a single-passenger call may also override a
// previously resolved status. COMPLETED trips are immutable.
func (e *Engine) MarkManual(ctx context.Context, tripID uint, passengerIDs []uint, action MarkAction) (*MarkManualResult, error) {
	if action != MarkBoard && action != MarkAbsent {
		return nil, ErrInvalidAction
	}
	trip, err := e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}
	if trip.Status == models.TripCompleted {
		return nil, ErrTripCompleted
	}

	bulk := len(passengerIDs) > 1
	result := &MarkManualResult{}

	for _, pid := range passengerIDs {
		record, err := e.store.Attendance(ctx, tripID, pid)
		if err != nil {
			return nil, err
		}
		if record == nil {
			record = &models.AttendanceRecord{
				TripID:      tripID,
				PassengerID: pid,
				Status:      models.AttendancePending,
			}
		}

		target := models.AttendancePresent
		if action == MarkAbsent {
			target = models.AttendanceAbsent
		}
		if record.Status == target || (bulk && record.Status != models.AttendancePending) {
			result.Skipped++
			continue
		}

		record.Status = target
		if action == MarkBoard && record.BoardedAt == nil {
			now := e.clock.Now()
			record.BoardedAt = &now
		}
		if err := e.store.SaveAttendance(ctx, record); err != nil {
			return nil, err
		}
		result.Updated++
	}

	logrus.WithFields(logrus.Fields{
		"trip_id": tripID,
		"action":  action,
		"updated": result.Updated,
		"skipped": result.Skipped,
	}).Info("Manual attendance marking applied.")

	return result, nil
}

// AttendanceSummary is the per-trip read model of the ledger.
type AttendanceSummary struct {
	TripID        uint    `json:"trip_id"`
	TotalAssigned int     `json:"total_assigned"`
	Boarded       int     `json:"boarded"`
	Absent        int     `json:"absent"`
	Pending       int     `json:"pending"`
	Rate          float64 `json:"rate"` // boarded / total assigned
}

// TripAttendance summarizes boarding state for a trip against the
// passengers currently assigned to its bus.
func (e *Engine) TripAttendance(ctx context.Context, tripID uint) (*AttendanceSummary, error) {
	trip, err := e.store.Trip(ctx, tripID)
	if err != nil {
		return nil, ErrTripNotFound
	}
	passengers, err := e.store.PassengersByBus(ctx, trip.BusID)
	if err != nil {
		return nil, err
	}
	records, err := e.store.AttendanceForTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	summary := &AttendanceSummary{TripID: tripID, TotalAssigned: len(passengers)}
	for _, r := range records {
		switch r.Status {
		case models.AttendancePresent:
			summary.Boarded++
		case models.AttendanceAbsent:
			summary.Absent++
		}
	}
	summary.Pending = summary.TotalAssigned - summary.Boarded - summary.Absent
	if summary.Pending < 0 {
		summary.Pending = 0
	}
	if summary.TotalAssigned > 0 {
		summary.Rate = float64(summary.Boarded) / float64(summary.TotalAssigned)
	}
	return summary, nil
}
