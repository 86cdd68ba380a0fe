package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bustrack/internal/models"
)

func TestVerifyByToken(t *testing.T) {
	ctx := context.Background()

	t.Run("scan boards the passenger onto the eligible trip", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(2)
		trip := h.seedTrip(org, bus, monday)

		record, got, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		require.NoError(t, err)
		assert.Equal(t, trip.ID, got.ID)
		assert.Equal(t, passengers[0].ID, record.PassengerID)
		assert.Equal(t, models.AttendancePresent, record.Status)
		require.NotNil(t, record.BoardedAt)
		assert.Equal(t, monday, *record.BoardedAt)
		assert.True(t, h.live.has("passenger_boarded"))
	})

	t.Run("ongoing trip wins over a later scheduled one", func(t *testing.T) {
		h := newHarness()
		org, bus, _ := h.seedFleet(1)
		ongoing := h.seedTrip(org, bus, monday)
		h.store.mu.Lock()
		tr := h.store.trips[ongoing.ID]
		tr.Status = models.TripOngoing
		h.store.trips[ongoing.ID] = tr
		h.store.mu.Unlock()
		h.seedTrip(org, bus, monday.AddDate(0, 0, 1))

		_, got, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		require.NoError(t, err)
		assert.Equal(t, ongoing.ID, got.ID)
	})

	t.Run("re-scan is idempotent and keeps boardedAt", func(t *testing.T) {
		h := newHarness()
		org, bus, _ := h.seedFleet(1)
		h.seedTrip(org, bus, monday)

		first, _, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		require.NoError(t, err)

		h.clock.Set(monday.Add(10 * time.Minute))
		second, _, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		require.NoError(t, err)
		assert.Equal(t, models.AttendancePresent, second.Status)
		require.NotNil(t, second.BoardedAt)
		assert.Equal(t, *first.BoardedAt, *second.BoardedAt)
	})

	t.Run("unknown token", func(t *testing.T) {
		h := newHarness()
		h.seedFleet(1)
		_, _, err := h.eng.VerifyByToken(ctx, "qr-token-nope")
		assert.ErrorIs(t, err, ErrUnknownToken)
	})

	t.Run("passenger without a bus", func(t *testing.T) {
		h := newHarness()
		_, _, passengers := h.seedFleet(1)
		h.store.mu.Lock()
		for i := range h.store.passengers {
			if h.store.passengers[i].ID == passengers[0].ID {
				h.store.passengers[i].BusID = nil
			}
		}
		h.store.mu.Unlock()

		_, _, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		assert.ErrorIs(t, err, ErrNoEligibleTrip)
	})

	t.Run("no trip to board", func(t *testing.T) {
		h := newHarness()
		h.seedFleet(1)
		_, _, err := h.eng.VerifyByToken(ctx, "qr-token-1")
		assert.ErrorIs(t, err, ErrNoEligibleTrip)
	})
}

func TestMarkManual(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk marking only touches pending records", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(3)
		trip := h.seedTrip(org, bus, monday)
		h.markAll(trip, passengers[:1], models.AttendanceAbsent)

		ids := []uint{passengers[0].ID, passengers[1].ID, passengers[2].ID}
		result, err := h.eng.MarkManual(ctx, trip.ID, ids, MarkBoard)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Updated)
		assert.Equal(t, 1, result.Skipped)

		rec, _ := h.store.Attendance(ctx, trip.ID, passengers[0].ID)
		assert.Equal(t, models.AttendanceAbsent, rec.Status)
	})

	t.Run("single-passenger marking may override a resolved status", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(1)
		trip := h.seedTrip(org, bus, monday)
		h.markAll(trip, passengers, models.AttendanceAbsent)

		result, err := h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkBoard)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)

		rec, _ := h.store.Attendance(ctx, trip.ID, passengers[0].ID)
		assert.Equal(t, models.AttendancePresent, rec.Status)
	})

	t.Run("boardedAt is never overwritten", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(1)
		trip := h.seedTrip(org, bus, monday)

		_, err := h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkBoard)
		require.NoError(t, err)
		first, _ := h.store.Attendance(ctx, trip.ID, passengers[0].ID)
		require.NotNil(t, first.BoardedAt)

		h.clock.Set(monday.Add(20 * time.Minute))
		_, err = h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkAbsent)
		require.NoError(t, err)
		_, err = h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkBoard)
		require.NoError(t, err)

		again, _ := h.store.Attendance(ctx, trip.ID, passengers[0].ID)
		require.NotNil(t, again.BoardedAt)
		assert.Equal(t, *first.BoardedAt, *again.BoardedAt)
	})

	t.Run("marking is idempotent", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(2)
		trip := h.seedTrip(org, bus, monday)
		ids := []uint{passengers[0].ID, passengers[1].ID}

		result, err := h.eng.MarkManual(ctx, trip.ID, ids, MarkBoard)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Updated)

		result, err = h.eng.MarkManual(ctx, trip.ID, ids, MarkBoard)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 2, result.Skipped)
	})

	t.Run("completed trips are immutable", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(1)
		trip := h.seedTrip(org, bus, monday)
		h.store.mu.Lock()
		tr := h.store.trips[trip.ID]
		tr.Status = models.TripCompleted
		h.store.trips[trip.ID] = tr
		h.store.mu.Unlock()

		_, err := h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkBoard)
		assert.ErrorIs(t, err, ErrTripCompleted)
	})

	t.Run("unknown action", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(1)
		trip := h.seedTrip(org, bus, monday)

		_, err := h.eng.MarkManual(ctx, trip.ID, []uint{passengers[0].ID}, MarkAction("vanish"))
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("unknown trip", func(t *testing.T) {
		h := newHarness()
		_, err := h.eng.MarkManual(ctx, 404, []uint{1}, MarkBoard)
		assert.ErrorIs(t, err, ErrTripNotFound)
	})
}

func TestTripAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes the ledger against assigned passengers", func(t *testing.T) {
		h := newHarness()
		org, bus, passengers := h.seedFleet(4)
		trip := h.seedTrip(org, bus, monday)
		h.markAll(trip, passengers[:2], models.AttendancePresent)
		h.markAll(trip, passengers[2:3], models.AttendanceAbsent)

		summary, err := h.eng.TripAttendance(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, summary.TotalAssigned)
		assert.Equal(t, 2, summary.Boarded)
		assert.Equal(t, 1, summary.Absent)
		assert.Equal(t, 1, summary.Pending)
		assert.Equal(t, 0.5, summary.Rate)
	})

	t.Run("empty bus yields a zero rate", func(t *testing.T) {
		h := newHarness()
		org, bus, _ := h.seedFleet(0)
		trip := h.seedTrip(org, bus, monday)

		summary, err := h.eng.TripAttendance(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.TotalAssigned)
		assert.Equal(t, 0.0, summary.Rate)
	})
}
