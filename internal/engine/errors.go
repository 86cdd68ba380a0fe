package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors: rejected synchronously, no side effects.
var (
	ErrNoDriverAssigned     = errors.New("no driver assigned to schedule or bus")
	ErrNoPassengersAssigned = errors.New("bus has no assigned passengers")
	ErrInvalidRecurrence    = errors.New("recurrence must be a non-empty weekday set or a one-time date")
	ErrInvalidDate          = errors.New("date must not be in the past")
	ErrInvalidTime          = errors.New("time-of-day must be in HH:MM format")
	ErrInvalidAudience      = errors.New("audience must be ALL, DRIVERS or PARENTS")
	ErrInvalidAction        = errors.New("attendance action must be board or absent")
)

// Precondition errors: rejected synchronously, caller-visible reason.
var (
	ErrTripNotScheduled = errors.New("trip is not in SCHEDULED state")
	ErrTripNotOngoing   = errors.New("trip is not in ONGOING state")
	ErrTripCompleted    = errors.New("trip is already COMPLETED")
	ErrBusAlreadyOnTrip = errors.New("another trip for this bus is already ongoing")
)

// Integrity errors.
var ErrInvalidDuration = errors.New("trip end time precedes its start time")

// Lookup failures.
var (
	ErrNotFound       = errors.New("record not found")
	ErrTripNotFound   = fmt.Errorf("trip: %w", ErrNotFound)
	ErrUnknownToken   = errors.New("unknown attendance token")
	ErrNoEligibleTrip = errors.New("no eligible trip for passenger")
)

// BoardingIncompleteError rejects a trip start while any assigned
// passenger still has a missing or PENDING attendance record. Pending
// holds the names of those passengers.
type BoardingIncompleteError struct {
	Pending []string
}

func (e *BoardingIncompleteError) Error() string {
	return "boarding incomplete, still pending: " + strings.Join(e.Pending, ", ")
}
