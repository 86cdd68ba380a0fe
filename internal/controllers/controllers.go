package controllers

import (
	"errors"
	"net/http"

	"bustrack/internal/engine"
	"bustrack/internal/ws"
)

var (
	eng *engine.Engine
	hub *ws.Hub
)

// Init wires the controller package to the engine and the live hub.
// Called once from main before route registration.
func Init(e *engine.Engine, h *ws.Hub) {
	eng = e
	hub = h
}

// statusFor maps engine errors to HTTP status codes following the error
// taxonomy: validation 400/422, preconditions 409, lookups 404.
func statusFor(err error) int {
	var boarding *engine.BoardingIncompleteError
	switch {
	case errors.As(err, &boarding),
		errors.Is(err, engine.ErrTripNotScheduled),
		errors.Is(err, engine.ErrTripNotOngoing),
		errors.Is(err, engine.ErrTripCompleted),
		errors.Is(err, engine.ErrBusAlreadyOnTrip):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, engine.ErrUnknownToken),
		errors.Is(err, engine.ErrNoEligibleTrip):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidDuration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNoDriverAssigned),
		errors.Is(err, engine.ErrNoPassengersAssigned),
		errors.Is(err, engine.ErrInvalidRecurrence),
		errors.Is(err, engine.ErrInvalidDate),
		errors.Is(err, engine.ErrInvalidTime),
		errors.Is(err, engine.ErrInvalidAudience),
		errors.Is(err, engine.ErrInvalidAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
