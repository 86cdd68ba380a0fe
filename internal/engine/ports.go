package engine

import (
	"context"
	"time"

	"bustrack/internal/models"
	"bustrack/internal/routing"
)

// Store is the persistence boundary the engine drives. Lookups return
// ErrNotFound (wrapped or bare) when the row does not exist; the
// "ForBus"/"ForDriver" single-row queries return (nil, nil) when there is
// no match, since absence is a normal answer there.
type Store interface {
	Organization(ctx context.Context, id uint) (*models.Organization, error)
	Bus(ctx context.Context, id uint) (*models.Bus, error)
	PassengersByBus(ctx context.Context, busID uint) ([]models.Passenger, error)
	PassengerByToken(ctx context.Context, token string) (*models.Passenger, error)

	// CreateScheduleGraph commits route, schedule and seed trips in one
	// transaction, wiring the generated route id into the schedule and
	// the schedule/route ids into every trip.
	CreateScheduleGraph(ctx context.Context, route *models.Route, schedule *models.Schedule, trips []models.Trip) error
	Schedule(ctx context.Context, id uint) (*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	DeleteSchedule(ctx context.Context, id uint) error

	Trip(ctx context.Context, id uint) (*models.Trip, error)
	SaveTrip(ctx context.Context, trip *models.Trip) error
	CreateTrips(ctx context.Context, trips []models.Trip) error
	TripsForScheduleBetween(ctx context.Context, scheduleID uint, from, to time.Time) ([]models.Trip, error)
	OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error)
	OngoingTripForDriver(ctx context.Context, driverID uint) (*models.Trip, error)
	// EligibleTripForBus returns the bus's ONGOING trip if one exists,
	// otherwise its next SCHEDULED trip, otherwise nil.
	EligibleTripForBus(ctx context.Context, busID uint) (*models.Trip, error)

	Route(ctx context.Context, id uint) (*models.Route, error)

	Attendance(ctx context.Context, tripID, passengerID uint) (*models.AttendanceRecord, error)
	SaveAttendance(ctx context.Context, record *models.AttendanceRecord) error
	AttendanceForTrip(ctx context.Context, tripID uint) ([]models.AttendanceRecord, error)

	User(ctx context.Context, id uint) (*models.User, error)
	UsersByRole(ctx context.Context, orgID uint, roles ...string) ([]models.User, error)

	AppendLocation(ctx context.Context, loc *models.LocationHistory) error
	LastLocationForTrip(ctx context.Context, tripID uint) (*models.LocationHistory, error)
	UpdateTripPosition(ctx context.Context, tripID uint, lat, lng float64) error
}

// Planner is the geospatial routing service boundary. Both calls may fail
// or time out; every engine call site has a documented fallback.
type Planner interface {
	Optimize(ctx context.Context, origin *routing.LatLng, waypoints []routing.LatLng, destination *routing.LatLng) (*routing.Plan, error)
	RouteMetrics(ctx context.Context, origin routing.LatLng, waypoints []routing.LatLng, destination routing.LatLng) (*routing.Metrics, error)
}

// Message is one notification to one recipient.
type Message struct {
	Type     string
	Title    string
	Body     string
	Metadata map[string]any
	Priority bool
}

// Notifier delivers a message to a single user inbox.
type Notifier interface {
	SendToUser(ctx context.Context, userID uint, msg Message) error
}

// LivePublisher streams best-effort events to connected viewers. No
// delivery guarantee; implementations must not block.
type LivePublisher interface {
	Publish(orgID uint, event string, payload map[string]any)
}

// Clock abstracts "now" so window materialization and lifecycle
// timestamps are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
