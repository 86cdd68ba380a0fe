package store

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"bustrack/internal/engine"
	"bustrack/internal/models"
)

// Store is the GORM-backed implementation of engine.Store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// notFound maps GORM's sentinel to the engine's.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrNotFound
	}
	return err
}

// isDuplicate reports a unique-constraint violation, checking both GORM's
// translated sentinel and the raw Postgres error code.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) Organization(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func (s *Store) Bus(ctx context.Context, id uint) (*models.Bus, error) {
	var bus models.Bus
	if err := s.db.WithContext(ctx).First(&bus, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &bus, nil
}

func (s *Store) PassengersByBus(ctx context.Context, busID uint) ([]models.Passenger, error) {
	var passengers []models.Passenger
	err := s.db.WithContext(ctx).
		Where("bus_id = ?", busID).
		Order("id asc").
		Find(&passengers).Error
	return passengers, err
}

func (s *Store) PassengerByToken(ctx context.Context, token string) (*models.Passenger, error) {
	var passenger models.Passenger
	if err := s.db.WithContext(ctx).Where("qr_token = ?", token).First(&passenger).Error; err != nil {
		return nil, notFound(err)
	}
	return &passenger, nil
}

// CreateScheduleGraph commits route, stops, schedule and seed trips in a
// single transaction: either all rows land or none do.
func (s *Store) CreateScheduleGraph(ctx context.Context, route *models.Route, schedule *models.Schedule, trips []models.Trip) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(route).Error; err != nil {
			return err
		}
		schedule.RouteID = route.ID
		if err := tx.Create(schedule).Error; err != nil {
			return err
		}
		for i := range trips {
			trips[i].ScheduleID = schedule.ID
			trips[i].RouteID = route.ID
		}
		if len(trips) > 0 {
			if err := tx.Create(&trips).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Schedule(ctx context.Context, id uint) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := s.db.WithContext(ctx).Preload("Route.Stops").First(&schedule, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &schedule, nil
}

func (s *Store) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	return s.db.WithContext(ctx).Save(schedule).Error
}

func (s *Store) DeleteSchedule(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Schedule{}, id).Error
}

func (s *Store) Trip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := s.db.WithContext(ctx).First(&trip, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &trip, nil
}

func (s *Store) SaveTrip(ctx context.Context, trip *models.Trip) error {
	return s.db.WithContext(ctx).Save(trip).Error
}

func (s *Store) CreateTrips(ctx context.Context, trips []models.Trip) error {
	if len(trips) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&trips).Error
}

func (s *Store) TripsForScheduleBetween(ctx context.Context, scheduleID uint, from, to time.Time) ([]models.Trip, error) {
	var trips []models.Trip
	err := s.db.WithContext(ctx).
		Where("schedule_id = ? AND scheduled_start >= ? AND scheduled_start < ?", scheduleID, from, to).
		Order("scheduled_start asc").
		Find(&trips).Error
	return trips, err
}

func (s *Store) OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	return s.firstTrip(ctx, "bus_id = ? AND status = ?", busID, models.TripOngoing)
}

func (s *Store) OngoingTripForDriver(ctx context.Context, driverID uint) (*models.Trip, error) {
	return s.firstTrip(ctx, "driver_id = ? AND status = ?", driverID, models.TripOngoing)
}

// EligibleTripForBus prefers the ONGOING trip, then the next SCHEDULED one.
func (s *Store) EligibleTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	trip, err := s.OngoingTripForBus(ctx, busID)
	if err != nil || trip != nil {
		return trip, err
	}
	var next models.Trip
	err = s.db.WithContext(ctx).
		Where("bus_id = ? AND status = ?", busID, models.TripScheduled).
		Order("scheduled_start asc").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Store) firstTrip(ctx context.Context, query string, args ...any) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.WithContext(ctx).Where(query, args...).First(&trip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (s *Store) Route(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		First(&route, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &route, nil
}

func (s *Store) Attendance(ctx context.Context, tripID, passengerID uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("trip_id = ? AND passenger_id = ?", tripID, passengerID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveAttendance upserts the (trip, passenger) record. A concurrent lazy
// creation of the same pair trips the unique index; the loser re-fetches
// and applies its update to the winner's row.
func (s *Store) SaveAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	err := s.db.WithContext(ctx).Save(record).Error
	if err == nil || !isDuplicate(err) {
		return err
	}
	existing, ferr := s.Attendance(ctx, record.TripID, record.PassengerID)
	if ferr != nil || existing == nil {
		return err
	}
	existing.Status = record.Status
	if existing.BoardedAt == nil {
		existing.BoardedAt = record.BoardedAt
	}
	existing.DroppedAt = record.DroppedAt
	*record = *existing
	return s.db.WithContext(ctx).Save(record).Error
}

func (s *Store) AttendanceForTrip(ctx context.Context, tripID uint) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := s.db.WithContext(ctx).Where("trip_id = ?", tripID).Find(&records).Error
	return records, err
}

func (s *Store) User(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) UsersByRole(ctx context.Context, orgID uint, roles ...string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND role IN ?", orgID, roles).
		Find(&users).Error
	return users, err
}

func (s *Store) AppendLocation(ctx context.Context, loc *models.LocationHistory) error {
	return s.db.WithContext(ctx).Create(loc).Error
}

func (s *Store) LastLocationForTrip(ctx context.Context, tripID uint) (*models.LocationHistory, error) {
	var last models.LocationHistory
	err := s.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("created_at desc").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

func (s *Store) UpdateTripPosition(ctx context.Context, tripID uint, lat, lng float64) error {
	return s.db.WithContext(ctx).
		Model(&models.Trip{}).
		Where("id = ?", tripID).
		Updates(map[string]any{"current_lat": lat, "current_lng": lng}).Error
}
