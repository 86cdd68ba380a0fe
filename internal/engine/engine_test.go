package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bustrack/internal/models"
	"bustrack/internal/routing"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakePlanner is a scriptable Planner. With fail set every call errors,
// exercising the degraded paths.
type fakePlanner struct {
	mu            sync.Mutex
	fail          bool
	optimizeCalls int
	metricsCalls  int
}

var errPlannerDown = errors.New("routing service unavailable")

func (p *fakePlanner) Optimize(ctx context.Context, origin *routing.LatLng, waypoints []routing.LatLng, destination *routing.LatLng) (*routing.Plan, error) {
	p.mu.Lock()
	p.optimizeCalls++
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return nil, errPlannerDown
	}
	// Visit waypoints in reverse submission order so optimized output is
	// distinguishable from the natural-order fallback.
	plan := &routing.Plan{}
	for i := len(waypoints) - 1; i >= 0; i-- {
		plan.Order = append(plan.Order, i)
		plan.Legs = append(plan.Legs, routing.Leg{DistanceM: 1000, DurationS: 300})
	}
	if destination != nil {
		plan.Legs = append(plan.Legs, routing.Leg{DistanceM: 1000, DurationS: 300})
	}
	return plan, nil
}

func (p *fakePlanner) RouteMetrics(ctx context.Context, origin routing.LatLng, waypoints []routing.LatLng, destination routing.LatLng) (*routing.Metrics, error) {
	p.mu.Lock()
	p.metricsCalls++
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return nil, errPlannerDown
	}
	return &routing.Metrics{DistanceKm: 12.5, DurationMinutes: 30}, nil
}

// fakeNotifier records deliveries and can be told to fail for specific
// recipients.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[uint][]Message
	failFor map[uint]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[uint][]Message), failFor: make(map[uint]bool)}
}

func (n *fakeNotifier) SendToUser(ctx context.Context, userID uint, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[userID] {
		return fmt.Errorf("inbox %d unreachable", userID)
	}
	n.sent[userID] = append(n.sent[userID], msg)
	return nil
}

func (n *fakeNotifier) sentTo(userID uint) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent[userID]...)
}

// fakeLive records published live events.
type fakeLive struct {
	mu     sync.Mutex
	events []string
}

func (l *fakeLive) Publish(orgID uint, event string, payload map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *fakeLive) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

// memStore is an in-memory Store. Lookups hand out copies so callers see
// committed state, mirroring a real database.
type memStore struct {
	mu         sync.Mutex
	nextID     uint
	orgs       map[uint]models.Organization
	buses      map[uint]models.Bus
	passengers []models.Passenger
	schedules  map[uint]models.Schedule
	routes     map[uint]models.Route
	trips      map[uint]models.Trip
	attendance map[string]models.AttendanceRecord
	users      map[uint]models.User
	locations  []models.LocationHistory
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		orgs:       make(map[uint]models.Organization),
		buses:      make(map[uint]models.Bus),
		schedules:  make(map[uint]models.Schedule),
		routes:     make(map[uint]models.Route),
		trips:      make(map[uint]models.Trip),
		attendance: make(map[string]models.AttendanceRecord),
		users:      make(map[uint]models.User),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func attKey(tripID, passengerID uint) string {
	return fmt.Sprintf("%d:%d", tripID, passengerID)
}

func (s *memStore) Organization(ctx context.Context, id uint) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (s *memStore) Bus(ctx context.Context, id uint) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bus, ok := s.buses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &bus, nil
}

func (s *memStore) PassengersByBus(ctx context.Context, busID uint) ([]models.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Passenger
	for _, p := range s.passengers {
		if p.BusID != nil && *p.BusID == busID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) PassengerByToken(ctx context.Context, token string) (*models.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.passengers {
		if p.QRToken == token {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) CreateScheduleGraph(ctx context.Context, route *models.Route, schedule *models.Schedule, trips []models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	route.ID = s.id()
	for i := range route.Stops {
		route.Stops[i].ID = s.id()
		route.Stops[i].RouteID = route.ID
	}
	s.routes[route.ID] = *route

	schedule.ID = s.id()
	schedule.RouteID = route.ID
	s.schedules[schedule.ID] = *schedule

	for i := range trips {
		trips[i].ID = s.id()
		trips[i].ScheduleID = schedule.ID
		trips[i].RouteID = route.ID
		s.trips[trips[i].ID] = trips[i]
	}
	return nil
}

func (s *memStore) Schedule(ctx context.Context, id uint) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	if route, ok := s.routes[sched.RouteID]; ok {
		sched.Route = route
	}
	return &sched, nil
}

func (s *memStore) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.ID] = *schedule
	return nil
}

func (s *memStore) DeleteSchedule(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
	return nil
}

func (s *memStore) Trip(ctx context.Context, id uint) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &trip, nil
}

func (s *memStore) SaveTrip(ctx context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trip.ID == 0 {
		trip.ID = s.id()
	}
	s.trips[trip.ID] = *trip
	return nil
}

func (s *memStore) CreateTrips(ctx context.Context, trips []models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range trips {
		trips[i].ID = s.id()
		s.trips[trips[i].ID] = trips[i]
	}
	return nil
}

func (s *memStore) TripsForScheduleBetween(ctx context.Context, scheduleID uint, from, to time.Time) ([]models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trip
	for _, t := range s.trips {
		if t.ScheduleID == scheduleID && !t.ScheduledStart.Before(from) && t.ScheduledStart.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trips {
		if t.BusID == busID && t.Status == models.TripOngoing {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) OngoingTripForDriver(ctx context.Context, driverID uint) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trips {
		if t.DriverID == driverID && t.Status == models.TripOngoing {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) EligibleTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	if ongoing, err := s.OngoingTripForBus(ctx, busID); err != nil || ongoing != nil {
		return ongoing, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Trip
	for _, t := range s.trips {
		if t.BusID != busID || t.Status != models.TripScheduled {
			continue
		}
		cp := t
		if best == nil || cp.ScheduledStart.Before(best.ScheduledStart) {
			best = &cp
		}
	}
	return best, nil
}

func (s *memStore) Route(ctx context.Context, id uint) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &route, nil
}

func (s *memStore) Attendance(ctx context.Context, tripID, passengerID uint) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attendance[attKey(tripID, passengerID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) SaveAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == 0 {
		record.ID = s.id()
	}
	s.attendance[attKey(record.TripID, record.PassengerID)] = *record
	return nil
}

func (s *memStore) AttendanceForTrip(ctx context.Context, tripID uint) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AttendanceRecord
	for _, rec := range s.attendance {
		if rec.TripID == tripID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) User(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memStore) UsersByRole(ctx context.Context, orgID uint, roles ...string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.OrganizationID != orgID {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) AppendLocation(ctx context.Context, loc *models.LocationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc.ID = s.id()
	s.locations = append(s.locations, *loc)
	return nil
}

func (s *memStore) LastLocationForTrip(ctx context.Context, tripID uint) (*models.LocationHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.locations) - 1; i >= 0; i-- {
		if s.locations[i].TripID == tripID {
			cp := s.locations[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateTripPosition(ctx context.Context, tripID uint, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	trip.CurrentLat = &lat
	trip.CurrentLng = &lng
	s.trips[tripID] = trip
	return nil
}

// testHarness bundles the engine with its fakes.
type testHarness struct {
	eng      *Engine
	store    *memStore
	planner  *fakePlanner
	notifier *fakeNotifier
	live     *fakeLive
	clock    *fakeClock
}

// monday is the fixed test anchor: Monday 2026-03-02 07:00 local.
var monday = time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)

func newHarness() *testHarness {
	h := &testHarness{
		store:    newMemStore(),
		planner:  &fakePlanner{},
		notifier: newFakeNotifier(),
		live:     &fakeLive{},
		clock:    newFakeClock(monday),
	}
	h.eng = New(h.store, h.planner, h.notifier, h.live, Config{Clock: h.clock})
	return h
}

// seedFleet creates an org with a depot, one bus with a driver, and n
// passengers each with their own guardian user. Returns org, bus and the
// passengers.
func (h *testHarness) seedFleet(n int) (models.Organization, models.Bus, []models.Passenger) {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	org := models.Organization{
		Name:         "Greenfield Academy",
		HasDepot:     true,
		DepotLat:     -1.30,
		DepotLng:     36.80,
		DepotAddress: "Greenfield Depot",
	}
	org.ID = s.id()
	s.orgs[org.ID] = org

	admin := models.User{Name: "Head Admin", Role: "admin", OrganizationID: org.ID}
	admin.ID = s.id()
	s.users[admin.ID] = admin

	driverUser := models.User{Name: "Driver Dan", Role: "driver", OrganizationID: org.ID}
	driverUser.ID = s.id()
	s.users[driverUser.ID] = driverUser
	driverID := driverUser.ID

	bus := models.Bus{BusNo: "B01", Capacity: 30, OrganizationID: org.ID, DriverID: &driverID, InService: true}
	bus.ID = s.id()
	s.buses[bus.ID] = bus

	passengers := make([]models.Passenger, 0, n)
	for i := 0; i < n; i++ {
		guardian := models.User{
			Name:           fmt.Sprintf("Guardian %d", i+1),
			Role:           "parent",
			OrganizationID: org.ID,
		}
		guardian.ID = s.id()
		s.users[guardian.ID] = guardian

		busID := bus.ID
		p := models.Passenger{
			Name:           fmt.Sprintf("Passenger %d", i+1),
			HomeLat:        -1.30 + float64(i+1)*0.01,
			HomeLng:        36.80 + float64(i+1)*0.01,
			OrganizationID: org.ID,
			BusID:          &busID,
			GuardianID:     guardian.ID,
			QRToken:        fmt.Sprintf("qr-token-%d", i+1),
		}
		p.ID = s.id()
		s.passengers = append(s.passengers, p)
		passengers = append(passengers, p)
	}

	return org, bus, passengers
}

// seedTrip creates one SCHEDULED trip for the bus.
func (h *testHarness) seedTrip(org models.Organization, bus models.Bus, start time.Time) models.Trip {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	trip := models.Trip{
		OrganizationID: org.ID,
		BusID:          bus.ID,
		DriverID:       derefUint(bus.DriverID),
		Status:         models.TripScheduled,
		ScheduledStart: start,
	}
	trip.ID = s.id()
	s.trips[trip.ID] = trip
	return trip
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}

// markAll sets every passenger's attendance for the trip.
func (h *testHarness) markAll(trip models.Trip, passengers []models.Passenger, status models.AttendanceStatus) {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range passengers {
		rec := models.AttendanceRecord{TripID: trip.ID, PassengerID: p.ID, Status: status}
		rec.ID = s.id()
		s.attendance[attKey(trip.ID, p.ID)] = rec
	}
}
