package engine

import (
	"sync"
	"time"
)

const (
	// materializeWindowDays bounds how far ahead a recurring schedule is
	// committed to concrete trips.
	materializeWindowDays = 7

	// defaultPlannerTimeout caps every routing-service call so lifecycle
	// transitions are never blocked on the external dependency.
	defaultPlannerTimeout = 5 * time.Second

	// defaultFanoutWorkers bounds concurrent notification sends.
	defaultFanoutWorkers = 8

	// defaultETAMinutes is reported to guardians when the planner cannot
	// produce a per-passenger estimate at trip start.
	defaultETAMinutes = 15.0

	// longTripThreshold flags (but does not reject) anomalously long trips.
	longTripThreshold = 8 * time.Hour
)

// Fallback position seeded onto a starting trip when the organization has
// no depot coordinates: Nairobi CBD.
const (
	fallbackDepotLat = -1.2921
	fallbackDepotLng = 36.8219
)

// Config tunes engine timeouts and bounds; zero values take defaults.
type Config struct {
	PlannerTimeout time.Duration
	FanoutWorkers  int
	Clock          Clock
}

// Engine wires the six orchestration components over narrow ports. All
// exported methods are safe for concurrent use; different buses and trips
// proceed independently, with the only cross-request lock being the
// per-bus exclusion taken during Start.
type Engine struct {
	store    Store
	planner  Planner
	notifier Notifier
	live     LivePublisher
	clock    Clock

	plannerTimeout time.Duration
	fanoutWorkers  int

	busMu    sync.Mutex
	busLocks map[uint]*sync.Mutex
}

func New(store Store, planner Planner, notifier Notifier, live LivePublisher, cfg Config) *Engine {
	if cfg.PlannerTimeout <= 0 {
		cfg.PlannerTimeout = defaultPlannerTimeout
	}
	if cfg.FanoutWorkers <= 0 {
		cfg.FanoutWorkers = defaultFanoutWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return &Engine{
		store:          store,
		planner:        planner,
		notifier:       notifier,
		live:           live,
		clock:          cfg.Clock,
		plannerTimeout: cfg.PlannerTimeout,
		fanoutWorkers:  cfg.FanoutWorkers,
		busLocks:       make(map[uint]*sync.Mutex),
	}
}

// busLock returns the mutex guarding Start for one bus, creating it on
// first use.
func (e *Engine) busLock(busID uint) *sync.Mutex {
	e.busMu.Lock()
	defer e.busMu.Unlock()
	if l, ok := e.busLocks[busID]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.busLocks[busID] = l
	return l
}
