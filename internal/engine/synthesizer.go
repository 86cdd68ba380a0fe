package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"bustrack/internal/models"
	"bustrack/internal/routing"
)

// SynthesizeRoute builds the ordered stop list for a bus from its assigned
// passengers and the organization depot: depot origin (when coordinates are
// known), passenger stops in planner-optimized visiting order with
// estimated times derived from cumulative leg durations, then the depot
// return. A planner failure degrades to the passengers' natural order with
// every estimated time set to the departure time; that path never raises
// to the caller. Callers guarantee at least one passenger.
func (e *Engine) SynthesizeRoute(ctx context.Context, org *models.Organization, bus *models.Bus, passengers []models.Passenger, departure, returnTime string) *models.Route {
	route := &models.Route{
		Name:           fmt.Sprintf("Bus %s route", bus.BusNo),
		BusID:          bus.ID,
		OrganizationID: org.ID,
	}

	var origin, destination *routing.LatLng
	if org.HasDepot {
		origin = &routing.LatLng{Lat: org.DepotLat, Lng: org.DepotLng}
		destination = &routing.LatLng{Lat: org.DepotLat, Lng: org.DepotLng}
	}

	waypoints := make([]routing.LatLng, len(passengers))
	for i, p := range passengers {
		waypoints[i] = routing.LatLng{Lat: p.HomeLat, Lng: p.HomeLng}
	}

	plannerCtx, cancel := context.WithTimeout(ctx, e.plannerTimeout)
	defer cancel()
	plan, err := e.planner.Optimize(plannerCtx, origin, waypoints, destination)
	if err != nil || plan == nil || len(plan.Order) != len(passengers) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bus_id":     bus.ID,
			"passengers": len(passengers),
		}).Warn("Route optimization unavailable, falling back to natural passenger order.")
		route.Stops = naturalOrderStops(org, passengers, departure, returnTime)
	} else {
		route.Stops = optimizedStops(org, passengers, plan, departure, returnTime)
	}

	route.Geometry = stopsLineString(route.Stops)
	return route
}

// optimizedStops lays out stops in the plan's visiting order, deriving each
// estimated time by adding cumulative leg durations to the departure time.
func optimizedStops(org *models.Organization, passengers []models.Passenger, plan *routing.Plan, departure, returnTime string) []models.Stop {
	stops := make([]models.Stop, 0, len(passengers)+2)
	seq := 0

	if org.HasDepot {
		stops = append(stops, depotStop(org, seq, departure))
		seq++
	}

	elapsed := time.Duration(0)
	for k, idx := range plan.Order {
		if k < len(plan.Legs) {
			elapsed += time.Duration(plan.Legs[k].DurationS * float64(time.Second))
		}
		p := passengers[idx]
		stops = append(stops, models.Stop{
			Name:          p.Name,
			Seq:           seq,
			Address:       p.HomeAddress,
			Lat:           p.HomeLat,
			Lng:           p.HomeLng,
			EstimatedTime: offsetTimeOfDay(departure, elapsed),
			PassengerID:   ptrUint(p.ID),
		})
		seq++
	}

	if org.HasDepot {
		stops = append(stops, depotReturnStop(org, seq, returnTime))
	}
	return stops
}

// naturalOrderStops is the degraded layout used when the planner fails:
// passenger database order, every estimated time equal to departure.
func naturalOrderStops(org *models.Organization, passengers []models.Passenger, departure, returnTime string) []models.Stop {
	stops := make([]models.Stop, 0, len(passengers)+2)
	seq := 0

	if org.HasDepot {
		stops = append(stops, depotStop(org, seq, departure))
		seq++
	}
	for _, p := range passengers {
		stops = append(stops, models.Stop{
			Name:          p.Name,
			Seq:           seq,
			Address:       p.HomeAddress,
			Lat:           p.HomeLat,
			Lng:           p.HomeLng,
			EstimatedTime: departure,
			PassengerID:   ptrUint(p.ID),
		})
		seq++
	}
	if org.HasDepot {
		stops = append(stops, depotReturnStop(org, seq, returnTime))
	}
	return stops
}

func depotStop(org *models.Organization, seq int, tod string) models.Stop {
	return models.Stop{
		Name:          "Depot",
		Seq:           seq,
		Address:       org.DepotAddress,
		Lat:           org.DepotLat,
		Lng:           org.DepotLng,
		EstimatedTime: tod,
	}
}

func depotReturnStop(org *models.Organization, seq int, tod string) models.Stop {
	s := depotStop(org, seq, tod)
	s.Name = "Depot (return)"
	return s
}

// offsetTimeOfDay shifts an HH:MM time-of-day forward by d, wrapping
// within the day.
func offsetTimeOfDay(hhmm string, d time.Duration) string {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return tod.Add(d).Format("15:04")
}

// stopsLineString renders the stop sequence as a WKB LINESTRING for the
// route's geometry column. Fewer than two stops yields no geometry.
func stopsLineString(stops []models.Stop) []byte {
	if len(stops) < 2 {
		return nil
	}
	coords := make([]geom.Coord, len(stops))
	for i, s := range stops {
		coords[i] = geom.Coord{s.Lng, s.Lat}
	}
	ls := geom.NewLineString(geom.XY).MustSetCoords(coords)
	ls.SetSRID(4326)
	raw, err := wkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode route geometry.")
		return nil
	}
	return raw
}

func ptrUint(v uint) *uint { return &v }
