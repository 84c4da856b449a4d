package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// FlightPlanRepository handles database operations for filed flight plans.
type FlightPlanRepository struct {
	db *DB
}

// NewFlightPlanRepository creates a new flight plan repository.
func NewFlightPlanRepository(db *DB) *FlightPlanRepository {
	return &FlightPlanRepository{db: db}
}

// FlightPlan is one revision of a filed flight plan.
type FlightPlan struct {
	ID                  int64     `json:"id"`
	CID                 int64     `json:"cid"`
	Callsign            string    `json:"callsign"`
	RevisionID          int       `json:"revision_id"`
	FlightRules         string    `json:"flight_rules"`
	Aircraft            string    `json:"aircraft"`
	AircraftShort       string    `json:"aircraft_short"`
	Departure           string    `json:"departure"`
	Arrival             string    `json:"arrival"`
	Alternate           string    `json:"alternate"`
	CruiseTAS           string    `json:"cruise_tas"`
	Altitude            string    `json:"altitude"`
	DepTime             string    `json:"deptime"`
	EnrouteTime         string    `json:"enroute_time"`
	FuelTime            string    `json:"fuel_time"`
	Remarks             string    `json:"remarks"`
	Route               string    `json:"route"`
	AssignedTransponder string    `json:"assigned_transponder"`
	FirstSeen           time.Time `json:"first_seen"`
	LastUpdated         time.Time `json:"last_updated"`
}

// flightPlanFromPilot copies the filed plan of p. ok is false when p has
// not filed.
func flightPlanFromPilot(p vatsim.Pilot) (fp FlightPlan, ok bool) {
	if p.FlightPlan == nil {
		return FlightPlan{}, false
	}
	plan := p.FlightPlan
	return FlightPlan{
		CID:                 p.CID,
		Callsign:            p.Callsign,
		RevisionID:          plan.RevisionID,
		FlightRules:         plan.FlightRules,
		Aircraft:            plan.Aircraft,
		AircraftShort:       plan.AircraftShort,
		Departure:           plan.Departure,
		Arrival:             plan.Arrival,
		Alternate:           plan.Alternate,
		CruiseTAS:           plan.CruiseTAS,
		Altitude:            plan.Altitude,
		DepTime:             plan.DepTime,
		EnrouteTime:         plan.EnrouteTime,
		FuelTime:            plan.FuelTime,
		Remarks:             plan.Remarks,
		Route:               plan.Route,
		AssignedTransponder: plan.AssignedTransponder,
	}, true
}

// SaveFlightPlan stores the flight plan filed by p, one row per revision.
// Pilots without a flight plan are skipped.
func (r *FlightPlanRepository) SaveFlightPlan(ctx context.Context, p vatsim.Pilot, now time.Time) error {
	fp, ok := flightPlanFromPilot(p)
	if !ok {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flight_plans (
			cid, callsign, revision_id, flight_rules, aircraft, aircraft_short,
			departure, arrival, alternate, cruise_tas, altitude, deptime,
			enroute_time, fuel_time, remarks, route, assigned_transponder,
			first_seen, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		ON CONFLICT (cid, callsign, revision_id) DO UPDATE SET
			assigned_transponder = EXCLUDED.assigned_transponder,
			last_updated = EXCLUDED.last_updated`,
		fp.CID, fp.Callsign, fp.RevisionID, fp.FlightRules, fp.Aircraft, fp.AircraftShort,
		fp.Departure, fp.Arrival, fp.Alternate, fp.CruiseTAS, fp.Altitude, fp.DepTime,
		fp.EnrouteTime, fp.FuelTime, fp.Remarks, fp.Route, fp.AssignedTransponder,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save flight plan: %w", err)
	}
	return nil
}

// GetLatestFlightPlan returns the most recent revision filed under
// callsign. Returns nil if none exists.
func (r *FlightPlanRepository) GetLatestFlightPlan(ctx context.Context, callsign string) (*FlightPlan, error) {
	var fp FlightPlan
	err := r.db.QueryRowContext(ctx,
		`SELECT id, cid, callsign, revision_id, flight_rules, aircraft, aircraft_short,
		        departure, arrival, alternate, cruise_tas, altitude, deptime,
		        enroute_time, fuel_time, remarks, route, assigned_transponder,
		        first_seen, last_updated
		 FROM flight_plans
		 WHERE callsign = $1
		 ORDER BY last_updated DESC, revision_id DESC
		 LIMIT 1`,
		callsign,
	).Scan(
		&fp.ID, &fp.CID, &fp.Callsign, &fp.RevisionID, &fp.FlightRules, &fp.Aircraft, &fp.AircraftShort,
		&fp.Departure, &fp.Arrival, &fp.Alternate, &fp.CruiseTAS, &fp.Altitude, &fp.DepTime,
		&fp.EnrouteTime, &fp.FuelTime, &fp.Remarks, &fp.Route, &fp.AssignedTransponder,
		&fp.FirstSeen, &fp.LastUpdated,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight plan: %w", err)
	}

	return &fp, nil
}
