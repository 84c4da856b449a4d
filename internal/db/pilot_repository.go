package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// PilotRepository handles database operations for connected pilots.
type PilotRepository struct {
	db       *DB
	airports []geo.Point
}

// NewPilotRepository creates a new pilot repository. airports are the
// reference points used for nearest-airport matching.
func NewPilotRepository(db *DB, airports []geo.Point) *PilotRepository {
	return &PilotRepository{
		db:       db,
		airports: airports,
	}
}

// Pilot is the stored state of a pilot.
type Pilot struct {
	Callsign       string    `json:"callsign"`
	CID            int64     `json:"cid"`
	Name           string    `json:"name"`
	Server         string    `json:"server"`
	PilotRating    int       `json:"pilot_rating"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AltitudeFt     int       `json:"altitude_ft"`
	GroundspeedKts int       `json:"groundspeed_kts"`
	HeadingDeg     int       `json:"heading_deg"`
	Transponder    string    `json:"transponder"`
	QNHMb          int       `json:"qnh_mb"`
	COM1Hz         uint64    `json:"com1_hz,omitempty"`
	NearestAirport string    `json:"nearest_airport,omitempty"`
	NearestMiles   float64   `json:"nearest_miles,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	PositionCount  int       `json:"position_count"`
	IsOnline       bool      `json:"is_online"`
}

// Position is one row of a pilot's position history.
type Position struct {
	Timestamp        time.Time `json:"timestamp"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	AltitudeFt       int       `json:"altitude_ft"`
	GroundspeedKts   int       `json:"groundspeed_kts"`
	HeadingDeg       int       `json:"heading_deg"`
	DeltaTimeSeconds float64   `json:"delta_time_seconds,omitempty"`
	DeltaMiles       float64   `json:"delta_miles,omitempty"`
}

// Filter narrows ListPilots.
type Filter struct {
	// IncludeOffline also returns pilots no longer in the feed
	IncludeOffline bool

	// Center and RadiusMiles restrict results to a circle; ignored when
	// RadiusMiles is 0
	Center      geo.Point
	RadiusMiles float64

	// Limit caps the number of rows (0 = no limit)
	Limit int
}

// pilotPosition is the previous stored position used for deltas.
type pilotPosition struct {
	Latitude       float64
	Longitude      float64
	AltitudeFt     int
	GroundspeedKts int
	Timestamp      time.Time
}

// UpsertPilot inserts or updates a pilot and appends a position history row
// unless the aircraft has not moved. com1 is the primary transceiver
// frequency in Hz, or 0 when unknown.
func (r *PilotRepository) UpsertPilot(ctx context.Context, p vatsim.Pilot, now time.Time, com1 uint64) error {
	var prev pilotPosition
	err := r.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, altitude_ft, groundspeed_kts, last_seen
		 FROM pilots
		 WHERE callsign = $1`,
		p.Callsign,
	).Scan(&prev.Latitude, &prev.Longitude, &prev.AltitudeFt, &prev.GroundspeedKts, &prev.Timestamp)

	var prevPtr *pilotPosition
	if err == nil {
		prevPtr = &prev
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("failed to query previous position: %w", err)
	}

	moved := prevPtr == nil || !positionsEqual(p, prev)

	nearest, miles, ok := geo.Nearest(r.airports, p.Latitude, p.Longitude)
	nearestID := sql.NullString{String: nearest.Identifier, Valid: ok}
	nearestMiles := sql.NullFloat64{Float64: miles, Valid: ok}
	com1Hz := sql.NullInt64{Int64: int64(com1), Valid: com1 > 0}

	increment := 0
	if moved {
		increment = 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pilots (
			callsign, cid, name, server, pilot_rating,
			latitude, longitude, altitude_ft, groundspeed_kts, heading_deg,
			transponder, qnh_mb, com1_hz, nearest_airport, nearest_miles,
			logon_time, first_seen, last_seen, position_count, is_online
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $17, 1, TRUE
		)
		ON CONFLICT (callsign) DO UPDATE SET
			cid = EXCLUDED.cid,
			name = EXCLUDED.name,
			server = EXCLUDED.server,
			pilot_rating = EXCLUDED.pilot_rating,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude_ft = EXCLUDED.altitude_ft,
			groundspeed_kts = EXCLUDED.groundspeed_kts,
			heading_deg = EXCLUDED.heading_deg,
			transponder = EXCLUDED.transponder,
			qnh_mb = EXCLUDED.qnh_mb,
			com1_hz = EXCLUDED.com1_hz,
			nearest_airport = EXCLUDED.nearest_airport,
			nearest_miles = EXCLUDED.nearest_miles,
			logon_time = EXCLUDED.logon_time,
			last_seen = EXCLUDED.last_seen,
			position_count = pilots.position_count + $18,
			is_online = TRUE`,
		p.Callsign, p.CID, p.Name, p.Server, p.PilotRating,
		p.Latitude, p.Longitude, p.Altitude, p.Groundspeed, p.Heading,
		p.Transponder, p.QNHMb, com1Hz, nearestID, nearestMiles,
		p.LogonTime, now, increment,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pilot: %w", err)
	}

	if !moved {
		return nil
	}
	if err := r.insertPosition(ctx, p, now, prevPtr); err != nil {
		return fmt.Errorf("failed to insert position history: %w", err)
	}
	return nil
}

func (r *PilotRepository) insertPosition(ctx context.Context, p vatsim.Pilot, now time.Time, prev *pilotPosition) error {
	var deltaTime, deltaMiles sql.NullFloat64
	if prev != nil {
		if dt := now.Sub(prev.Timestamp).Seconds(); dt > 0 {
			deltaTime = sql.NullFloat64{Float64: dt, Valid: true}
			deltaMiles = sql.NullFloat64{
				Float64: geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude),
				Valid:   true,
			}
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pilot_positions (
			callsign, timestamp, latitude, longitude, altitude_ft,
			groundspeed_kts, heading_deg, delta_time_seconds, delta_miles
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.Callsign, now, p.Latitude, p.Longitude, p.Altitude,
		p.Groundspeed, p.Heading, deltaTime, deltaMiles,
	)
	return err
}

// positionsEqual reports whether a pilot is stationary at its previous
// position, so no history row is needed.
func positionsEqual(current vatsim.Pilot, prev pilotPosition) bool {
	// 0.000001 degrees is about 0.1 m
	const positionTolerance = 0.000001
	const altitudeTolerance = 1
	const speedThreshold = 1

	latChanged := math.Abs(current.Latitude-prev.Latitude) > positionTolerance
	lonChanged := math.Abs(current.Longitude-prev.Longitude) > positionTolerance

	altDelta := current.Altitude - prev.AltitudeFt
	if altDelta < 0 {
		altDelta = -altDelta
	}
	altChanged := altDelta > altitudeTolerance

	isMoving := current.Groundspeed >= speedThreshold || prev.GroundspeedKts >= speedThreshold

	return !latChanged && !lonChanged && !altChanged && !isMoving
}

const pilotColumns = `callsign, cid, name, server, pilot_rating,
	latitude, longitude, altitude_ft, groundspeed_kts, heading_deg,
	transponder, qnh_mb, com1_hz, nearest_airport, nearest_miles,
	first_seen, last_seen, position_count, is_online`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPilot(row rowScanner) (Pilot, error) {
	var p Pilot
	var com1 sql.NullInt64
	var nearest sql.NullString
	var miles sql.NullFloat64

	err := row.Scan(
		&p.Callsign, &p.CID, &p.Name, &p.Server, &p.PilotRating,
		&p.Latitude, &p.Longitude, &p.AltitudeFt, &p.GroundspeedKts, &p.HeadingDeg,
		&p.Transponder, &p.QNHMb, &com1, &nearest, &miles,
		&p.FirstSeen, &p.LastSeen, &p.PositionCount, &p.IsOnline,
	)
	if err != nil {
		return Pilot{}, err
	}
	if com1.Valid {
		p.COM1Hz = uint64(com1.Int64)
	}
	p.NearestAirport = nearest.String
	p.NearestMiles = miles.Float64
	return p, nil
}

// ListPilots returns stored pilots ordered by callsign, or by distance from
// f.Center when a radius is given.
func (r *PilotRepository) ListPilots(ctx context.Context, f Filter) ([]Pilot, error) {
	query := `SELECT ` + pilotColumns + ` FROM pilots`
	if !f.IncludeOffline {
		query += ` WHERE is_online = TRUE`
	}
	query += ` ORDER BY callsign ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pilots: %w", err)
	}
	defer rows.Close()

	var pilots []Pilot
	for rows.Next() {
		p, err := scanPilot(rows)
		if err != nil {
			return nil, err
		}
		pilots = append(pilots, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return applyFilter(pilots, f), nil
}

// applyFilter restricts pilots to the filter radius and limit. Distance
// filtering is done here rather than in SQL so it uses the same rounding as
// geo.Distance.
func applyFilter(pilots []Pilot, f Filter) []Pilot {
	if f.RadiusMiles > 0 {
		type ranged struct {
			pilot Pilot
			miles float64
		}
		var within []ranged
		for _, p := range pilots {
			d := geo.Distance(f.Center.Latitude, f.Center.Longitude, p.Latitude, p.Longitude)
			if d <= f.RadiusMiles {
				within = append(within, ranged{p, d})
			}
		}
		// Stable so equal distances keep callsign order
		sort.SliceStable(within, func(i, j int) bool { return within[i].miles < within[j].miles })
		pilots = pilots[:0]
		for _, w := range within {
			pilots = append(pilots, w.pilot)
		}
	}

	if f.Limit > 0 && len(pilots) > f.Limit {
		pilots = pilots[:f.Limit]
	}
	return pilots
}

// GetPilot retrieves a pilot by callsign. Returns nil if not found.
func (r *PilotRepository) GetPilot(ctx context.Context, callsign string) (*Pilot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pilotColumns+` FROM pilots WHERE callsign = $1`,
		callsign,
	)
	p, err := scanPilot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pilot: %w", err)
	}
	return &p, nil
}

// GetPositions returns the most recent positions of a pilot, newest first.
func (r *PilotRepository) GetPositions(ctx context.Context, callsign string, limit int) ([]Position, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT timestamp, latitude, longitude, altitude_ft, groundspeed_kts,
		        heading_deg, delta_time_seconds, delta_miles
		 FROM pilot_positions
		 WHERE callsign = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		var deltaTime, deltaMiles sql.NullFloat64
		if err := rows.Scan(
			&p.Timestamp, &p.Latitude, &p.Longitude, &p.AltitudeFt, &p.GroundspeedKts,
			&p.HeadingDeg, &deltaTime, &deltaMiles,
		); err != nil {
			return nil, err
		}
		p.DeltaTimeSeconds = deltaTime.Float64
		p.DeltaMiles = deltaMiles.Float64
		positions = append(positions, p)
	}

	return positions, rows.Err()
}
