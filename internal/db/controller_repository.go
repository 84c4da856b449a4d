package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// ControllerRepository handles database operations for ATC positions and
// ATIS stations.
type ControllerRepository struct {
	db *DB
}

// NewControllerRepository creates a new controller repository.
func NewControllerRepository(db *DB) *ControllerRepository {
	return &ControllerRepository{db: db}
}

// Controller is the stored state of an ATC position. AtisCode is set only
// for ATIS stations.
type Controller struct {
	Callsign    string    `json:"callsign"`
	CID         int64     `json:"cid"`
	Name        string    `json:"name"`
	Frequency   string    `json:"frequency"`
	Facility    int       `json:"facility"`
	Rating      int       `json:"rating"`
	Server      string    `json:"server"`
	VisualRange int       `json:"visual_range"`
	AtisCode    string    `json:"atis_code,omitempty"`
	TextAtis    []string  `json:"text_atis"`
	LogonTime   time.Time `json:"logon_time"`
	LastSeen    time.Time `json:"last_seen"`
	IsOnline    bool      `json:"is_online"`
}

// UpsertController inserts or updates a controller. atisCode is empty for
// positions that are not ATIS stations.
func (r *ControllerRepository) UpsertController(ctx context.Context, c vatsim.Controller, atisCode string, now time.Time) error {
	textAtis := c.TextAtis
	if textAtis == nil {
		textAtis = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO controllers (
			callsign, cid, name, frequency, facility, rating, server,
			visual_range, atis_code, text_atis, logon_time, last_seen, is_online
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
		ON CONFLICT (callsign) DO UPDATE SET
			cid = EXCLUDED.cid,
			name = EXCLUDED.name,
			frequency = EXCLUDED.frequency,
			facility = EXCLUDED.facility,
			rating = EXCLUDED.rating,
			server = EXCLUDED.server,
			visual_range = EXCLUDED.visual_range,
			atis_code = EXCLUDED.atis_code,
			text_atis = EXCLUDED.text_atis,
			logon_time = EXCLUDED.logon_time,
			last_seen = EXCLUDED.last_seen,
			is_online = TRUE`,
		c.Callsign, c.CID, c.Name, c.Frequency, c.Facility, c.Rating, c.Server,
		c.VisualRange, sql.NullString{String: atisCode, Valid: atisCode != ""}, pq.Array(textAtis),
		c.LogonTime, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert controller: %w", err)
	}
	return nil
}

// UpsertAtis stores an ATIS station as a controller carrying its code.
func (r *ControllerRepository) UpsertAtis(ctx context.Context, a vatsim.Atis, now time.Time) error {
	return r.UpsertController(ctx, atisAsController(a), a.AtisCode, now)
}

func atisAsController(a vatsim.Atis) vatsim.Controller {
	return vatsim.Controller{
		CID:         a.CID,
		Name:        a.Name,
		Callsign:    a.Callsign,
		Frequency:   a.Frequency,
		Facility:    a.Facility,
		Rating:      a.Rating,
		Server:      a.Server,
		VisualRange: a.VisualRange,
		TextAtis:    a.TextAtis,
		LastUpdated: a.LastUpdated,
		LogonTime:   a.LogonTime,
	}
}

// ListControllers returns online controllers ordered by callsign.
func (r *ControllerRepository) ListControllers(ctx context.Context) ([]Controller, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT callsign, cid, name, frequency, facility, rating, server,
		        visual_range, atis_code, text_atis, logon_time, last_seen, is_online
		 FROM controllers
		 WHERE is_online = TRUE
		 ORDER BY callsign ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list controllers: %w", err)
	}
	defer rows.Close()

	var controllers []Controller
	for rows.Next() {
		var c Controller
		var atisCode sql.NullString
		var logon sql.NullTime
		if err := rows.Scan(
			&c.Callsign, &c.CID, &c.Name, &c.Frequency, &c.Facility, &c.Rating, &c.Server,
			&c.VisualRange, &atisCode, pq.Array(&c.TextAtis), &logon, &c.LastSeen, &c.IsOnline,
		); err != nil {
			return nil, err
		}
		c.AtisCode = atisCode.String
		c.LogonTime = logon.Time
		controllers = append(controllers, c)
	}

	return controllers, rows.Err()
}
