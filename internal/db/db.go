package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

func connString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// InitSchema creates or updates the database schema.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// RecordSnapshot stores the header of a fetched snapshot and returns its id.
// It returns 0 when a snapshot with the same update timestamp was already
// recorded, meaning the feed has not refreshed since the last poll.
func (db *DB) RecordSnapshot(
	ctx context.Context,
	general vatsim.GeneralData,
	pilots, controllers int,
	fetchedAt time.Time,
) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO snapshots (
			update_timestamp, fetched_at, connected_clients, unique_users,
			pilot_count, controller_count
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (update_timestamp) DO NOTHING
		RETURNING id`,
		general.UpdateTimestamp, fetchedAt, general.ConnectedClients, general.UniqueUsers,
		pilots, controllers,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to record snapshot: %w", err)
	}
	return id, nil
}

// MarkDisconnected flags pilots and controllers absent from the snapshot
// processed at seen as offline.
func (db *DB) MarkDisconnected(ctx context.Context, seen time.Time) (pilots, controllers int64, err error) {
	res, err := db.ExecContext(ctx,
		`UPDATE pilots SET is_online = FALSE WHERE is_online = TRUE AND last_seen < $1`,
		seen,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to mark pilots offline: %w", err)
	}
	pilots, _ = res.RowsAffected()

	res, err = db.ExecContext(ctx,
		`UPDATE controllers SET is_online = FALSE WHERE is_online = TRUE AND last_seen < $1`,
		seen,
	)
	if err != nil {
		return pilots, 0, fmt.Errorf("failed to mark controllers offline: %w", err)
	}
	controllers, _ = res.RowsAffected()

	return pilots, controllers, nil
}

// CleanupOldData removes history older than retention and offline clients
// not seen within it. Should be called periodically to prevent unbounded
// growth.
func (db *DB) CleanupOldData(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)

	statements := []struct {
		what  string
		query string
	}{
		{"positions", `DELETE FROM pilot_positions WHERE timestamp < $1`},
		{"pilots", `DELETE FROM pilots WHERE last_seen < $1 AND is_online = FALSE`},
		{"controllers", `DELETE FROM controllers WHERE last_seen < $1 AND is_online = FALSE`},
		{"flight plans", `DELETE FROM flight_plans WHERE last_updated < $1`},
		{"snapshots", `DELETE FROM snapshots WHERE fetched_at < $1`},
	}

	for _, s := range statements {
		if _, err := db.ExecContext(ctx, s.query, cutoff); err != nil {
			return fmt.Errorf("failed to delete old %s: %w", s.what, err)
		}
	}

	return nil
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := []struct {
		key   string
		query string
	}{
		{"online_pilots", `SELECT COUNT(*) FROM pilots WHERE is_online = TRUE`},
		{"online_controllers", `SELECT COUNT(*) FROM controllers WHERE is_online = TRUE`},
		{"position_records", `SELECT COUNT(*) FROM pilot_positions`},
		{"flight_plans", `SELECT COUNT(*) FROM flight_plans`},
		{"snapshots", `SELECT COUNT(*) FROM snapshots`},
	}

	for _, c := range counts {
		var n int64
		if err := db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	var lastUpdate sql.NullTime
	if err := db.QueryRowContext(ctx, `SELECT MAX(update_timestamp) FROM snapshots`).Scan(&lastUpdate); err != nil {
		return nil, fmt.Errorf("failed to read last update: %w", err)
	}
	if lastUpdate.Valid {
		stats["last_update"] = lastUpdate.Time
	}

	return stats, nil
}
