package db

import (
	"context"
	"strings"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

// retryBaseDelay is the unit of the linear backoff in WithRetry.
var retryBaseDelay = time.Second

// ReconnectWithRetry attempts to reconnect to the database with exponential backoff.
//
// Parameters:
//   - cfg: Database configuration
//   - maxRetries: Maximum number of reconnection attempts (0 = infinite)
//   - initialDelay: Initial wait time between retries
//
// Returns: Connected database or error if all retries are exhausted or ctx
// is done
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, log *logger.Logger) (*DB, error) {
	log = logger.OrNop(log)
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Info("database connection attempt", logger.Int("attempt", attempt))

		db, err := Connect(cfg)
		if err == nil {
			log.Info("database reconnected")
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Error("failed to reconnect", logger.Int("attempts", attempt), logger.Error(err))
			return nil, err
		}

		log.Warn("connection failed", logger.Error(err), logger.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck reports whether the database answers a ping and a trivial query.
func HealthCheck(ctx context.Context, db *DB, log *logger.Logger) bool {
	if db == nil {
		return false
	}
	log = logger.OrNop(log)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Warn("health check failed: ping", logger.Error(err))
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Warn("health check failed: query", logger.Error(err))
		return false
	}

	if result != 1 {
		log.Warn("health check failed: unexpected result", logger.Int("result", result))
		return false
	}

	return true
}

// WithRetry executes a database operation, retrying with a linear backoff
// while it fails with a connection error. Other errors return immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int, log *logger.Logger) error {
	log = logger.OrNop(log)
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * retryBaseDelay
			log.Warn("database operation failed",
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", maxRetries+1),
				logger.Error(err),
				logger.Duration("retry_in", wait),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}

var connErrorPatterns = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
	"bad connection",
}

// isConnectionError matches err's message against known transient
// connection failures, case-insensitively.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
