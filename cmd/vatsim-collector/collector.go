package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unklstewy/vatsim-feeds/internal/db"
	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// Feed is the part of vatsim.LiveClient the collector uses.
type Feed interface {
	Snapshot(ctx context.Context) (*vatsim.Snapshot, error)
	Transceivers(ctx context.Context) ([]vatsim.TransceiverSet, error)
	Endpoints() vatsim.EndpointSet
}

// SnapshotStore records snapshot headers and maintains the tables.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, general vatsim.GeneralData, pilots, controllers int, fetchedAt time.Time) (int64, error)
	MarkDisconnected(ctx context.Context, seen time.Time) (int64, int64, error)
	CleanupOldData(ctx context.Context, retention time.Duration) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// PilotStore persists pilots.
type PilotStore interface {
	UpsertPilot(ctx context.Context, p vatsim.Pilot, now time.Time, com1 uint64) error
}

// ControllerStore persists controllers and ATIS stations.
type ControllerStore interface {
	UpsertController(ctx context.Context, c vatsim.Controller, atisCode string, now time.Time) error
	UpsertAtis(ctx context.Context, a vatsim.Atis, now time.Time) error
}

// FlightPlanStore persists flight plans.
type FlightPlanStore interface {
	SaveFlightPlan(ctx context.Context, p vatsim.Pilot, now time.Time) error
}

// CollectorDeps wires a Collector.
type CollectorDeps struct {
	DB          SnapshotStore
	Pilots      PilotStore
	Controllers ControllerStore
	FlightPlans FlightPlanStore

	// Live is the initial feed client
	Live Feed

	// NewLive builds a replacement client with a fresh mirror choice
	NewLive func(ctx context.Context) (Feed, error)

	Log *logger.Logger
}

// Collector manages the snapshot collection process.
type Collector struct {
	CollectorDeps

	limiter         *rate.Limiter
	reresolveAfter  int
	retention       time.Duration
	cleanupInterval time.Duration
	statsInterval   time.Duration
	now             func() time.Time

	// Statistics
	totalUpdates  int
	skipped       int
	failures      int
	lastUpdate    time.Time
	lastTimestamp time.Time
}

// NewCollector creates a collector paced at one cycle per poll interval.
func NewCollector(deps CollectorDeps, cfg config.CollectorConfig) *Collector {
	deps.Log = logger.OrNop(deps.Log)
	return &Collector{
		CollectorDeps:   deps,
		limiter:         rate.NewLimiter(rate.Every(cfg.PollInterval()), 1),
		reresolveAfter:  cfg.ReresolveAfterFailures,
		retention:       cfg.Retention(),
		cleanupInterval: time.Duration(cfg.CleanupIntervalMinutes) * time.Minute,
		statsInterval:   time.Duration(cfg.StatsIntervalMinutes) * time.Minute,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	var cleanupC, statsC <-chan time.Time
	if c.cleanupInterval > 0 {
		t := time.NewTicker(c.cleanupInterval)
		defer t.Stop()
		cleanupC = t.C
	}
	if c.statsInterval > 0 {
		t := time.NewTicker(c.statsInterval)
		defer t.Stop()
		statsC = t.C
	}

	cycles := make(chan struct{})
	go func() {
		defer close(cycles)
		for {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case cycles <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-cycles:
			if !ok {
				return
			}
			c.cycle(ctx)
		case <-cleanupC:
			c.cleanup(ctx)
		case <-statsC:
			c.printStats(ctx)
		}
	}
}

// cycle runs one update and rebuilds the feed client after too many
// consecutive failures.
func (c *Collector) cycle(ctx context.Context) {
	if err := c.update(ctx); err != nil {
		c.failures++
		c.Log.Warn("update failed",
			logger.Error(err),
			logger.Int("consecutive_failures", c.failures),
		)
		if c.shouldReresolve() {
			c.reresolve(ctx)
		}
		return
	}
	c.failures = 0
}

func (c *Collector) shouldReresolve() bool {
	return c.reresolveAfter > 0 && c.failures >= c.reresolveAfter && c.NewLive != nil
}

func (c *Collector) reresolve(ctx context.Context) {
	live, err := c.NewLive(ctx)
	if err != nil {
		c.Log.Error("failed to re-resolve feed endpoints", logger.Error(err))
		return
	}
	c.Live = live
	c.failures = 0
	endpoints := live.Endpoints()
	c.Log.Info("feed endpoints re-resolved",
		logger.String("v3", endpoints.LiveDataURL),
		logger.String("transceivers", endpoints.TransceiversURL),
	)
}

// update fetches the snapshot and transceivers concurrently and stores them.
// A failed transceivers fetch only drops COM1 frequencies for this cycle.
func (c *Collector) update(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in update: %v", r)
		}
	}()

	var (
		snapshot *vatsim.Snapshot
		sets     []vatsim.TransceiverSet
		txErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.Live.Snapshot(gctx)
		snapshot = s
		return err
	})
	g.Go(func() error {
		sets, txErr = c.Live.Transceivers(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if txErr != nil {
		c.Log.Warn("transceivers fetch failed", logger.Error(txErr))
	}

	now := c.now()
	c.totalUpdates++

	// The snapshot header gates the whole cycle, so ride out a dropped connection.
	var id int64
	err = db.WithRetry(ctx, func() error {
		var err error
		id, err = c.DB.RecordSnapshot(ctx, snapshot.General, len(snapshot.Pilots), len(snapshot.Controllers), now)
		return err
	}, 2, c.Log)
	if err != nil {
		return err
	}
	if id == 0 {
		c.skipped++
		c.Log.Debug("feed not refreshed since last poll",
			logger.Time("update_timestamp", snapshot.General.UpdateTimestamp))
		return nil
	}

	com1 := com1ByCallsign(sets)

	stored := 0
	for _, p := range snapshot.Pilots {
		if err := c.Pilots.UpsertPilot(ctx, p, now, com1[p.Callsign]); err != nil {
			c.Log.Error("failed to store pilot", logger.String("callsign", p.Callsign), logger.Error(err))
			continue
		}
		if err := c.FlightPlans.SaveFlightPlan(ctx, p, now); err != nil {
			c.Log.Error("failed to store flight plan", logger.String("callsign", p.Callsign), logger.Error(err))
		}
		stored++
	}

	for _, ctrl := range snapshot.Controllers {
		if err := c.Controllers.UpsertController(ctx, ctrl, "", now); err != nil {
			c.Log.Error("failed to store controller", logger.String("callsign", ctrl.Callsign), logger.Error(err))
		}
	}
	for _, a := range snapshot.Atis {
		if err := c.Controllers.UpsertAtis(ctx, a, now); err != nil {
			c.Log.Error("failed to store atis", logger.String("callsign", a.Callsign), logger.Error(err))
		}
	}

	gonePilots, goneControllers, err := c.DB.MarkDisconnected(ctx, now)
	if err != nil {
		c.Log.Error("failed to mark disconnected clients", logger.Error(err))
	}

	c.lastUpdate = now
	c.lastTimestamp = snapshot.General.UpdateTimestamp

	c.Log.Info("snapshot stored",
		logger.Int64("snapshot_id", id),
		logger.Int("update", c.totalUpdates),
		logger.Int("pilots", stored),
		logger.Int("controllers", len(snapshot.Controllers)),
		logger.Int("atis", len(snapshot.Atis)),
		logger.Int64("disconnected_pilots", gonePilots),
		logger.Int64("disconnected_controllers", goneControllers),
	)
	return nil
}

// com1ByCallsign maps each callsign to its primary transceiver frequency.
// The first entry wins when a callsign repeats.
func com1ByCallsign(sets []vatsim.TransceiverSet) map[string]uint64 {
	out := make(map[string]uint64, len(sets))
	for _, s := range sets {
		if _, seen := out[s.Callsign]; seen {
			continue
		}
		if tx, ok := s.Primary(); ok {
			out[s.Callsign] = tx.Frequency
		}
	}
	return out
}

// cleanup removes history older than the retention window.
func (c *Collector) cleanup(ctx context.Context) {
	if err := c.DB.CleanupOldData(ctx, c.retention); err != nil {
		c.Log.Error("cleanup failed", logger.Error(err))
		return
	}
	c.Log.Info("cleanup completed")
}

// printStats logs current database statistics.
func (c *Collector) printStats(ctx context.Context) {
	stats, err := c.DB.GetStats(ctx)
	if err != nil {
		c.Log.Error("failed to get stats", logger.Error(err))
		return
	}

	c.Log.Info("stats",
		logger.Any("online_pilots", stats["online_pilots"]),
		logger.Any("online_controllers", stats["online_controllers"]),
		logger.Any("position_records", stats["position_records"]),
		logger.Any("flight_plans", stats["flight_plans"]),
		logger.Int("total_updates", c.totalUpdates),
		logger.Int("unchanged_polls", c.skipped),
		logger.Time("last_update", c.lastUpdate),
		logger.Time("feed_timestamp", c.lastTimestamp),
	)
}
