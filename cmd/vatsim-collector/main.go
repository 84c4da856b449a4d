package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/vatsim-feeds/internal/db"
	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// vatsim-collector polls the VATSIM live feed and stores every snapshot in
// PostgreSQL, so the web API and other clients can share one poller.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("collector")

	log.Info("configuration loaded",
		logger.String("path", *configPath),
		logger.Duration("poll_interval", cfg.Collector.PollInterval()),
		logger.Duration("retention", cfg.Collector.Retention()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, log.Named("db"))
	if err != nil {
		log.Fatal("failed to connect to database", logger.Error(err))
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize schema", logger.Error(err))
	}
	log.Info("database schema initialized")

	airports, err := referenceAirports(cfg.Collector.ReferenceAirports)
	if err != nil {
		log.Fatal("failed to load reference airports", logger.Error(err))
	}
	log.Info("reference airports loaded", logger.Int("count", len(airports)))

	clientCfg := cfg.Feeds.ClientConfig(log)
	live, err := vatsim.NewLiveClient(ctx, clientCfg)
	if err != nil {
		log.Fatal("failed to resolve feed endpoints", logger.Error(err))
	}
	endpoints := live.Endpoints()
	log.Info("feed endpoints resolved",
		logger.String("v3", endpoints.LiveDataURL),
		logger.String("transceivers", endpoints.TransceiversURL),
	)

	collector := NewCollector(CollectorDeps{
		DB:          database,
		Pilots:      db.NewPilotRepository(database, airports),
		Controllers: db.NewControllerRepository(database),
		FlightPlans: db.NewFlightPlanRepository(database),
		Live:        live,
		NewLive: func(ctx context.Context) (Feed, error) {
			return vatsim.NewLiveClient(ctx, clientCfg)
		},
		Log: log,
	}, cfg.Collector)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	doneChan := make(chan struct{})
	go func() {
		defer close(doneChan)
		collector.Run(ctx)
	}()

	log.Info("collector service started")

	select {
	case sig := <-sigChan:
		log.Info("received signal", logger.String("signal", sig.String()))
		cancel()
		<-doneChan
	case <-doneChan:
		log.Info("collector stopped")
	}

	log.Info("collector service stopped")
}

// referenceAirports returns the configured subset of the bundled airport
// table, or every airport when ids is empty.
func referenceAirports(ids []string) ([]geo.Point, error) {
	table, err := geo.Bundled()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return table.All(), nil
	}
	return table.Resolve(ids)
}
