// vatsim-web serves the data stored by vatsim-collector as a JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/vatsim-feeds/internal/db"
	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

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
	log = log.Named("web")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, log.Named("db"))
	if err != nil {
		log.Fatal("failed to connect to database", logger.Error(err))
	}
	defer database.Close()

	airports, err := geo.Bundled()
	if err != nil {
		log.Fatal("failed to load airports", logger.Error(err))
	}

	srv := NewServer(Deps{
		Pilots:      db.NewPilotRepository(database, airports.All()),
		Controllers: db.NewControllerRepository(database),
		FlightPlans: db.NewFlightPlanRepository(database),
		Stats:       database,
		Airports:    airports,
		Healthy: func(ctx context.Context) bool {
			return db.HealthCheck(ctx, database, log.Named("db"))
		},
		AllowedOrigins: cfg.Web.AllowedOrigins,
		Log:            log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:         cfg.Web.Address(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down server", logger.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logger.Error(err))
	}
	log.Info("server stopped")
}
