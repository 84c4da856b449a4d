package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// vatsim-radar shows live VATSIM pilots around an airport on a terminal scope.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	airport := flag.String("airport", "", "Center airport (overrides radar.airport)")
	radius := flag.Float64("radius", 0, "Scope radius in miles (overrides radar.radius_miles)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *airport != "" {
		cfg.Radar.Airport = strings.ToUpper(*airport)
	}
	if *radius > 0 {
		cfg.Radar.RadiusMiles = *radius
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Stdout belongs to the TUI, so only file logging is honoured here.
	log := logger.Nop()
	if cfg.Logging.File != "" {
		if log, err = logger.New(cfg.Logging.LoggerConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()
	log = log.Named("radar")

	airports := geo.MustBundled()
	center, err := airports.Lookup(cfg.Radar.Airport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown airport %s: %v\n", cfg.Radar.Airport, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	live, err := vatsim.NewLiveClient(ctx, cfg.Feeds.ClientConfig(log))
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve feed endpoints: %v\n", err)
		os.Exit(1)
	}

	m := model{
		live:     live,
		airports: airports,
		log:      log,
		refresh:  time.Duration(cfg.Radar.RefreshSeconds) * time.Second,
		center:   center,
		radius:   cfg.Radar.RadiusMiles,
		loading:  true,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
