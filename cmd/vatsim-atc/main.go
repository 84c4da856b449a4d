package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("vatsim-atc version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logs := NewLogManager(200)
	log, err := logger.NewWriter(logs, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	log = log.Named("atc")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	live, err := vatsim.NewLiveClient(ctx, cfg.Feeds.ClientConfig(log))
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve feed endpoints: %v\n", err)
		os.Exit(1)
	}
	log.Info("feed endpoints resolved", logger.String("v3", live.Endpoints().LiveDataURL))

	app := NewApp(&AppConfig{
		Live:    live,
		Log:     log,
		Logs:    logs,
		Refresh: time.Duration(cfg.Radar.RefreshSeconds) * time.Second,
	})

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("vatsim-atc - Terminal browser for online VATSIM controllers")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  vatsim-atc [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("    ↑/↓ or j/k     Select station")
	fmt.Println("    r              Refresh now")
	fmt.Println("    q or ESC       Quit")
}
