// vatsim-history queries the VATSIM REST API for member and facility history
// and prints one page of results as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/config"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

const usage = `Usage: vatsim-history [-config path] <command> [flags]

Commands:
  ratings      -cid N                 member rating record
  times        -cid N                 hours per rating
  connections  -cid N [-page N]       network connections
  sessions     -cid N [-page N] [-specifier CALLSIGN] [-start DATE] [-date DATE]
                                      ATC sessions
  flightplans  -cid N [-page N]       filed flight plans
  regions                             VATSIM regions
  facilities                          currently staffed facilities
  facility     SPECIFIER [-page N] [-start DATE] [-date DATE]
                                      past sessions for a facility
  stats-url    -cid N                 public stats page (no request)

Dates are YYYY-MM-DD.
`

// errUsage marks a command line error.
var errUsage = errors.New("usage error")

func main() {
	global := flag.NewFlagSet("vatsim-history", flag.ExitOnError)
	configPath := global.String("config", "configs/config.json", "Path to configuration file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Results go to stdout, so logs go to stderr.
	log, err := logger.NewWriter(os.Stderr, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client := vatsim.NewHistoryClient(cfg.Feeds.ClientConfig(log.Named("history")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.Feeds.TimeoutSeconds)*time.Second)
	defer cancel()

	if err := run(ctx, client, global.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// commandFlags are the flags shared by every subcommand.
type commandFlags struct {
	cid       int64
	page      int
	specifier string
	start     string
	date      string
}

// run executes one subcommand and writes its result to out.
func run(ctx context.Context, client *vatsim.HistoryClient, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f commandFlags
	fs.Int64Var(&f.cid, "cid", 0, "Member CID")
	fs.IntVar(&f.page, "page", 0, "Page number (1-based; 0 = first)")
	fs.StringVar(&f.specifier, "specifier", "", "Callsign or prefix")
	fs.StringVar(&f.start, "start", "", "Earliest date (YYYY-MM-DD)")
	fs.StringVar(&f.date, "date", "", "Single date (YYYY-MM-DD)")

	// facility takes its specifier positionally before any flags
	if cmd == "facility" && len(rest) > 0 && rest[0] != "" && rest[0][0] != '-' {
		f.specifier, rest = rest[0], rest[1:]
	}
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, cmd, err)
	}

	start, err := parseDate("start", f.start)
	if err != nil {
		return err
	}
	date, err := parseDate("date", f.date)
	if err != nil {
		return err
	}

	needCID := func() error {
		if f.cid <= 0 {
			return fmt.Errorf("%w: %s requires -cid", errUsage, cmd)
		}
		return nil
	}

	var result interface{}
	switch cmd {
	case "ratings":
		if err := needCID(); err != nil {
			return err
		}
		result, err = client.UserRatings(ctx, f.cid)
	case "times":
		if err := needCID(); err != nil {
			return err
		}
		result, err = client.RatingTimes(ctx, f.cid)
	case "connections":
		if err := needCID(); err != nil {
			return err
		}
		result, err = client.Connections(ctx, f.cid, f.page)
	case "sessions":
		if err := needCID(); err != nil {
			return err
		}
		result, err = client.AtcSessions(ctx, f.cid, vatsim.AtcSessionQuery{
			Page:      f.page,
			Specifier: f.specifier,
			Start:     start,
			Date:      date,
		})
	case "flightplans":
		if err := needCID(); err != nil {
			return err
		}
		result, err = client.FlightPlans(ctx, f.cid, f.page)
	case "regions":
		result, err = client.Regions(ctx)
	case "facilities":
		result, err = client.OnlineFacilities(ctx)
	case "facility":
		if f.specifier == "" {
			return fmt.Errorf("%w: facility requires a specifier", errUsage)
		}
		result, err = client.FacilityHistory(ctx, f.specifier, vatsim.HistoryQuery{
			Page:  f.page,
			Start: start,
			Date:  date,
		})
	case "stats-url":
		if err := needCID(); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, client.StatsURL(f.cid))
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: -%s must be YYYY-MM-DD", errUsage, name)
	}
	return t, nil
}

// describe turns a fetch error into a one-line message for the terminal.
func describe(err error) string {
	var e *vatsim.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case vatsim.KindInvalidStatusCode:
		if e.StatusCode == 404 {
			return "not found"
		}
		return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
	case vatsim.KindDecode:
		return "unexpected response format: " + err.Error()
	case vatsim.KindTransport:
		return "request failed: " + err.Error()
	default:
		return err.Error()
	}
}
