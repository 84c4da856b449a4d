// Package vatsim is a client for the public VATSIM data feeds.
//
// LiveClient resolves the v3 and transceivers mirrors from the status
// document once at construction and then fetches snapshots on demand.
// HistoryClient wraps the paginated REST API at api.vatsim.net. Both share
// one fetch protocol: a single GET per call, no retries, and failures
// classified into the closed set of ErrorKind values.
package vatsim

import (
	"net/http"
	"time"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

const (
	// HistoryBaseURL is the root of the REST API
	HistoryBaseURL = "https://api.vatsim.net/api"

	// StatsBaseURL is the root of the public stats pages
	StatsBaseURL = "https://stats.vatsim.net/stats"

	// DefaultUserAgent is sent when Config.UserAgent is empty
	DefaultUserAgent = "vatsim-feeds/1.0"

	// DefaultTimeout applies to the http.Client built when HTTPClient is nil
	DefaultTimeout = 30 * time.Second
)

// Config holds the client configuration shared by LiveClient, Resolver
// and HistoryClient.
type Config struct {
	// HTTPClient performs requests (default: http.Client with Timeout)
	HTTPClient Doer

	// Timeout for the default HTTP client; ignored when HTTPClient is set
	Timeout time.Duration

	// UserAgent header value
	UserAgent string

	// StatusURL overrides the discovery document location
	StatusURL string

	// HistoryBaseURL overrides the REST API root
	HistoryBaseURL string

	// StatsBaseURL overrides the stats page root
	StatsBaseURL string

	// Chooser selects a mirror (default: RandomChoice)
	Chooser Chooser

	// Logger receives debug output (default: no-op)
	Logger *logger.Logger
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.StatusURL == "" {
		c.StatusURL = StatusURL
	}
	if c.HistoryBaseURL == "" {
		c.HistoryBaseURL = HistoryBaseURL
	}
	if c.StatsBaseURL == "" {
		c.StatsBaseURL = StatsBaseURL
	}
	if c.Chooser == nil {
		c.Chooser = RandomChoice
	}
	c.Logger = logger.OrNop(c.Logger)
	return c
}

func (c Config) fetcher() *fetcher {
	return &fetcher{
		httpClient: c.HTTPClient,
		userAgent:  c.UserAgent,
		log:        c.Logger.Named("vatsim"),
	}
}
