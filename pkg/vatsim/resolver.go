package vatsim

import (
	"context"
	"math/rand"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

// StatusURL is the well-known discovery document.
const StatusURL = "https://status.vatsim.net/status.json"

// Chooser picks one URL from a non-empty list of mirrors.
type Chooser func(urls []string) string

// RandomChoice picks a mirror uniformly at random.
func RandomChoice(urls []string) string {
	return urls[rand.Intn(len(urls))]
}

// EndpointSet holds the feed URLs chosen at resolution time.
type EndpointSet struct {
	LiveDataURL     string `json:"live_data_url"`
	TransceiversURL string `json:"transceivers_url"`
}

// Resolver discovers feed mirrors from the status document.
type Resolver struct {
	fetcher   *fetcher
	statusURL string
	choose    Chooser
}

// NewResolver creates a resolver. Empty fields of cfg take their defaults.
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		fetcher:   cfg.fetcher(),
		statusURL: cfg.StatusURL,
		choose:    cfg.Chooser,
	}
}

// Resolve fetches the status document once and picks one mirror for the v3
// feed and one for the transceivers feed, checked in that order.
func (r *Resolver) Resolve(ctx context.Context) (EndpointSet, error) {
	status, err := getJSON[Status](ctx, r.fetcher, r.statusURL, nil)
	if err != nil {
		return EndpointSet{}, err
	}

	if len(status.Data.V3) == 0 {
		return EndpointSet{}, &Error{Kind: KindNoURLAvailable, URL: r.statusURL, Feed: FeedV3}
	}
	live := r.choose(status.Data.V3)

	if len(status.Data.Transceivers) == 0 {
		return EndpointSet{}, &Error{Kind: KindNoURLAvailable, URL: r.statusURL, Feed: FeedTransceivers}
	}
	transceivers := r.choose(status.Data.Transceivers)

	r.fetcher.log.Debug("resolved feed endpoints",
		logger.String("v3", live),
		logger.String("transceivers", transceivers),
		logger.Int("v3_mirrors", len(status.Data.V3)),
		logger.Int("transceiver_mirrors", len(status.Data.Transceivers)),
	)

	return EndpointSet{LiveDataURL: live, TransceiversURL: transceivers}, nil
}
