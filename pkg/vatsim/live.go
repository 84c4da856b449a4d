package vatsim

import (
	"context"
	"errors"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

var errNullTransceivers = errors.New("transceivers body is null")

// LiveClient fetches the live network feeds from the mirrors chosen when it
// was created. It holds no mutable state and is safe for concurrent use.
// Create a new client to pick fresh mirrors.
type LiveClient struct {
	fetcher   *fetcher
	endpoints EndpointSet
	history   *HistoryClient
}

// NewLiveClient resolves the feed endpoints and returns a ready client.
// Any resolution failure is returned and no client is created.
func NewLiveClient(ctx context.Context, cfg Config) (*LiveClient, error) {
	cfg = cfg.withDefaults()

	endpoints, err := NewResolver(cfg).Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return &LiveClient{
		fetcher:   cfg.fetcher(),
		endpoints: endpoints,
		history:   NewHistoryClient(cfg),
	}, nil
}

// Endpoints returns the URLs chosen at construction.
func (c *LiveClient) Endpoints() EndpointSet {
	return c.endpoints
}

// Snapshot fetches the current v3 data. Pilots and Controllers are sorted
// by callsign; all other lists keep the upstream order.
func (c *LiveClient) Snapshot(ctx context.Context) (*Snapshot, error) {
	snapshot, err := getJSON[Snapshot](ctx, c.fetcher, c.endpoints.LiveDataURL, nil)
	if err != nil {
		return nil, err
	}
	snapshot.sortByCallsign()

	c.fetcher.log.Debug("snapshot decoded",
		logger.Int("pilots", len(snapshot.Pilots)),
		logger.Int("controllers", len(snapshot.Controllers)),
		logger.Time("updated", snapshot.General.UpdateTimestamp),
	)
	return &snapshot, nil
}

// Transceivers fetches the radio state of every connected client, in
// upstream order.
func (c *LiveClient) Transceivers(ctx context.Context) ([]TransceiverSet, error) {
	sets, err := getJSON[[]TransceiverSet](ctx, c.fetcher, c.endpoints.TransceiversURL, nil)
	if err != nil {
		return nil, err
	}
	if sets == nil {
		return nil, &Error{Kind: KindDecode, URL: c.endpoints.TransceiversURL, Err: errNullTransceivers}
	}
	return sets, nil
}

// RatingTimes fetches a user's hours per rating from the REST API. It does
// not use the resolved endpoints.
func (c *LiveClient) RatingTimes(ctx context.Context, cid int64) (*RatingTimes, error) {
	return c.history.RatingTimes(ctx, cid)
}
