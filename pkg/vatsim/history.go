package vatsim

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HistoryClient reads the REST API. Each call is one request; paginated
// endpoints return a single Page and never follow Next.
type HistoryClient struct {
	fetcher  *fetcher
	baseURL  string
	statsURL string
}

// AtcSessionQuery filters AtcSessions. Zero fields are omitted.
type AtcSessionQuery struct {
	Page int

	// Specifier narrows sessions to a callsign prefix (e.g. "KSAN")
	Specifier string

	Start time.Time
	Date  time.Time
}

// HistoryQuery filters FacilityHistory. Zero fields are omitted.
type HistoryQuery struct {
	Page  int
	Start time.Time
	Date  time.Time
}

// NewHistoryClient creates a REST client. Empty fields of cfg take their
// defaults.
func NewHistoryClient(cfg Config) *HistoryClient {
	cfg = cfg.withDefaults()
	return &HistoryClient{
		fetcher:  cfg.fetcher(),
		baseURL:  strings.TrimRight(cfg.HistoryBaseURL, "/"),
		statsURL: strings.TrimRight(cfg.StatsBaseURL, "/"),
	}
}

// UserRatings returns the rating summary for cid.
func (c *HistoryClient) UserRatings(ctx context.Context, cid int64) (*UserRatings, error) {
	r, err := getJSON[UserRatings](ctx, c.fetcher, c.ratingsURL(cid)+"/", nil)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RatingTimes returns the hours cid has logged per rating.
func (c *HistoryClient) RatingTimes(ctx context.Context, cid int64) (*RatingTimes, error) {
	r, err := getJSON[RatingTimes](ctx, c.fetcher, c.ratingsURL(cid)+"/rating_times", nil)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Connections returns one page of cid's connection history.
func (c *HistoryClient) Connections(ctx context.Context, cid int64, page int) (*Page[Connection], error) {
	return getPage[Connection](ctx, c.fetcher, c.ratingsURL(cid)+"/connections", pageQuery(page, time.Time{}, time.Time{}))
}

// AtcSessions returns one page of cid's ATC sessions.
func (c *HistoryClient) AtcSessions(ctx context.Context, cid int64, q AtcSessionQuery) (*Page[AtcSession], error) {
	u := c.ratingsURL(cid) + "/atcsessions/"
	if q.Specifier != "" {
		u += url.PathEscape(q.Specifier)
	}
	return getPage[AtcSession](ctx, c.fetcher, u, pageQuery(q.Page, q.Start, q.Date))
}

// FlightPlans returns one page of cid's filed flight plans.
func (c *HistoryClient) FlightPlans(ctx context.Context, cid int64, page int) (*Page[FlightPlanEntry], error) {
	return getPage[FlightPlanEntry](ctx, c.fetcher, c.ratingsURL(cid)+"/flight_plans", pageQuery(page, time.Time{}, time.Time{}))
}

// Regions lists the VATSIM regions.
func (c *HistoryClient) Regions(ctx context.Context) ([]Region, error) {
	return getJSON[[]Region](ctx, c.fetcher, c.baseURL+"/regions/", nil)
}

// OnlineFacilities lists currently staffed facilities.
func (c *HistoryClient) OnlineFacilities(ctx context.Context) ([]Facility, error) {
	return getJSON[[]Facility](ctx, c.fetcher, c.baseURL+"/facilities/", nil)
}

// FacilityHistory returns one page of past sessions for a facility
// callsign or prefix.
func (c *HistoryClient) FacilityHistory(ctx context.Context, specifier string, q HistoryQuery) (*Page[AtcSession], error) {
	u := c.baseURL + "/facilities/" + url.PathEscape(specifier)
	return getPage[AtcSession](ctx, c.fetcher, u, pageQuery(q.Page, q.Start, q.Date))
}

// StatsURL returns the public stats page for cid. No request is made.
func (c *HistoryClient) StatsURL(cid int64) string {
	return c.statsURL + "/" + strconv.FormatInt(cid, 10)
}

func (c *HistoryClient) ratingsURL(cid int64) string {
	return c.baseURL + "/ratings/" + strconv.FormatInt(cid, 10)
}

func getPage[T any](ctx context.Context, f *fetcher, rawURL string, query url.Values) (*Page[T], error) {
	p, err := getJSON[Page[T]](ctx, f, rawURL, query)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// pageQuery builds the optional page/start/date parameters. Dates are sent
// as YYYY-MM-DD.
func pageQuery(page int, start, date time.Time) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if !start.IsZero() {
		q.Set("start", start.Format(time.DateOnly))
	}
	if !date.IsZero() {
		q.Set("date", date.Format(time.DateOnly))
	}
	return q
}
