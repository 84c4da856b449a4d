package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unklstewy/vatsim-feeds/internal/db"
	"github.com/unklstewy/vatsim-feeds/pkg/geo"
)

type fakeStore struct {
	pilots      []db.Pilot
	positions   []db.Position
	controllers []db.Controller
	flightPlan  *db.FlightPlan
	err         error

	lastFilter db.Filter
	lastLimit  int
}

func (f *fakeStore) ListPilots(_ context.Context, filter db.Filter) ([]db.Pilot, error) {
	f.lastFilter = filter
	return f.pilots, f.err
}

func (f *fakeStore) GetPilot(_ context.Context, callsign string) (*db.Pilot, error) {
	for _, p := range f.pilots {
		if p.Callsign == callsign {
			return &p, nil
		}
	}
	return nil, f.err
}

func (f *fakeStore) GetPositions(_ context.Context, _ string, limit int) ([]db.Position, error) {
	f.lastLimit = limit
	return f.positions, f.err
}

func (f *fakeStore) ListControllers(context.Context) ([]db.Controller, error) {
	return f.controllers, f.err
}

func (f *fakeStore) GetLatestFlightPlan(_ context.Context, callsign string) (*db.FlightPlan, error) {
	if f.flightPlan != nil && f.flightPlan.Callsign == callsign {
		return f.flightPlan, nil
	}
	return nil, f.err
}

func (f *fakeStore) GetStats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"online_pilots": int64(len(f.pilots))}, f.err
}

func newTestServer(store *fakeStore, healthy bool) *Server {
	return NewServer(Deps{
		Pilots:         store,
		Controllers:    store,
		FlightPlans:    store,
		Stats:          store,
		Airports:       geo.MustBundled(),
		Healthy:        func(context.Context) bool { return healthy },
		AllowedOrigins: []string{"*"},
	})
}

func testStore() *fakeStore {
	seen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStore{
		pilots: []db.Pilot{
			{Callsign: "AAL1", Latitude: 32.9, Longitude: -117.2, LastSeen: seen, IsOnline: true},
			{Callsign: "UAL12", Latitude: 40.6, Longitude: -73.8, LastSeen: seen, IsOnline: true},
		},
		positions:   []db.Position{{Timestamp: seen, Latitude: 32.9, Longitude: -117.2}},
		controllers: []db.Controller{{Callsign: "SAN_TWR", Frequency: "118.300", IsOnline: true}},
		flightPlan:  &db.FlightPlan{Callsign: "AAL1", Departure: "KSAN", Arrival: "KJFK"},
	}
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode %s response: %v", target, err)
		}
	}
	return rec, body
}

// TestHealth tests the health endpoint.
func TestHealth(t *testing.T) {
	rec, body := get(t, newTestServer(testStore(), true), "/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected 200 ok, got %d %v", rec.Code, body)
	}

	rec, body = get(t, newTestServer(testStore(), false), "/health")
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "unavailable" {
		t.Errorf("Expected 503 unavailable, got %d %v", rec.Code, body)
	}
}

// TestListPilots tests listing and filter parsing.
func TestListPilots(t *testing.T) {
	t.Run("All pilots", func(t *testing.T) {
		store := testStore()
		rec, body := get(t, newTestServer(store, true), "/api/v1/pilots")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if body["count"] != float64(2) {
			t.Errorf("Expected count 2, got %v", body["count"])
		}
		if store.lastFilter.RadiusMiles != 0 {
			t.Errorf("Expected no radius filter, got %v", store.lastFilter.RadiusMiles)
		}
	})

	t.Run("Near airport", func(t *testing.T) {
		store := testStore()
		rec, body := get(t, newTestServer(store, true), "/api/v1/pilots?near=ksan&radius=25&limit=5&offline=true")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		f := store.lastFilter
		if f.Center.Identifier != "KSAN" || f.RadiusMiles != 25 || f.Limit != 5 || !f.IncludeOffline {
			t.Errorf("Unexpected filter %+v", f)
		}
		if body["radius_miles"] != float64(25) {
			t.Errorf("Expected radius_miles 25 in response, got %v", body["radius_miles"])
		}
	})

	t.Run("Near without radius uses default", func(t *testing.T) {
		store := testStore()
		get(t, newTestServer(store, true), "/api/v1/pilots?near=KLAX")
		if store.lastFilter.RadiusMiles != 50 {
			t.Errorf("Expected default radius 50, got %v", store.lastFilter.RadiusMiles)
		}
	})

	t.Run("Empty list encodes as array", func(t *testing.T) {
		rec, _ := get(t, newTestServer(&fakeStore{}, true), "/api/v1/pilots")
		var body struct {
			Pilots []db.Pilot `json:"pilots"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Pilots == nil {
			t.Errorf("Expected empty array, got %s", rec.Body.String())
		}
	})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"Unknown airport", "/api/v1/pilots?near=ZZZZ", http.StatusNotFound},
		{"Radius without center", "/api/v1/pilots?radius=10", http.StatusBadRequest},
		{"Bad radius", "/api/v1/pilots?near=KSAN&radius=-1", http.StatusBadRequest},
		{"Bad limit", "/api/v1/pilots?limit=many", http.StatusBadRequest},
		{"Bad offline flag", "/api/v1/pilots?offline=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := get(t, newTestServer(testStore(), true), tt.target)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}

	t.Run("Store failure", func(t *testing.T) {
		store := testStore()
		store.err = errors.New("connection refused")
		rec, _ := get(t, newTestServer(store, true), "/api/v1/pilots")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
	})
}

// TestGetPilot tests single pilot lookup.
func TestGetPilot(t *testing.T) {
	srv := newTestServer(testStore(), true)

	rec, body := get(t, srv, "/api/v1/pilots/aal1")
	if rec.Code != http.StatusOK || body["callsign"] != "AAL1" {
		t.Errorf("Expected AAL1, got %d %v", rec.Code, body)
	}

	rec, _ = get(t, srv, "/api/v1/pilots/NOPE")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// TestGetPositions tests position history.
func TestGetPositions(t *testing.T) {
	store := testStore()
	srv := newTestServer(store, true)

	rec, body := get(t, srv, "/api/v1/pilots/AAL1/positions?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 position, got %v", body["count"])
	}
	if store.lastLimit != 10 {
		t.Errorf("Expected limit 10, got %d", store.lastLimit)
	}

	rec, _ = get(t, srv, "/api/v1/pilots/AAL1/positions?limit=-3")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

// TestGetFlightPlan tests flight plan lookup.
func TestGetFlightPlan(t *testing.T) {
	srv := newTestServer(testStore(), true)

	rec, body := get(t, srv, "/api/v1/pilots/AAL1/flightplan")
	if rec.Code != http.StatusOK || body["arrival"] != "KJFK" {
		t.Errorf("Expected KJFK plan, got %d %v", rec.Code, body)
	}

	rec, _ = get(t, srv, "/api/v1/pilots/UAL12/flightplan")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// TestListControllers tests the controllers endpoint.
func TestListControllers(t *testing.T) {
	rec, body := get(t, newTestServer(testStore(), true), "/api/v1/controllers")
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("Expected one controller, got %d %v", rec.Code, body)
	}
}

// TestGetAirport tests reference table lookup.
func TestGetAirport(t *testing.T) {
	srv := newTestServer(testStore(), true)

	rec, body := get(t, srv, "/api/v1/airports/ksan")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["identifier"] != "KSAN" || body["latitude"] != 32.7338 {
		t.Errorf("Unexpected airport %v", body)
	}

	rec, _ = get(t, srv, "/api/v1/airports/ZZZZ")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// TestDistance tests the distance endpoint.
func TestDistance(t *testing.T) {
	srv := newTestServer(testStore(), true)

	rec, body := get(t, srv, "/api/v1/distance?from=KSAN&to=klax")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["miles"] != float64(95) {
		t.Errorf("Expected 95 miles, got %v", body["miles"])
	}

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"Missing to", "/api/v1/distance?from=KSAN", http.StatusBadRequest},
		{"Unknown airport", "/api/v1/distance?from=KSAN&to=ZZZZ", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := get(t, srv, tt.target)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

// TestStats tests the stats endpoint.
func TestStats(t *testing.T) {
	rec, body := get(t, newTestServer(testStore(), true), "/api/v1/stats")
	if rec.Code != http.StatusOK || body["online_pilots"] != float64(2) {
		t.Errorf("Expected 2 online pilots, got %d %v", rec.Code, body)
	}
}

// TestCORS tests that configured origins are allowed.
func TestCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/controllers", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	newTestServer(testStore(), true).ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected Access-Control-Allow-Origin header")
	}
}
