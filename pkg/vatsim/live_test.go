package vatsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

const snapshotJSON = `{
	"general": {
		"version": 3,
		"reload": 1,
		"update": "20240101120000",
		"update_timestamp": "2024-01-01T12:00:00.1234567Z",
		"connected_clients": 5,
		"unique_users": 5
	},
	"pilots": [
		{"cid": 3, "callsign": "UAL12", "latitude": 32.9, "longitude": -117.3, "altitude": 9000, "groundspeed": 250, "heading": 90,
		 "flight_plan": {"flight_rules": "I", "aircraft_short": "B738", "departure": "KSAN", "arrival": "KSFO", "route": "DCT", "revision_id": 1},
		 "logon_time": "2024-01-01T11:00:00Z", "last_updated": "2024-01-01T11:59:58Z"},
		{"cid": 1, "callsign": "AAL1", "latitude": 33.0, "longitude": -118.0, "logon_time": "2024-01-01T11:00:00Z", "last_updated": "2024-01-01T11:59:58Z"},
		{"cid": 7, "callsign": "DAL400", "latitude": 34.0, "longitude": -118.5, "flight_plan": null, "logon_time": "2024-01-01T11:00:00Z", "last_updated": "2024-01-01T11:59:58Z"},
		{"cid": 2, "callsign": "AAL1", "latitude": 40.0, "longitude": -74.0, "logon_time": "2024-01-01T11:00:00Z", "last_updated": "2024-01-01T11:59:58Z"}
	],
	"controllers": [
		{"cid": 10, "callsign": "SAN_TWR", "frequency": "118.300", "facility": 4, "rating": 3, "text_atis": null, "logon_time": "2024-01-01T10:00:00Z", "last_updated": "2024-01-01T11:59:00Z"},
		{"cid": 11, "callsign": "LAX_APP", "frequency": "124.300", "facility": 5, "rating": 5, "text_atis": ["LA approach"], "logon_time": "2024-01-01T10:00:00Z", "last_updated": "2024-01-01T11:59:00Z"}
	],
	"atis": [
		{"cid": 12, "callsign": "KSAN_ATIS", "frequency": "134.800", "facility": 4, "atis_code": "B", "text_atis": ["SAN INFO B"], "logon_time": "2024-01-01T10:00:00Z", "last_updated": "2024-01-01T11:59:00Z"}
	],
	"servers": [
		{"ident": "USA-WEST", "hostname_or_ip": "1.2.3.4", "location": "Los Angeles", "name": "USA-WEST", "clients_connection_allowed": 1, "client_connections_allowed": true, "is_sweatbox": false}
	],
	"prefiles": [],
	"facilities": [{"id": 4, "short": "TWR", "long": "Tower"}, {"id": 5, "short": "APP", "long": "Approach/Departure"}],
	"ratings": [{"id": 3, "short": "S2", "long": "Tower Controller"}],
	"pilot_ratings": [{"id": 0, "short_name": "NEW", "long_name": "Basic Member"}],
	"military_ratings": [{"id": 0, "short_name": "M0", "long_name": "No Military Rating"}]
}`

const transceiversJSON = `[
	{"callsign": "ZZZ1", "transceivers": [{"id": 0, "frequency": 122800000, "latDeg": 1.5, "lonDeg": 2.5, "heightMslM": 100.0, "heightAglM": 10.0}]},
	{"callsign": "AAA1", "transceivers": []},
	{"callsign": "MMM1", "transceivers": [{"id": 0, "frequency": 118300000, "latDeg": 0, "lonDeg": 0, "heightMslM": 0, "heightAglM": 0}, {"id": 1, "frequency": 121500000, "latDeg": 0, "lonDeg": 0, "heightMslM": 0, "heightAglM": 0}]}
]`

// newFeedServer serves a status document pointing back at itself plus the
// given v3 and transceivers bodies.
func newFeedServer(t *testing.T, v3, transceivers string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	mux.HandleFunc("/status.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"v3": [%q], "transceivers": [%q]}}`, server.URL+"/v3", server.URL+"/transceivers")
	})
	mux.HandleFunc("/v3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, v3)
	})
	mux.HandleFunc("/transceivers", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, transceivers)
	})
	t.Cleanup(server.Close)
	return server
}

func newTestLiveClient(t *testing.T, server *httptest.Server) *LiveClient {
	t.Helper()
	client, err := NewLiveClient(context.Background(), Config{
		HTTPClient:     server.Client(),
		StatusURL:      server.URL + "/status.json",
		HistoryBaseURL: server.URL + "/api",
		Chooser:        firstChoice,
	})
	if err != nil {
		t.Fatalf("Expected client, got error: %v", err)
	}
	return client
}

// TestNewLiveClient tests endpoint resolution at construction.
func TestNewLiveClient(t *testing.T) {
	server := newFeedServer(t, snapshotJSON, transceiversJSON)
	client := newTestLiveClient(t, server)

	endpoints := client.Endpoints()
	if endpoints.LiveDataURL != server.URL+"/v3" {
		t.Errorf("Expected v3 URL %s/v3, got %s", server.URL, endpoints.LiveDataURL)
	}
	if endpoints.TransceiversURL != server.URL+"/transceivers" {
		t.Errorf("Expected transceivers URL %s/transceivers, got %s", server.URL, endpoints.TransceiversURL)
	}
}

// TestSnapshot tests decoding and ordering of the v3 feed.
func TestSnapshot(t *testing.T) {
	server := newFeedServer(t, snapshotJSON, transceiversJSON)
	client := newTestLiveClient(t, server)

	snapshot, err := client.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	t.Run("Pilots sorted by callsign", func(t *testing.T) {
		var callsigns []string
		for _, p := range snapshot.Pilots {
			callsigns = append(callsigns, p.Callsign)
		}
		expected := []string{"AAL1", "AAL1", "DAL400", "UAL12"}
		if !slices.Equal(callsigns, expected) {
			t.Errorf("Expected %v, got %v", expected, callsigns)
		}
	})

	t.Run("Equal callsigns keep upstream order", func(t *testing.T) {
		if snapshot.Pilots[0].CID != 1 || snapshot.Pilots[1].CID != 2 {
			t.Errorf("Expected CIDs 1 then 2, got %d then %d", snapshot.Pilots[0].CID, snapshot.Pilots[1].CID)
		}
	})

	t.Run("Controllers sorted by callsign", func(t *testing.T) {
		if snapshot.Controllers[0].Callsign != "LAX_APP" || snapshot.Controllers[1].Callsign != "SAN_TWR" {
			t.Errorf("Expected LAX_APP, SAN_TWR; got %s, %s", snapshot.Controllers[0].Callsign, snapshot.Controllers[1].Callsign)
		}
	})

	t.Run("Sort invariant holds", func(t *testing.T) {
		for i := 1; i < len(snapshot.Pilots); i++ {
			if snapshot.Pilots[i-1].Callsign > snapshot.Pilots[i].Callsign {
				t.Errorf("Pilots out of order at %d", i)
			}
		}
	})

	t.Run("Decoded fields", func(t *testing.T) {
		if snapshot.General.Version != 3 || snapshot.General.UpdateTimestamp.Year() != 2024 {
			t.Errorf("Unexpected general section: %+v", snapshot.General)
		}
		ual, ok := snapshot.Pilot("UAL12")
		if !ok {
			t.Fatal("Expected UAL12 in snapshot")
		}
		if ual.FlightPlan == nil || ual.FlightPlan.Arrival != "KSFO" {
			t.Errorf("Expected flight plan to KSFO, got %+v", ual.FlightPlan)
		}
		if dal, _ := snapshot.Pilot("DAL400"); dal.FlightPlan != nil {
			t.Error("Expected null flight plan to decode as nil")
		}
		if len(snapshot.Atis) != 1 || snapshot.Atis[0].AtisCode != "B" {
			t.Errorf("Expected ATIS B, got %+v", snapshot.Atis)
		}
	})

	t.Run("Lookups", func(t *testing.T) {
		if _, ok := snapshot.Pilot("NOPE"); ok {
			t.Error("Expected unknown pilot lookup to fail")
		}
		ctrl, ok := snapshot.Controller("SAN_TWR")
		if !ok {
			t.Fatal("Expected SAN_TWR")
		}
		if got := snapshot.FacilityName(ctrl.Facility); got != "Tower" {
			t.Errorf("Expected Tower, got %s", got)
		}
		if got := snapshot.RatingName(ctrl.Rating); got != "Tower Controller" {
			t.Errorf("Expected Tower Controller, got %s", got)
		}
		if got := snapshot.FacilityName(99); got != "99" {
			t.Errorf("Expected fallback 99, got %s", got)
		}
	})
}

// TestSnapshotDecodeFailure tests bodies missing required sections.
func TestSnapshotDecodeFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Missing pilots", `{"general": {"update_timestamp": "2024-01-01T12:00:00Z"}, "controllers": [], "atis": [], "servers": []}`},
		{"Missing general", `{"pilots": [], "controllers": [], "atis": [], "servers": []}`},
		{"Wrong shape", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFeedServer(t, tt.body, transceiversJSON)
			client := newTestLiveClient(t, server)

			_, err := client.Snapshot(context.Background())
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Expected ErrDecode, got %v", err)
			}
		})
	}
}

// TestTransceivers tests that the transceivers feed keeps upstream order.
func TestTransceivers(t *testing.T) {
	server := newFeedServer(t, snapshotJSON, transceiversJSON)
	client := newTestLiveClient(t, server)

	sets, err := client.Transceivers(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(sets))
	}
	if sets[0].Callsign != "ZZZ1" || sets[1].Callsign != "AAA1" || sets[2].Callsign != "MMM1" {
		t.Errorf("Expected upstream order ZZZ1, AAA1, MMM1; got %s, %s, %s", sets[0].Callsign, sets[1].Callsign, sets[2].Callsign)
	}

	tx, ok := sets[0].Primary()
	if !ok {
		t.Fatal("Expected a primary transceiver")
	}
	if tx.LatDeg != 1.5 || tx.HeightMslM != 100 {
		t.Errorf("Expected camelCase fields to decode, got %+v", tx)
	}
	if got := tx.FrequencyMHz(); got != "122.800" {
		t.Errorf("Expected 122.800, got %s", got)
	}
	if _, ok := sets[1].Primary(); ok {
		t.Error("Expected no primary transceiver for an empty set")
	}

	t.Run("Null body", func(t *testing.T) {
		server := newFeedServer(t, snapshotJSON, "null")
		client := newTestLiveClient(t, server)
		if _, err := client.Transceivers(context.Background()); !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})
}

// TestLiveClientRatingTimes tests delegation to the REST API.
func TestLiveClientRatingTimes(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/status.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"v3": ["https://unused.test/v3"], "transceivers": ["https://unused.test/tx"]}}`)
	})
	mux.HandleFunc("/api/ratings/1234567/rating_times", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1234567, "atc": 10.5, "pilot": 200.25, "s1": 5, "s2": 5.5}`)
	})

	client := newTestLiveClient(t, server)
	times, err := client.RatingTimes(context.Background(), 1234567)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if times.Pilot != 200.25 || times.ATC != 10.5 {
		t.Errorf("Expected pilot 200.25 and atc 10.5, got %+v", times)
	}
}
