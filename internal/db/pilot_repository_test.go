package db

import (
	"testing"

	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// TestNewPilotRepository tests repository construction.
func TestNewPilotRepository(t *testing.T) {
	airports := []geo.Point{{Identifier: "KSAN", Latitude: 32.7338, Longitude: -117.1933}}
	repo := NewPilotRepository(nil, airports)

	if repo == nil {
		t.Fatal("Expected non-nil repository")
	}
	if len(repo.airports) != 1 || repo.airports[0].Identifier != "KSAN" {
		t.Errorf("Expected KSAN reference airport, got %v", repo.airports)
	}
}

// TestPositionsEqual tests the position equality logic.
func TestPositionsEqual(t *testing.T) {
	tests := []struct {
		name     string
		current  vatsim.Pilot
		prev     pilotPosition
		expected bool
	}{
		{
			name:     "Parked at gate",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193301, Altitude: 17, Groundspeed: 0},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17, GroundspeedKts: 0},
			expected: true,
		},
		{
			name:     "Same position, now taxiing",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193301, Altitude: 17, Groundspeed: 12},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17, GroundspeedKts: 0},
			expected: false,
		},
		{
			name:     "Latitude changed slightly",
			current:  vatsim.Pilot{Latitude: 32.733803, Longitude: -117.193301, Altitude: 17},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17},
			expected: false,
		},
		{
			name:     "Longitude changed",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193400, Altitude: 17},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17},
			expected: false,
		},
		{
			name:     "Altitude changed by 2 feet",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193301, Altitude: 19},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17},
			expected: false,
		},
		{
			name:     "Altitude jitter of 1 foot",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193301, Altitude: 16},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17},
			expected: true,
		},
		{
			name:     "Previously moving, now stopped",
			current:  vatsim.Pilot{Latitude: 32.733801, Longitude: -117.193301, Altitude: 17, Groundspeed: 0},
			prev:     pilotPosition{Latitude: 32.733801, Longitude: -117.193301, AltitudeFt: 17, GroundspeedKts: 20},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := positionsEqual(tt.current, tt.prev); got != tt.expected {
				t.Errorf("positionsEqual() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

// TestApplyFilter tests radius and limit filtering of stored pilots.
func TestApplyFilter(t *testing.T) {
	ksan := geo.Point{Identifier: "KSAN", Latitude: 32.7338, Longitude: -117.1933}
	pilots := func() []Pilot {
		// Ordered by callsign as ListPilots returns them
		return []Pilot{
			{Callsign: "AAL1", Latitude: 33.9416, Longitude: -118.4085}, // KLAX, 95 miles
			{Callsign: "BAW2", Latitude: 51.4700, Longitude: -0.4543},   // London
			{Callsign: "SWA3", Latitude: 32.80, Longitude: -117.20},     // 4 miles
			{Callsign: "UAL4", Latitude: 32.80, Longitude: -117.20},     // 4 miles
		}
	}

	t.Run("No filter", func(t *testing.T) {
		if got := applyFilter(pilots(), Filter{}); len(got) != 4 {
			t.Errorf("Expected 4 pilots, got %d", len(got))
		}
	})

	t.Run("Radius sorts by distance", func(t *testing.T) {
		got := applyFilter(pilots(), Filter{Center: ksan, RadiusMiles: 100})
		if len(got) != 3 {
			t.Fatalf("Expected 3 pilots within 100 miles, got %d", len(got))
		}
		expected := []string{"SWA3", "UAL4", "AAL1"}
		for i, cs := range expected {
			if got[i].Callsign != cs {
				t.Errorf("Position %d: expected %s, got %s", i, cs, got[i].Callsign)
			}
		}
	})

	t.Run("Radius boundary is inclusive", func(t *testing.T) {
		got := applyFilter(pilots(), Filter{Center: ksan, RadiusMiles: 95})
		if len(got) != 3 {
			t.Errorf("Expected KLAX at exactly 95 miles to be included, got %d pilots", len(got))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		got := applyFilter(pilots(), Filter{Limit: 2})
		if len(got) != 2 || got[1].Callsign != "BAW2" {
			t.Errorf("Expected first 2 pilots, got %v", got)
		}
	})
}
