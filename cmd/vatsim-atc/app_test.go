package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

type staticSource struct{ snapshot *vatsim.Snapshot }

func (s staticSource) Snapshot(context.Context) (*vatsim.Snapshot, error) { return s.snapshot, nil }

func atcSnapshot() *vatsim.Snapshot {
	return &vatsim.Snapshot{
		General: vatsim.GeneralData{UpdateTimestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		Controllers: []vatsim.Controller{
			{Callsign: "LAX_APP", Frequency: "124.500", Facility: 5, Rating: 5, Name: "Jane Doe", CID: 100},
			{Callsign: "SAN_TWR", Frequency: "118.300", Facility: 4, Rating: 3, TextAtis: []string{"San Diego Tower"}},
		},
		Atis: []vatsim.Atis{
			{Callsign: "KSAN_ATIS", Frequency: "134.800", Facility: 4, AtisCode: "B",
				TextAtis: []string{"SAN INFO B", "WIND 270 AT 8 [ALTIMETER 2992]"}},
		},
		Facilities: []vatsim.ReferenceItem{
			{ID: 4, Short: "TWR", Long: "Tower"},
			{ID: 5, Short: "APP", Long: "Approach/Departure"},
		},
		Ratings: []vatsim.ReferenceItem{
			{ID: 3, Short: "S2", Long: "Tower Controller"},
			{ID: 5, Short: "C1", Long: "Enroute Controller"},
		},
	}
}

// TestStationsFrom tests that controllers precede ATIS in feed order.
func TestStationsFrom(t *testing.T) {
	stations := stationsFrom(atcSnapshot())

	expected := []string{"LAX_APP", "SAN_TWR", "KSAN_ATIS"}
	if len(stations) != len(expected) {
		t.Fatalf("Expected %d stations, got %d", len(expected), len(stations))
	}
	for i, cs := range expected {
		if stations[i].Callsign != cs {
			t.Errorf("Expected station %d to be %s, got %s", i, cs, stations[i].Callsign)
		}
	}
	if stations[1].IsAtis || !stations[2].IsAtis {
		t.Error("Expected only the ATIS entry to be flagged")
	}
	if stations[2].AtisCode != "B" {
		t.Errorf("Expected ATIS code B, got %q", stations[2].AtisCode)
	}
}

// TestDescribeStation tests the detail pane content.
func TestDescribeStation(t *testing.T) {
	s := atcSnapshot()
	stations := stationsFrom(s)
	now := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)

	t.Run("Controller uses reference names", func(t *testing.T) {
		text := describeStation(stations[0], s, now)
		for _, want := range []string{"LAX_APP", "124.500", "Approach/Departure", "Enroute Controller", "Jane Doe", "No ATIS text"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected detail to contain %q, got:\n%s", want, text)
			}
		}
	})

	t.Run("Unknown codes fall back to the number", func(t *testing.T) {
		st := stations[0]
		st.Facility = 42
		if text := describeStation(st, s, now); !strings.Contains(text, "42") {
			t.Errorf("Expected code 42 in detail, got:\n%s", text)
		}
	})

	t.Run("ATIS text is escaped", func(t *testing.T) {
		text := describeStation(stations[2], s, now)
		if !strings.Contains(text, "INFO B") {
			t.Errorf("Expected ATIS letter in detail, got:\n%s", text)
		}
		if !strings.Contains(text, "[ALTIMETER 2992[]") {
			t.Errorf("Expected bracketed text to be escaped, got:\n%s", text)
		}
	})

	t.Run("Online duration", func(t *testing.T) {
		st := stations[0]
		st.LogonTime = now.Add(-90 * time.Minute)
		if text := describeStation(st, s, now); !strings.Contains(text, "1h30m0s") {
			t.Errorf("Expected online duration, got:\n%s", text)
		}
	})
}

// TestRender tests list population and selection persistence.
func TestRender(t *testing.T) {
	app := NewApp(&AppConfig{Live: staticSource{atcSnapshot()}, Log: logger.Nop(), Refresh: time.Second})

	app.apply(atcSnapshot())
	app.render()

	if n := app.list.GetItemCount(); n != 3 {
		t.Fatalf("Expected 3 list items, got %d", n)
	}

	app.list.SetCurrentItem(1)
	if app.selected != "SAN_TWR" {
		t.Errorf("Expected SAN_TWR selected, got %s", app.selected)
	}

	// SAN_TWR moves to index 0 once LAX_APP logs off
	next := atcSnapshot()
	next.Controllers = next.Controllers[1:]
	app.apply(next)
	app.render()

	if got := app.list.GetCurrentItem(); got != 0 {
		t.Errorf("Expected selection to follow SAN_TWR to index 0, got %d", got)
	}
	if !strings.Contains(app.detail.GetText(true), "SAN_TWR") {
		t.Errorf("Expected SAN_TWR detail, got:\n%s", app.detail.GetText(true))
	}
	if !strings.Contains(app.status.GetText(true), "1 controllers") {
		t.Errorf("Expected status line to count controllers, got %q", app.status.GetText(true))
	}
}

// TestHandleKeyboard tests key bindings.
func TestHandleKeyboard(t *testing.T) {
	app := NewApp(&AppConfig{Live: staticSource{atcSnapshot()}, Refresh: time.Second})

	if ev := app.handleKeyboard(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)); ev != nil {
		t.Error("Expected r to be consumed")
	}
	select {
	case <-app.refreshChan:
	default:
		t.Error("Expected refresh to be requested")
	}

	app.requestRefresh()
	app.requestRefresh()
	if len(app.refreshChan) != 1 {
		t.Errorf("Expected refresh requests to coalesce, got %d", len(app.refreshChan))
	}

	if ev := app.handleKeyboard(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone)); ev == nil || ev.Key() != tcell.KeyDown {
		t.Error("Expected j to map to down")
	}

	if ev := app.handleKeyboard(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)); ev == nil {
		t.Error("Expected unbound keys to pass through")
	}
}
