package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// SnapshotSource is the part of vatsim.LiveClient the browser reads.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*vatsim.Snapshot, error)
}

// AppConfig holds the application dependencies
type AppConfig struct {
	Live    SnapshotSource
	Log     *logger.Logger
	Logs    *LogManager
	Refresh time.Duration
}

// station is one row of the list: a controller or an ATIS.
type station struct {
	Callsign  string
	Name      string
	CID       int64
	Frequency string
	Facility  int
	Rating    int
	Server    string
	AtisCode  string
	TextAtis  []string
	LogonTime time.Time
	IsAtis    bool
}

// stationsFrom lists controllers then ATIS stations, each in feed order.
func stationsFrom(s *vatsim.Snapshot) []station {
	out := make([]station, 0, len(s.Controllers)+len(s.Atis))
	for _, c := range s.Controllers {
		out = append(out, station{
			Callsign:  c.Callsign,
			Name:      c.Name,
			CID:       c.CID,
			Frequency: c.Frequency,
			Facility:  c.Facility,
			Rating:    c.Rating,
			Server:    c.Server,
			TextAtis:  c.TextAtis,
			LogonTime: c.LogonTime,
		})
	}
	for _, a := range s.Atis {
		out = append(out, station{
			Callsign:  a.Callsign,
			Name:      a.Name,
			CID:       a.CID,
			Frequency: a.Frequency,
			Facility:  a.Facility,
			Rating:    a.Rating,
			Server:    a.Server,
			AtisCode:  a.AtisCode,
			TextAtis:  a.TextAtis,
			LogonTime: a.LogonTime,
			IsAtis:    true,
		})
	}
	return out
}

// describeStation renders the detail pane for st. Facility and rating
// names come from the snapshot's reference tables.
func describeStation(st station, s *vatsim.Snapshot, now time.Time) string {
	var b strings.Builder

	kind := "CONTROLLER"
	if st.IsAtis {
		kind = "ATIS"
	}
	fmt.Fprintf(&b, "[yellow]%s:[-] [white]%s[-]", kind, tview.Escape(st.Callsign))
	if st.AtisCode != "" {
		fmt.Fprintf(&b, " [green]INFO %s[-]", tview.Escape(st.AtisCode))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "[gray]Frequency:[-] [white]%s[-]\n", st.Frequency)
	fmt.Fprintf(&b, "[gray]Facility:[-]  [white]%s[-]\n", tview.Escape(s.FacilityName(st.Facility)))
	fmt.Fprintf(&b, "[gray]Rating:[-]    [white]%s[-]\n", tview.Escape(s.RatingName(st.Rating)))
	fmt.Fprintf(&b, "[gray]Name:[-]      [white]%s[-] [gray](%d)[-]\n", tview.Escape(st.Name), st.CID)
	fmt.Fprintf(&b, "[gray]Server:[-]    [white]%s[-]\n", tview.Escape(st.Server))
	if !st.LogonTime.IsZero() {
		fmt.Fprintf(&b, "[gray]Online:[-]    [white]%s[-] [gray](since %s)[-]\n",
			now.Sub(st.LogonTime).Truncate(time.Minute), st.LogonTime.UTC().Format("15:04Z"))
	}

	b.WriteString("\n")
	if len(st.TextAtis) == 0 {
		b.WriteString("[gray]No ATIS text[-]\n")
	} else {
		for _, line := range st.TextAtis {
			b.WriteString(tview.Escape(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// App is the controller browser.
type App struct {
	live    SnapshotSource
	log     *logger.Logger
	refresh time.Duration

	// UI components
	tviewApp *tview.Application
	list     *tview.List
	detail   *tview.TextView
	status   *tview.TextView
	logs     *LogManager

	// State
	mu       sync.RWMutex
	snapshot *vatsim.Snapshot
	stations []station
	selected string

	refreshChan chan struct{}
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewApp creates a new application instance
func NewApp(cfg *AppConfig) *App {
	a := &App{
		live:        cfg.Live,
		log:         logger.OrNop(cfg.Log),
		refresh:     cfg.Refresh,
		logs:        cfg.Logs,
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
	}
	if a.logs == nil {
		a.logs = NewLogManager(200)
	}
	a.setupUI()
	return a
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.list = tview.NewList().ShowSecondaryText(true)
	a.list.SetBorder(true).SetTitle(" Stations ")
	a.list.SetChangedFunc(func(index int, _, _ string, _ rune) {
		a.showDetail(index)
	})

	a.detail = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	a.detail.SetBorder(true).SetTitle(" Detail ")

	a.status = tview.NewTextView().SetDynamicColors(true)

	a.logs.View().SetChangedFunc(func() { a.tviewApp.Draw() })

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.detail, 0, 6, false).
		AddItem(a.logs.View(), 0, 4, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.list, 0, 4, true).
		AddItem(sidebar, 0, 6, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.tviewApp.SetRoot(root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		a.Stop()
		return nil
	case event.Rune() == 'r':
		a.requestRefresh()
		return nil
	case event.Rune() == 'k':
		return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	case event.Rune() == 'j':
		return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	}
	return event
}

// requestRefresh schedules an immediate fetch; extra requests coalesce.
func (a *App) requestRefresh() {
	select {
	case a.refreshChan <- struct{}{}:
	default:
	}
}

// apply stores a new snapshot. The caller redraws.
func (a *App) apply(s *vatsim.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = s
	a.stations = stationsFrom(s)
}

// render rebuilds the list, keeping the selected callsign when present.
// Must run on the UI goroutine.
func (a *App) render() {
	a.mu.RLock()
	stations := a.stations
	snapshot := a.snapshot
	selected := a.selected
	a.mu.RUnlock()

	a.list.Clear()
	index := 0
	for i, st := range stations {
		label := st.Callsign
		if st.IsAtis && st.AtisCode != "" {
			label += " [" + st.AtisCode + "]"
		}
		a.list.AddItem(tview.Escape(label), st.Frequency+"  "+tview.Escape(st.Name), 0, nil)
		if st.Callsign == selected {
			index = i
		}
	}
	if len(stations) > 0 {
		a.list.SetCurrentItem(index)
		a.showDetail(index)
	} else {
		a.detail.SetText("[gray]No controllers online[-]")
	}

	if snapshot != nil {
		a.status.SetText(fmt.Sprintf(" [yellow]%d[-] controllers  [yellow]%d[-] ATIS  feed %s   [gray]r: refresh  q: quit[-]",
			len(snapshot.Controllers), len(snapshot.Atis),
			snapshot.General.UpdateTimestamp.UTC().Format("15:04:05Z")))
	}
}

func (a *App) showDetail(index int) {
	a.mu.Lock()
	if index < 0 || index >= len(a.stations) {
		a.mu.Unlock()
		return
	}
	st := a.stations[index]
	a.selected = st.Callsign
	snapshot := a.snapshot
	a.mu.Unlock()

	a.detail.SetText(describeStation(st, snapshot, time.Now()))
	a.detail.ScrollToBeginning()
}

// Run starts the application
func (a *App) Run() error {
	go a.updateLoop()
	return a.tviewApp.Run()
}

// updateLoop fetches on every tick and on demand.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()

	a.fetch()
	for {
		select {
		case <-ticker.C:
			a.fetch()
		case <-a.refreshChan:
			a.fetch()
		case <-a.stopChan:
			return
		}
	}
}

func (a *App) fetch() {
	ctx, cancel := context.WithTimeout(context.Background(), a.refresh)
	defer cancel()

	s, err := a.live.Snapshot(ctx)
	if err != nil {
		a.log.Error("failed to fetch snapshot", logger.Error(err))
		return
	}
	a.apply(s)
	a.log.Info("snapshot loaded",
		logger.Int("controllers", len(s.Controllers)),
		logger.Int("atis", len(s.Atis)),
	)
	a.tviewApp.QueueUpdateDraw(a.render)
}

// Stop stops the application. It runs on the UI goroutine, so it must not log:
// log writes trigger a redraw.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.tviewApp.Stop()
	})
}
