package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

const (
	minRadius = 5.0
	maxRadius = 2500.0

	// Pilots slower than this are drawn as ground traffic without a vector
	groundSpeedThreshold = 50

	listRows = 8
)

// SnapshotSource is the part of vatsim.LiveClient the radar reads.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*vatsim.Snapshot, error)
}

type pilotView struct {
	pilot   vatsim.Pilot
	miles   float64
	bearing float64
}

type model struct {
	live     SnapshotSource
	airports *geo.Table
	log      *logger.Logger
	refresh  time.Duration

	center   geo.Point
	radius   float64
	snapshot *vatsim.Snapshot
	pilots   []pilotView
	selected int
	loading  bool
	err      error

	// Airport entry
	inputMode   bool
	inputBuffer string

	width, height int
}

type tickMsg time.Time

type snapshotMsg struct {
	snapshot *vatsim.Snapshot
	err      error
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetch retrieves one snapshot off the UI goroutine.
func fetch(live SnapshotSource, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s, err := live.Snapshot(ctx)
		return snapshotMsg{snapshot: s, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return fetch(m.live, m.refresh)
}

// pilotsInRange keeps pilots within radius miles of center, nearest first.
// Equal distances keep the snapshot's callsign order.
func pilotsInRange(pilots []vatsim.Pilot, center geo.Point, radius float64) []pilotView {
	var out []pilotView
	for _, p := range pilots {
		miles := geo.Distance(center.Latitude, center.Longitude, p.Latitude, p.Longitude)
		if miles > radius {
			continue
		}
		out = append(out, pilotView{
			pilot:   p,
			miles:   miles,
			bearing: geo.Bearing(center.Latitude, center.Longitude, p.Latitude, p.Longitude),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].miles < out[j].miles })
	return out
}

// rebuild refilters the last snapshot, keeping the selected callsign when it
// is still in range.
func (m *model) rebuild() {
	selected := m.selectedCallsign()
	m.pilots = nil
	if m.snapshot != nil {
		m.pilots = pilotsInRange(m.snapshot.Pilots, m.center, m.radius)
	}
	m.selected = 0
	for i, pv := range m.pilots {
		if pv.pilot.Callsign == selected {
			m.selected = i
			break
		}
	}
}

func (m model) selectedCallsign() string {
	if m.selected >= 0 && m.selected < len(m.pilots) {
		return m.pilots[m.selected].pilot.Callsign
	}
	return ""
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		if m.loading {
			return m, tick(m.refresh)
		}
		m.loading = true
		return m, fetch(m.live, m.refresh)

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.log.Warn("snapshot fetch failed", logger.Error(msg.err))
		} else {
			m.err = nil
			m.snapshot = msg.snapshot
			m.rebuild()
			m.log.Debug("snapshot received",
				logger.Int("pilots", len(msg.snapshot.Pilots)),
				logger.Int("in_range", len(m.pilots)),
			)
		}
		return m, tick(m.refresh)

	case tea.KeyMsg:
		if m.inputMode {
			return m.updateInput(msg), nil
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) model {
	switch msg.Type {
	case tea.KeyEnter:
		ident := strings.ToUpper(strings.TrimSpace(m.inputBuffer))
		m.inputMode = false
		m.inputBuffer = ""
		p, err := m.airports.Lookup(ident)
		if err != nil {
			m.err = fmt.Errorf("airport %s: %w", ident, err)
			return m
		}
		m.err = nil
		m.center = p
		m.rebuild()
	case tea.KeyEsc:
		m.inputMode = false
		m.inputBuffer = ""
	case tea.KeyBackspace:
		if len(m.inputBuffer) > 0 {
			m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
		}
	case tea.KeyRunes:
		m.inputBuffer += string(msg.Runes)
	}
	return m
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "a":
		m.inputMode = true
		m.inputBuffer = ""
	case "r":
		if !m.loading {
			m.loading = true
			return m, fetch(m.live, m.refresh)
		}
	case "+", "=":
		m.radius = min(m.radius*1.5, maxRadius)
		m.rebuild()
	case "-", "_":
		m.radius = max(m.radius/1.5, minRadius)
		m.rebuild()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.pilots)-1 {
			m.selected++
		}
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Background(lipgloss.Color("235")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	rowStyle    = lipgloss.NewStyle().Background(lipgloss.Color("237"))
)

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("VATSIM RADAR " + m.center.Identifier))
	s.WriteString("\n\n")

	if m.inputMode {
		s.WriteString(promptStyle.Render("Enter airport code (e.g., KSAN, EGLL):"))
		s.WriteString("\n")
		s.WriteString(inputStyle.Render("> " + m.inputBuffer + "_"))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("ENTER: Submit  ESC: Cancel"))
		return s.String()
	}

	scopeView := m.renderScope()
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, scopeView, "  ", m.renderInfo()))
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n")
	}

	s.WriteString(m.renderPilotList())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: Select  A: Airport  +/-: Radius  R: Refresh  Q: Quit"))
	s.WriteString("\n")
	return s.String()
}

func (m model) renderInfo() string {
	var info strings.Builder

	info.WriteString(headerStyle.Render("SCOPE"))
	info.WriteString("\n\n")
	info.WriteString(fmt.Sprintf("Center: %s\n", m.center.Identifier))
	info.WriteString(fmt.Sprintf("Position: %.4f°, %.4f°\n", m.center.Latitude, m.center.Longitude))
	info.WriteString(fmt.Sprintf("Radius: %.0f mi\n", m.radius))
	info.WriteString(fmt.Sprintf("Pilots: %d in range\n", len(m.pilots)))
	if m.snapshot != nil {
		info.WriteString(fmt.Sprintf("Feed: %s\n", m.snapshot.General.UpdateTimestamp.Format("15:04:05Z")))
	}
	if m.loading {
		info.WriteString(helpStyle.Render("refreshing..."))
	}
	info.WriteString("\n")

	if m.selected < len(m.pilots) {
		pv := m.pilots[m.selected]
		p := pv.pilot
		info.WriteString("\n")
		info.WriteString(headerStyle.Render(p.Callsign))
		info.WriteString("\n")
		info.WriteString(fmt.Sprintf("%s (%d)\n", p.Name, p.CID))
		info.WriteString(fmt.Sprintf("Alt %d ft  GS %d kt\n", p.Altitude, p.Groundspeed))
		info.WriteString(fmt.Sprintf("Hdg %03d  Sqk %s\n", p.Heading, p.Transponder))
		info.WriteString(fmt.Sprintf("%.0f mi at %03.0f°\n", pv.miles, pv.bearing))
		if fp := p.FlightPlan; fp != nil {
			info.WriteString(fmt.Sprintf("%s → %s  %s\n", fp.Departure, fp.Arrival, fp.AircraftShort))
			info.WriteString(fmt.Sprintf("Filed %s ft  %s\n", fp.Altitude, fp.FlightRules))
		}
	}
	return info.String()
}

func (m model) renderPilotList() string {
	var list strings.Builder

	list.WriteString(headerStyle.Render("Pilots in range:"))
	list.WriteString(fmt.Sprintf(" (%d)\n", len(m.pilots)))

	if len(m.pilots) == 0 {
		list.WriteString(helpStyle.Render("  No pilots within " + strconv.FormatFloat(m.radius, 'f', 0, 64) + " mi"))
		list.WriteString("\n")
		return list.String()
	}

	start := 0
	if m.selected >= listRows/2 && len(m.pilots) > listRows {
		start = min(m.selected-listRows/2, len(m.pilots)-listRows)
	}
	end := min(start+listRows, len(m.pilots))

	for i := start; i < end; i++ {
		pv := m.pilots[i]
		prefix := "  "
		if i == m.selected {
			prefix = "→ "
		}
		route := ""
		if fp := pv.pilot.FlightPlan; fp != nil {
			route = fp.Departure + "-" + fp.Arrival
		}
		line := fmt.Sprintf("%s%-10s %6d ft %4d kt %5.0f mi %03.0f°  %s",
			prefix, pv.pilot.Callsign, pv.pilot.Altitude, pv.pilot.Groundspeed, pv.miles, pv.bearing, route)
		if i == m.selected {
			line = rowStyle.Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}
	return list.String()
}
