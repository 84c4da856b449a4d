package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/vatsim-feeds/pkg/geo"
)

// Terminal characters are roughly twice as tall as they are wide, so X
// offsets are stretched by 1/aspectRatio to keep range rings round.
const aspectRatio = 0.5

// scope is the drawable area of the radar and the range it represents.
type scope struct {
	width, height int
	center        geo.Point
	radiusMiles   float64
}

// scopeSize derives the scope dimensions from the terminal size, leaving room
// for the info panel and pilot list.
func scopeSize(termWidth, termHeight int) (int, int) {
	w := termWidth - 40
	if w < 60 {
		w = 60
	}
	h := termHeight - 12
	if h < 20 {
		h = 20
	}
	return w, h
}

// centerCell returns the grid cell of the scope center.
func (s scope) centerCell() (int, int) {
	return s.width / 2, s.height / 2
}

// scale returns grid rows per mile.
func (s scope) scale() float64 {
	maxY := float64(s.height/2 - 1)
	maxX := float64(s.width/2-1) * aspectRatio
	return math.Min(maxX, maxY) / s.radiusMiles
}

// radarToScreen converts a position to a grid cell. ok is false when the
// position is beyond the radius or falls off the grid.
func radarToScreen(s scope, lat, lon float64) (x, y int, ok bool) {
	miles := geo.Distance(s.center.Latitude, s.center.Longitude, lat, lon)
	if miles > s.radiusMiles {
		return -1, -1, false
	}
	bearing := geo.Bearing(s.center.Latitude, s.center.Longitude, lat, lon) * geo.DegreesToRadians
	screenDist := miles * s.scale()

	cx, cy := s.centerCell()
	x = cx + int(math.Round(screenDist*math.Sin(bearing)/aspectRatio))
	y = cy - int(math.Round(screenDist*math.Cos(bearing)))

	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return -1, -1, false
	}
	return x, y, true
}

// ringDistances picks up to four evenly spaced range rings inside the radius.
func ringDistances(radius float64) []float64 {
	for _, interval := range []float64{5, 10, 25, 50, 100, 250, 500, 1000} {
		if radius/interval <= 4 {
			var rings []float64
			for d := interval; d < radius; d += interval {
				rings = append(rings, d)
			}
			return rings
		}
	}
	return nil
}

func newGrid(width, height int) [][]rune {
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	return grid
}

// drawCircle draws a ring with the midpoint circle algorithm, stretching X
// by the aspect ratio.
func drawCircle(grid [][]rune, cx, cy, radius int, char rune) {
	x, y, err := radius, 0, 0
	for x >= y {
		xs := int(float64(x) / aspectRatio)
		ys := int(float64(y) / aspectRatio)

		setCell(grid, cx+xs, cy+y, char)
		setCell(grid, cx+ys, cy+x, char)
		setCell(grid, cx-ys, cy+x, char)
		setCell(grid, cx-xs, cy+y, char)
		setCell(grid, cx-xs, cy-y, char)
		setCell(grid, cx-ys, cy-x, char)
		setCell(grid, cx+ys, cy-x, char)
		setCell(grid, cx+xs, cy-y, char)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// setCell writes char if the cell is in bounds and holds blank or ring.
func setCell(grid [][]rune, x, y int, char rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
		if grid[y][x] == ' ' || grid[y][x] == '·' {
			grid[y][x] = char
		}
	}
}

// drawVector draws a short heading line whose length grows with groundspeed.
func drawVector(grid [][]rune, x, y, heading, groundspeed int) {
	length := groundspeed/150 + 1
	if length > 4 {
		length = 4
	}
	rad := float64(heading) * geo.DegreesToRadians
	for i := 1; i <= length; i++ {
		dx := int(float64(i) * math.Sin(rad) / aspectRatio)
		dy := -int(float64(i) * math.Cos(rad))
		char := '-'
		if i == length {
			char = '→'
		}
		setCell(grid, x+dx, y+dy, char)
	}
}

var (
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	centerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	pilotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	groundStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	ringStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	vectorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

// renderScope draws the rings, cardinal marks and pilots onto a bordered grid.
func (m model) renderScope() string {
	width, height := scopeSize(m.width, m.height)
	s := scope{width: width, height: height, center: m.center, radiusMiles: m.radius}
	grid := newGrid(width, height)
	cx, cy := s.centerCell()
	scale := s.scale()

	for _, d := range ringDistances(m.radius) {
		r := int(d * scale)
		drawCircle(grid, cx, cy, r, '·')
		label := fmt.Sprintf("%.0f", d)
		for i, ch := range label {
			setCell(grid, cx+1+i, cy-r, ch)
		}
	}

	edge := int(m.radius * scale)
	setCell(grid, cx, cy-edge, 'N')
	setCell(grid, cx, cy+edge, 'S')
	setCell(grid, cx+int(float64(edge)/aspectRatio), cy, 'E')
	setCell(grid, cx-int(float64(edge)/aspectRatio), cy, 'W')
	grid[cy][cx] = '✈'

	type label struct {
		x, y int
		text string
	}
	var labels []label
	for i, pv := range m.pilots {
		x, y, ok := radarToScreen(s, pv.pilot.Latitude, pv.pilot.Longitude)
		if !ok {
			continue
		}
		switch {
		case i == m.selected:
			grid[y][x] = '●'
			labels = append(labels, label{x + 2, y, pv.pilot.Callsign})
		case pv.pilot.Groundspeed < groundSpeedThreshold:
			setCell(grid, x, y, '▫')
		default:
			setCell(grid, x, y, '○')
		}
		if pv.pilot.Groundspeed >= groundSpeedThreshold {
			drawVector(grid, x, y, pv.pilot.Heading, pv.pilot.Groundspeed)
		}
	}
	for _, l := range labels {
		for i, ch := range l.text {
			setCell(grid, l.x+i, l.y, ch)
		}
	}

	var out strings.Builder
	out.WriteString(borderStyle.Render("┌" + strings.Repeat("─", width) + "┐"))
	out.WriteString("\n")
	for y := range grid {
		out.WriteString(borderStyle.Render("│"))
		for _, ch := range grid[y] {
			out.WriteString(styleCell(ch))
		}
		out.WriteString(borderStyle.Render("│"))
		out.WriteString("\n")
	}
	out.WriteString(borderStyle.Render("└" + strings.Repeat("─", width) + "┘"))
	return out.String()
}

func styleCell(ch rune) string {
	switch ch {
	case ' ':
		return " "
	case '✈':
		return centerStyle.Render(string(ch))
	case '●':
		return selectedStyle.Render(string(ch))
	case '○':
		return pilotStyle.Render(string(ch))
	case '▫':
		return groundStyle.Render(string(ch))
	case '·':
		return ringStyle.Render(string(ch))
	case '-', '→':
		return vectorStyle.Render(string(ch))
	default:
		return labelStyle.Render(string(ch))
	}
}
