// Package geo provides the bundled airport reference table and the
// great-circle distance used to relate live positions to named points.
package geo

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
)

//go:embed airports.csv
var bundledAirports []byte

// ErrNotFound is returned by Lookup for identifiers absent from the table.
var ErrNotFound = errors.New("identifier not found")

// Point is a named location in decimal degrees.
type Point struct {
	// Identifier is the unique key of the point (e.g., "KSAN")
	Identifier string `json:"identifier"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`
}

// DistanceTo returns the whole-mile distance from p to q.
func (p Point) DistanceTo(q Point) float64 {
	return Distance(p.Latitude, p.Longitude, q.Latitude, q.Longitude)
}

// Table is an immutable set of reference points. It is safe for concurrent use.
type Table struct {
	points []Point
	index  map[string]Point
}

// Parse reads rows of "identifier,latitude,longitude". Any malformed row
// fails the whole parse; a partially built table is never returned.
// When an identifier repeats, Lookup returns the last row for it while All
// keeps every row.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.ReuseRecord = true

	t := &Table{index: make(map[string]Point)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse reference data: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if record[0] == "" {
			return nil, fmt.Errorf("parse reference data: line %d: empty identifier", line)
		}
		lat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse reference data: line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parse reference data: line %d: longitude: %w", line, err)
		}

		p := Point{Identifier: record[0], Latitude: lat, Longitude: lon}
		t.points = append(t.points, p)
		t.index[p.Identifier] = p
	}
	return t, nil
}

var bundled = sync.OnceValues(func() (*Table, error) {
	return Parse(bytes.NewReader(bundledAirports))
})

// Bundled returns the airport table compiled into the binary. It is parsed
// on first use and shared afterwards.
func Bundled() (*Table, error) {
	return bundled()
}

// MustBundled is like Bundled but panics if the embedded dataset is corrupt.
func MustBundled() *Table {
	t, err := Bundled()
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the point for identifier.
func (t *Table) Lookup(identifier string) (Point, error) {
	p, ok := t.index[identifier]
	if !ok {
		return Point{}, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	return p, nil
}

// Resolve looks up every identifier, failing on the first unknown one.
func (t *Table) Resolve(identifiers []string) ([]Point, error) {
	points := make([]Point, 0, len(identifiers))
	for _, id := range identifiers {
		p, err := t.Lookup(id)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// All returns a copy of every point in dataset order.
func (t *Table) All() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the number of rows in the dataset.
func (t *Table) Len() int {
	return len(t.points)
}
