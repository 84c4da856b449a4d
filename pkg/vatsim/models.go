package vatsim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the discovery document served at StatusURL.
type Status struct {
	Data  StatusData `json:"data"`
	User  []string   `json:"user"`
	Metar []string   `json:"metar"`
}

// StatusData lists the mirror URLs for each feed type.
// Only V3 and Transceivers are used by LiveClient.
type StatusData struct {
	V3              []string `json:"v3"`
	Transceivers    []string `json:"transceivers"`
	Servers         []string `json:"servers"`
	ServersSweatbox []string `json:"servers_sweatbox"`
	ServersAll      []string `json:"servers_all"`
}

// An absent list decodes to nil while "[]" decodes to an empty slice, which
// keeps a malformed document apart from an exhausted mirror set.
func (s *Status) validate() error {
	if s.Data.V3 == nil {
		return errors.New("missing field data.v3")
	}
	if s.Data.Transceivers == nil {
		return errors.New("missing field data.transceivers")
	}
	return nil
}

// Snapshot is the full state of the network returned by one v3 fetch.
// Pilots and Controllers are sorted by callsign.
type Snapshot struct {
	General         GeneralData         `json:"general"`
	Pilots          []Pilot             `json:"pilots"`
	Controllers     []Controller        `json:"controllers"`
	Atis            []Atis              `json:"atis"`
	Servers         []Server            `json:"servers"`
	Prefiles        []Prefile           `json:"prefiles"`
	Facilities      []ReferenceItem     `json:"facilities"`
	Ratings         []ReferenceItem     `json:"ratings"`
	PilotRatings    []ReferenceNameItem `json:"pilot_ratings"`
	MilitaryRatings []ReferenceNameItem `json:"military_ratings"`
}

func (s *Snapshot) validate() error {
	switch {
	case s.General.UpdateTimestamp.IsZero():
		return errors.New("missing field general.update_timestamp")
	case s.Pilots == nil:
		return errors.New("missing field pilots")
	case s.Controllers == nil:
		return errors.New("missing field controllers")
	case s.Atis == nil:
		return errors.New("missing field atis")
	case s.Servers == nil:
		return errors.New("missing field servers")
	}
	return nil
}

// sortByCallsign orders pilots and controllers by callsign, keeping the
// upstream relative order of equal callsigns.
func (s *Snapshot) sortByCallsign() {
	sort.SliceStable(s.Pilots, func(i, j int) bool {
		return strings.Compare(s.Pilots[i].Callsign, s.Pilots[j].Callsign) < 0
	})
	sort.SliceStable(s.Controllers, func(i, j int) bool {
		return strings.Compare(s.Controllers[i].Callsign, s.Controllers[j].Callsign) < 0
	})
}

// Pilot returns the pilot connected as callsign.
func (s *Snapshot) Pilot(callsign string) (Pilot, bool) {
	i := sort.Search(len(s.Pilots), func(i int) bool { return s.Pilots[i].Callsign >= callsign })
	if i < len(s.Pilots) && s.Pilots[i].Callsign == callsign {
		return s.Pilots[i], true
	}
	return Pilot{}, false
}

// Controller returns the controller connected as callsign.
func (s *Snapshot) Controller(callsign string) (Controller, bool) {
	i := sort.Search(len(s.Controllers), func(i int) bool { return s.Controllers[i].Callsign >= callsign })
	if i < len(s.Controllers) && s.Controllers[i].Callsign == callsign {
		return s.Controllers[i], true
	}
	return Controller{}, false
}

// FacilityName returns the long name for a facility code, or the code itself.
func (s *Snapshot) FacilityName(code int) string {
	return referenceName(s.Facilities, code)
}

// RatingName returns the long name for a controller rating code.
func (s *Snapshot) RatingName(code int) string {
	return referenceName(s.Ratings, code)
}

func referenceName(items []ReferenceItem, code int) string {
	for _, item := range items {
		if item.ID == code {
			return item.Long
		}
	}
	return fmt.Sprintf("%d", code)
}

// GeneralData is the snapshot header.
type GeneralData struct {
	Version          int       `json:"version"`
	Reload           int       `json:"reload"`
	Update           string    `json:"update"`
	UpdateTimestamp  time.Time `json:"update_timestamp"`
	ConnectedClients int       `json:"connected_clients"`
	UniqueUsers      int       `json:"unique_users"`
}

// Pilot is a connected aircraft.
type Pilot struct {
	CID            int64       `json:"cid"`
	Name           string      `json:"name"`
	Callsign       string      `json:"callsign"`
	Server         string      `json:"server"`
	PilotRating    int         `json:"pilot_rating"`
	MilitaryRating int         `json:"military_rating"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	Altitude       int         `json:"altitude"`
	Groundspeed    int         `json:"groundspeed"`
	Transponder    string      `json:"transponder"`
	Heading        int         `json:"heading"`
	QNHInHg        float64     `json:"qnh_i_hg"`
	QNHMb          int         `json:"qnh_mb"`
	FlightPlan     *FlightPlan `json:"flight_plan"`
	LogonTime      time.Time   `json:"logon_time"`
	LastUpdated    time.Time   `json:"last_updated"`
}

// FlightPlan is the plan filed by a connected or prefiled pilot.
type FlightPlan struct {
	FlightRules         string `json:"flight_rules"`
	Aircraft            string `json:"aircraft"`
	AircraftFAA         string `json:"aircraft_faa"`
	AircraftShort       string `json:"aircraft_short"`
	Departure           string `json:"departure"`
	Arrival             string `json:"arrival"`
	Alternate           string `json:"alternate"`
	CruiseTAS           string `json:"cruise_tas"`
	Altitude            string `json:"altitude"`
	DepTime             string `json:"deptime"`
	EnrouteTime         string `json:"enroute_time"`
	FuelTime            string `json:"fuel_time"`
	Remarks             string `json:"remarks"`
	Route               string `json:"route"`
	RevisionID          int    `json:"revision_id"`
	AssignedTransponder string `json:"assigned_transponder"`
}

// Prefile is a flight plan filed by a pilot who is not yet connected.
type Prefile struct {
	CID         int64       `json:"cid"`
	Name        string      `json:"name"`
	Callsign    string      `json:"callsign"`
	FlightPlan  *FlightPlan `json:"flight_plan"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Controller is a connected ATC position.
type Controller struct {
	CID         int64     `json:"cid"`
	Name        string    `json:"name"`
	Callsign    string    `json:"callsign"`
	Frequency   string    `json:"frequency"`
	Facility    int       `json:"facility"`
	Rating      int       `json:"rating"`
	Server      string    `json:"server"`
	VisualRange int       `json:"visual_range"`
	TextAtis    []string  `json:"text_atis"`
	LastUpdated time.Time `json:"last_updated"`
	LogonTime   time.Time `json:"logon_time"`
}

// Atis is a connected ATIS station.
type Atis struct {
	CID         int64     `json:"cid"`
	Name        string    `json:"name"`
	Callsign    string    `json:"callsign"`
	Frequency   string    `json:"frequency"`
	Facility    int       `json:"facility"`
	Rating      int       `json:"rating"`
	Server      string    `json:"server"`
	VisualRange int       `json:"visual_range"`
	AtisCode    string    `json:"atis_code"`
	TextAtis    []string  `json:"text_atis"`
	LastUpdated time.Time `json:"last_updated"`
	LogonTime   time.Time `json:"logon_time"`
}

// Server describes an FSD server.
type Server struct {
	Ident                    string `json:"ident"`
	HostnameOrIP             string `json:"hostname_or_ip"`
	Location                 string `json:"location"`
	Name                     string `json:"name"`
	ClientsConnectionAllowed int    `json:"clients_connection_allowed"`
	ClientConnectionsAllowed bool   `json:"client_connections_allowed"`
	IsSweatbox               bool   `json:"is_sweatbox"`
}

// ReferenceItem maps a facility or rating code to its names.
type ReferenceItem struct {
	ID    int    `json:"id"`
	Short string `json:"short"`
	Long  string `json:"long"`
}

// ReferenceNameItem maps a pilot or military rating code to its names.
type ReferenceNameItem struct {
	ID        int    `json:"id"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
}

// TransceiverSet holds the radios of one connected callsign.
type TransceiverSet struct {
	Callsign     string        `json:"callsign"`
	Transceivers []Transceiver `json:"transceivers"`
}

// Primary returns the first transceiver, conventionally COM1.
func (t TransceiverSet) Primary() (Transceiver, bool) {
	if len(t.Transceivers) == 0 {
		return Transceiver{}, false
	}
	return t.Transceivers[0], true
}

// Transceiver is a single radio. Frequency is in Hz.
type Transceiver struct {
	ID         int     `json:"id"`
	Frequency  uint64  `json:"frequency"`
	LatDeg     float64 `json:"latDeg"`
	LonDeg     float64 `json:"lonDeg"`
	HeightMslM float64 `json:"heightMslM"`
	HeightAglM float64 `json:"heightAglM"`
}

// FrequencyMHz formats the transceiver frequency as "123.450".
func (t Transceiver) FrequencyMHz() string {
	return fmt.Sprintf("%.3f", float64(t.Frequency)/1e6)
}

// UserRatings is the simple ratings summary of a user.
type UserRatings struct {
	ID               string  `json:"id"`
	Rating           int     `json:"rating"`
	PilotRating      int     `json:"pilot_rating"`
	SuspDate         *string `json:"susp_date"`
	RegDate          string  `json:"reg_date"`
	Region           string  `json:"region"`
	Division         string  `json:"division"`
	Subdivision      string  `json:"subdivision"`
	LastRatingChange string  `json:"lastratingchange"`
}

// RatingTimes is the cumulative hours a user has spent per position.
type RatingTimes struct {
	ID    float64 `json:"id"`
	ATC   float64 `json:"atc"`
	Pilot float64 `json:"pilot"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
	C1    float64 `json:"c1"`
	C2    float64 `json:"c2"`
	C3    float64 `json:"c3"`
	I1    float64 `json:"i1"`
	I2    float64 `json:"i2"`
	I3    float64 `json:"i3"`
	SUP   float64 `json:"sup"`
	ADM   float64 `json:"adm"`
}

// Connection is one past network connection.
type Connection struct {
	ID       uint64  `json:"id"`
	VatsimID string  `json:"vatsim_id"`
	Type     int     `json:"type"`
	Rating   int     `json:"rating"`
	Callsign string  `json:"callsign"`
	Start    string  `json:"start"`
	End      *string `json:"end"`
	Server   string  `json:"server"`
}

// AtcSession is one past ATC session with its activity counters.
type AtcSession struct {
	ConnectionID           uint64  `json:"connection_id"`
	Start                  string  `json:"start"`
	End                    string  `json:"end"`
	Server                 string  `json:"server"`
	VatsimID               string  `json:"vatsim_id"`
	Type                   int     `json:"type"`
	Rating                 int     `json:"rating"`
	Callsign               string  `json:"callsign"`
	MinutesOnCallsign      string  `json:"minutes_on_callsign"`
	TotalMinutesOnCallsign float64 `json:"total_minutes_on_callsign"`
	TotalAircraftTracked   uint64  `json:"total_aircraft_tracked"`
	TotalAircraftSeen      uint64  `json:"total_aircraft_seen"`
	TotalFlightsAmended    uint64  `json:"total_flights_amended"`
	TotalHandoffsInitiated uint64  `json:"total_handoffs_initiated"`
	TotalHandoffsReceived  uint64  `json:"total_handoffs_received"`
	TotalHandoffsRefused   uint64  `json:"total_handoffs_refused"`
	TotalSquawksAssigned   uint64  `json:"total_squawks_assigned"`
	TotalCruiseAltsMod     uint64  `json:"total_cruisealts_modified"`
	TotalTempAltsMod       uint64  `json:"total_tempalts_modified"`
	TotalScratchpadMods    uint64  `json:"total_scratchpadmods"`
	AircraftTracked        uint64  `json:"aircrafttracked"`
	AircraftSeen           uint64  `json:"aircraftseen"`
	FlightsAmended         uint64  `json:"flightsamended"`
	HandoffsInitiated      uint64  `json:"handoffsinitiated"`
	HandoffsReceived       uint64  `json:"handoffsreceived"`
	HandoffsRefused        uint64  `json:"handoffsrefused"`
	SquawksAssigned        uint64  `json:"squawksassigned"`
	CruiseAltsModified     uint64  `json:"cruisealtsmodified"`
	TempAltsModified       uint64  `json:"tempaltsmodified"`
	ScratchpadMods         uint64  `json:"scratchpadmods"`
}

// FlightPlanEntry is a historical flight plan from the REST API. Its fields
// differ from the live FlightPlan.
type FlightPlanEntry struct {
	ID                 uint64 `json:"id"`
	ConnectionID       uint64 `json:"connection_id"`
	VatsimID           string `json:"vatsim_id"`
	FlightType         string `json:"flight_type"`
	Callsign           string `json:"callsign"`
	Aircraft           string `json:"aircraft"`
	CruiseSpeed        string `json:"cruisespeed"`
	Dep                string `json:"dep"`
	Arr                string `json:"arr"`
	Alt                string `json:"alt"`
	Altitude           string `json:"altitude"`
	Remarks            string `json:"rmks"`
	Route              string `json:"route"`
	DepTime            string `json:"deptime"`
	HoursEnroute       int    `json:"hrsenroute"`
	MinutesEnroute     int    `json:"minenroute"`
	HoursFuel          int    `json:"hrsfuel"`
	MinutesFuel        int    `json:"minsfuel"`
	Filed              string `json:"filed"`
	AssignedSquawk     string `json:"assignedsquawk"`
	ModifiedByCID      string `json:"modified_by_cid"`
	ModifiedByCallsign string `json:"modified_by_callsign"`
}

// Region is a VATSIM region.
type Region struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Director string `json:"director"`
}

// Facility is a currently staffed ATC facility.
type Facility struct {
	ID        uint64 `json:"id"`
	Callsign  string `json:"callsign"`
	Frequency string `json:"frequency"`
	Facility  int    `json:"facility"`
	Rating    int    `json:"rating"`
	Start     string `json:"start"`
}

// Page is one page of a paginated REST response. Follow Next with a new
// call to read further pages.
type Page[T any] struct {
	Count    uint64  `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *Page[T]) validate() error {
	if p.Results == nil {
		return errors.New("missing field results")
	}
	return nil
}

// HasNext reports whether another page exists.
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}
