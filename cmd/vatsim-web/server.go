package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/vatsim-feeds/internal/db"
	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

// PilotStore reads stored pilots.
type PilotStore interface {
	ListPilots(ctx context.Context, f db.Filter) ([]db.Pilot, error)
	GetPilot(ctx context.Context, callsign string) (*db.Pilot, error)
	GetPositions(ctx context.Context, callsign string, limit int) ([]db.Position, error)
}

// ControllerStore reads stored controllers.
type ControllerStore interface {
	ListControllers(ctx context.Context) ([]db.Controller, error)
}

// FlightPlanStore reads stored flight plans.
type FlightPlanStore interface {
	GetLatestFlightPlan(ctx context.Context, callsign string) (*db.FlightPlan, error)
}

// StatsStore reports collector statistics.
type StatsStore interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// Deps wires a Server.
type Deps struct {
	Pilots      PilotStore
	Controllers ControllerStore
	FlightPlans FlightPlanStore
	Stats       StatsStore
	Airports    *geo.Table

	// Healthy reports whether the database is reachable
	Healthy func(ctx context.Context) bool

	AllowedOrigins []string
	Log            *logger.Logger
}

// Server holds the HTTP router and its dependencies
type Server struct {
	Deps
	router *chi.Mux
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	deps.Log = logger.OrNop(deps.Log)
	if deps.Healthy == nil {
		deps.Healthy = func(context.Context) bool { return true }
	}
	s := &Server{Deps: deps, router: chi.NewRouter()}
	s.setupRoutes()
	return s
}

// ServeHTTP makes Server an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pilots", s.handleListPilots)
		r.Route("/pilots/{callsign}", func(r chi.Router) {
			r.Get("/", s.handleGetPilot)
			r.Get("/positions", s.handleGetPositions)
			r.Get("/flightplan", s.handleGetFlightPlan)
		})
		r.Get("/controllers", s.handleListControllers)
		r.Get("/airports/{ident}", s.handleGetAirport)
		r.Get("/distance", s.handleDistance)
		r.Get("/stats", s.handleStats)
	})
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Log.Info("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.Healthy(r.Context()) {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleListPilots serves /pilots?near=KSAN&radius=50&limit=20&offline=true.
func (s *Server) handleListPilots(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pilots, err := s.Pilots.ListPilots(r.Context(), f)
	if err != nil {
		s.Log.Error("failed to list pilots", logger.Error(err))
		http.Error(w, "Failed to get pilots", http.StatusInternalServerError)
		return
	}
	if pilots == nil {
		pilots = []db.Pilot{}
	}

	resp := map[string]interface{}{
		"pilots": pilots,
		"count":  len(pilots),
	}
	if f.RadiusMiles > 0 {
		resp["center"] = f.Center
		resp["radius_miles"] = f.RadiusMiles
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) parseFilter(r *http.Request) (db.Filter, error) {
	q := r.URL.Query()
	var f db.Filter

	if v := q.Get("offline"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("invalid offline flag")
		}
		f.IncludeOffline = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}

	near, radius := q.Get("near"), q.Get("radius")
	if radius != "" && near == "" {
		return f, errors.New("radius requires near")
	}
	if near != "" {
		p, err := s.Airports.Lookup(strings.ToUpper(near))
		if err != nil {
			return f, err
		}
		f.Center = p
		f.RadiusMiles = 50
		if radius != "" {
			miles, err := strconv.ParseFloat(radius, 64)
			if err != nil || miles <= 0 {
				return f, errors.New("invalid radius")
			}
			f.RadiusMiles = miles
		}
	}
	return f, nil
}

func (s *Server) handleGetPilot(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))

	pilot, err := s.Pilots.GetPilot(r.Context(), callsign)
	if err != nil {
		s.Log.Error("failed to get pilot", logger.String("callsign", callsign), logger.Error(err))
		http.Error(w, "Failed to get pilot", http.StatusInternalServerError)
		return
	}
	if pilot == nil {
		http.Error(w, "Pilot not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, pilot)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	positions, err := s.Pilots.GetPositions(r.Context(), callsign, limit)
	if err != nil {
		s.Log.Error("failed to get positions", logger.String("callsign", callsign), logger.Error(err))
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []db.Position{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"callsign":  callsign,
		"positions": positions,
		"count":     len(positions),
	})
}

func (s *Server) handleGetFlightPlan(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))

	fp, err := s.FlightPlans.GetLatestFlightPlan(r.Context(), callsign)
	if err != nil {
		s.Log.Error("failed to get flight plan", logger.String("callsign", callsign), logger.Error(err))
		http.Error(w, "Failed to get flight plan", http.StatusInternalServerError)
		return
	}
	if fp == nil {
		http.Error(w, "Flight plan not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, fp)
}

func (s *Server) handleListControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := s.Controllers.ListControllers(r.Context())
	if err != nil {
		s.Log.Error("failed to list controllers", logger.Error(err))
		http.Error(w, "Failed to get controllers", http.StatusInternalServerError)
		return
	}
	if controllers == nil {
		controllers = []db.Controller{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"controllers": controllers,
		"count":       len(controllers),
	})
}

func (s *Server) handleGetAirport(w http.ResponseWriter, r *http.Request) {
	p, err := s.Airports.Lookup(strings.ToUpper(chi.URLParam(r, "ident")))
	if err != nil {
		http.Error(w, "Airport not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// handleDistance serves /distance?from=KSAN&to=KLAX.
func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromID, toID := strings.ToUpper(q.Get("from")), strings.ToUpper(q.Get("to"))
	if fromID == "" || toID == "" {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}

	points, err := s.Airports.Resolve([]string{fromID, toID})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	from, to := points[0], points[1]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from,
		"to":      to,
		"miles":   from.DistanceTo(to),
		"bearing": geo.Bearing(from.Latitude, from.Longitude, to.Latitude, to.Longitude),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats.GetStats(r.Context())
	if err != nil {
		s.Log.Error("failed to get stats", logger.Error(err))
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
