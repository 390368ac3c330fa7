package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gaugehub/gauged/internal/engine"
)

// Server is the gauged HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given engine.
func New(eng *engine.Engine, version string) *Server {
	s := &Server{
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handleUpdateConfig)

		r.Get("/total-weight", s.handleTotalWeight)
		r.Post("/compact", s.handleCompact)

		r.Route("/gauges", func(r chi.Router) {
			r.Get("/", s.handleListGauges)
			r.Post("/", s.handleAddGauge)
			r.Get("/count", s.handleGaugeCount)
			r.Get("/id/{id}", s.handleGaugeByID)
			r.Route("/{addr}", func(r chi.Router) {
				r.Get("/weight", s.handleGaugeWeight)
				r.Post("/weight", s.handleChangeWeight)
				r.Get("/relative-weight", s.handleRelativeWeight)
				r.Post("/votes", s.handleVote)
			})
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.engine.DB.Path,
	})
}

// status and code for each engine sentinel. Anything unmatched is a 500.
var errStatus = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{engine.ErrGaugeAlreadyExists, http.StatusConflict, "gauge_already_exists"},
	{engine.ErrGaugeNotFound, http.StatusNotFound, "gauge_not_found"},
	{engine.ErrInvalidVotingRatio, http.StatusUnprocessableEntity, "invalid_voting_ratio"},
	{engine.ErrVoteTooOften, http.StatusUnprocessableEntity, "vote_too_often"},
	{engine.ErrInsufficientVotingRatio, http.StatusUnprocessableEntity, "insufficient_voting_ratio"},
	{engine.ErrLockExpiresTooSoon, http.StatusUnprocessableEntity, "lock_expires_too_soon"},
	{engine.ErrTotalWeightIsZero, http.StatusUnprocessableEntity, "total_weight_is_zero"},
	{engine.ErrTimestampError, http.StatusConflict, "timestamp_error"},
	{engine.ErrArithmeticOverflow, http.StatusUnprocessableEntity, "arithmetic_overflow"},
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	for _, m := range errStatus {
		if errors.Is(err, m.err) {
			status = m.status
			code = m.code
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
