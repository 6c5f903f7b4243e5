// Package api serves the read-only ops HTTP surface: health, metrics and
// tracking status.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/good-yellow-bee/modwatch/internal/storage"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// TrackedProjectResponse is one tracked project with its subscriber count.
type TrackedProjectResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	LatestVersion string `json:"latest_version"`
	LastUpdate    string `json:"last_update"`
	Subscribers   int    `json:"subscribers"`
}

// Server is the ops HTTP server.
type Server struct {
	server  *http.Server
	storage storage.Storage
	db      *sql.DB
}

// NewServer creates the ops server on addr. db is used for health checks.
func NewServer(addr string, store storage.Storage, db *sql.DB) *Server {
	s := &Server{storage: store, db: db}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tracked", s.handleTracked)
		r.Get("/channels/{channelID}", s.handleChannel)
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts the ops server.
func (s *Server) Start() error {
	log.Printf("[api] ops server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the ops server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[api] shutting down ops server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, errCodeInternalError, "database unreachable")
			return
		}
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projects, err := s.storage.Projects().List(ctx)
	if err != nil {
		log.Printf("[api] list projects: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "list projects failed")
		return
	}

	resp := make([]TrackedProjectResponse, 0, len(projects))
	for _, p := range projects {
		channels, err := s.storage.Subscriptions().ChannelsFor(ctx, p.ID)
		if err != nil {
			log.Printf("[api] channels for %s: %v", p.ID, err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "list subscribers failed")
			return
		}
		resp = append(resp, TrackedProjectResponse{
			ID:            p.ID,
			Title:         p.Title,
			LatestVersion: p.LatestVersion,
			LastUpdate:    p.LastUpdate.UTC().Format(time.RFC3339),
			Subscribers:   len(channels),
		})
	}
	jsonOK(w, resp)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	ids, err := s.storage.Subscriptions().ProjectsFor(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "no projects tracked in this channel")
			return
		}
		log.Printf("[api] projects for channel %s: %v", channelID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "lookup failed")
		return
	}
	jsonOK(w, ids)
}
