package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hostdrift/internal/domain"
	"hostdrift/internal/report"
)

// LatestRun is the run id alias for the most recent stored run
const LatestRun = "latest"

// defaultListLimit caps list endpoints when no limit is given
const defaultListLimit = 50

// RunStore is the read side of the run history
type RunStore interface {
	GetRun(ctx context.Context, id string) (*domain.Report, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	HostHistory(ctx context.Context, identity string, limit int) ([]domain.HostRun, error)
}

// Health is the /healthz body
type Health struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler serves run history
type Handler struct {
	store     RunStore
	events    http.Handler
	startedAt time.Time
}

// New creates a handler over store
func New(store RunStore) *Handler {
	return &Handler{store: store, startedAt: time.Now()}
}

// SetEvents attaches the live run notification stream
func (h *Handler) SetEvents(events http.Handler) {
	h.events = events
}

// Router builds the route table. allowedOrigins enables CORS for browser clients on other origins.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         600,
		}))
	}

	r.Get("/healthz", h.Healthz)
	r.Get("/", h.RunIndex)
	r.Get("/runs/{id}", h.RunPage)

	r.Route("/api", func(api chi.Router) {
		api.Get("/runs", h.ListRuns)
		api.Get("/runs/{id}", h.GetRun)
		api.Get("/hosts/{identity}/history", h.HostHistory)
		if h.events != nil {
			api.Handle("/events", h.events)
		}
	})
	return r
}

// Healthz reports liveness
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Health{Status: "ok", StartedAt: h.startedAt}, http.StatusOK)
}

// ListRuns returns run summaries
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, "Invalid limit", err.Error(), http.StatusBadRequest)
		return
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		log.Printf("handler: failed to list runs: %v", err)
		writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	writeJSON(w, runs, http.StatusOK)
}

// GetRun returns one full report
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, run, http.StatusOK)
}

// HostHistory returns one host's outcomes across runs
func (h *Handler) HostHistory(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, "Invalid limit", err.Error(), http.StatusBadRequest)
		return
	}
	history, err := h.store.HostHistory(r.Context(), identity, limit)
	if err != nil {
		log.Printf("handler: failed to load history for %s: %v", identity, err)
		writeError(w, "Failed to load host history", err.Error(), http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		writeError(w, "Not found", "no stored results for "+identity, http.StatusNotFound)
		return
	}
	writeJSON(w, history, http.StatusOK)
}

// RunIndex renders the list of stored runs
func (h *Handler) RunIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context(), defaultListLimit)
	if err != nil {
		log.Printf("handler: failed to list runs: %v", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteRunsHTML(w, runs); err != nil {
		log.Printf("handler: failed to render run index: %v", err)
	}
}

// RunPage renders one run as the drift report page
func (h *Handler) RunPage(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, run); err != nil {
		log.Printf("handler: failed to render run %s: %v", run.ID, err)
	}
}

// loadRun resolves the {id} parameter, writing the error reply itself when it fails
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.Report, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if id == LatestRun {
		runs, err := h.store.ListRuns(ctx, 1)
		if err != nil {
			log.Printf("handler: failed to list runs: %v", err)
			writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
			return nil, false
		}
		if len(runs) == 0 {
			writeError(w, "Not found", "no runs recorded", http.StatusNotFound)
			return nil, false
		}
		id = runs[0].ID
	}

	run, err := h.store.GetRun(ctx, id)
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(w, "Not found", "run "+id+" not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Printf("handler: failed to load run %s: %v", id, err)
		writeError(w, "Failed to load run", err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("handler: %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("handler: failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, message, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: message, Details: details}, statusCode)
}
