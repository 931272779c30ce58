package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes published results, live worker events and metrics over HTTP.
type Server struct {
	Store    ports.ResultStore
	Streams  *StreamManager
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Option configures the handler built by NewHandler.
type Option func(*Server)

// WithStreams serves events broadcast through sm on GET /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithGatherer serves g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler over store.
func NewHandler(store ports.ResultStore, opts ...Option) http.Handler {
	s := &Server{Store: store, Logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/results", func(r chi.Router) {
		r.Get("/", s.ListResults)
		r.Get("/{key}", s.GetResult)
		r.Delete("/{key}", s.DeleteResult)
		r.Get("/{key}/vertices/{vid}", s.GetVertex)
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrResultNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.Logger.Error(op+" failed", "err", err)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "pie-http",
		"version": strings.TrimSpace(pie.Version),
	})
}

// ListResults handles GET /results.
func (s *Server) ListResults(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Store.List(r.Context())
	if err != nil {
		s.storeError(w, "list", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

// GetResult handles GET /results/{key}: every partition's view, ordered by fragment.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	views, err := s.Store.Load(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.storeError(w, "load", err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

// DeleteResult handles DELETE /results/{key}.
func (s *Server) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.storeError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVertex handles GET /results/{key}/vertices/{vid}, looking the vertex up in
// the view of the partition that owns it.
func (s *Server) GetVertex(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "vid"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid vertex id", http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "key")
	views, err := s.Store.Load(r.Context(), key)
	if err != nil {
		s.storeError(w, "load", err)
		return
	}
	vid := domain.VertexID(id)
	for _, v := range views {
		if value, ok := v.Values[vid]; ok {
			s.writeJSON(w, http.StatusOK, map[string]any{
				"key":         key,
				"vertex":      vid,
				"fragment_id": v.FragmentID,
				"value":       value,
			})
			return
		}
	}
	http.Error(w, fmt.Sprintf("vertex %d not in %q", vid, key), http.StatusNotFound)
}

// SubscribeEvents handles GET /events (SSE). The optional group parameter limits
// the stream to one communication group.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	group := r.URL.Query().Get("group")
	ch, cancel := s.Streams.Subscribe(group)
	defer cancel()
	s.Logger.Info("SSE: client subscribed", "group", group)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: client disconnected", "group", group)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
			flusher.Flush()
		}
	}
}
