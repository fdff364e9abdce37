// Package http exposes sessions, the process diagram and the room inventory over HTTP.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/bpmnchat/internal/dto"
	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/internal/presentation/graph"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/runner"
	"github.com/aretw0/bpmnchat/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the chat API on top of a session manager.
type Server struct {
	manager      *session.Manager
	inventory    ports.Inventory
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	maxInputSize int
	version      string
}

// Option configures the Server.
type Option func(*Server)

// WithInventory mounts the room inventory API.
func WithInventory(inv ports.Inventory) Option {
	return func(s *Server) {
		s.inventory = inv
	}
}

// WithMetrics mounts /metrics for the collectors gathered by g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize bounds the size of a reply. Defaults to runner.MaxInputSize().
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInputSize = n
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(manager *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		manager:      manager,
		logger:       logging.NewNop(),
		maxInputSize: runner.MaxInputSize(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/graph", s.GetGraph)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Get("/{id}", s.GetSession)
		r.Delete("/{id}", s.EndSession)
		r.Post("/{id}/messages", s.SendMessage)
	})

	if s.inventory != nil {
		r.Route("/api/rooms", func(r chi.Router) {
			r.Get("/available", s.ListAvailable)
			r.Post("/{id}/reserve", s.Reserve)
		})
	}

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type startRequest struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Text string `json:"text"`
}

// StartSession handles POST /sessions. The id is generated when omitted.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, dto.CodeInvalidInput, "invalid request body")
			return
		}
	}
	id := strings.TrimSpace(body.ID)
	if id == "" {
		id = uuid.NewString()
	}

	transcript := &ports.Transcript{}
	state, err := s.manager.Start(r.Context(), id, transcript, nil)
	s.writeTurn(w, r, http.StatusCreated, state, transcript, err)
}

// SendMessage handles POST /sessions/{id}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, dto.CodeInvalidInput, "invalid request body")
		return
	}
	text, err := runner.Sanitize(body.Text, s.maxInputSize)
	if err != nil {
		s.logger.Warn("input rejected", "err", err, "size", len(body.Text))
		s.writeError(w, http.StatusBadRequest, dto.CodeInvalidInput, err.Error())
		return
	}

	transcript := &ports.Transcript{}
	state, err := s.manager.Submit(r.Context(), chi.URLParam(r, "id"), text, transcript, nil)
	s.writeTurn(w, r, http.StatusOK, state, transcript, err)
}

// EndSession handles DELETE /sessions/{id}. With ?purge=true the session is
// also removed from the store.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	transcript := &ports.Transcript{}
	state, err := s.manager.End(r.Context(), id, transcript, nil)
	if err == nil && r.URL.Query().Get("purge") == "true" {
		if err := s.manager.Delete(r.Context(), id); err != nil {
			s.logger.Error("delete failed", "session_id", id, "err", err)
			s.writeError(w, http.StatusInternalServerError, dto.CodeInternal, "failed to delete session")
			return
		}
	}
	s.writeTurn(w, r, http.StatusOK, state, transcript, err)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewSessionView(s.manager.Engine().Graph(), state))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.manager.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetGraph handles GET /graph. It returns Mermaid text, highlighted for
// ?session=<id>, or the node list with ?format=json.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.manager.Engine().Graph()
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, dto.NewGraphView(g))
		return
	}

	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session"); id != "" {
		state, err := s.manager.Load(r.Context(), id)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		overlay = graph.OverlayFromSession(state)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(g, overlay)))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.version != "" {
		resp["version"] = s.version
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeTurn reports the outcome of an engine operation. Dialogue outcomes such
// as an unmatched reply or a failed hook keep status and carry an error code;
// the turns already tell the user what happened.
func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request, status int, state *domain.Session, transcript *ports.Transcript, err error) {
	if err != nil && (state == nil || !dto.Conversational(err)) {
		s.writeFailure(w, err)
		return
	}
	resp := dto.TurnResponse{
		Session: dto.NewSessionView(s.manager.Engine().Graph(), state),
		Turns:   transcript.Turns,
		Error:   dto.ErrorCode(err),
	}
	if resp.Turns == nil {
		resp.Turns = []domain.Turn{}
	}
	if err != nil {
		resp.Message = err.Error()
		s.logger.Debug("dialogue error", "request_id", middleware.GetReqID(r.Context()), "code", resp.Error, "err", err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	code := dto.ErrorCode(err)
	switch code {
	case dto.CodeNotFound, dto.CodeItemNotFound:
		s.writeError(w, http.StatusNotFound, code, err.Error())
	case dto.CodeNotAwaiting, dto.CodeAlreadyStarted:
		s.writeError(w, http.StatusConflict, code, err.Error())
	case dto.CodeNoStartEvent:
		s.writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal error")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
