// Package devserver exposes a compiled tool app over a local HTTP API
// for development: browsing the schema, invoking tools through the
// string envelope, inspecting recent calls, and following a live call
// feed.
package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/petal-labs/pollen/runtime"
	"github.com/petal-labs/pollen/schema"
	"github.com/petal-labs/pollen/sse"
	"github.com/petal-labs/pollen/wire"
)

// Config configures a Server instance.
type Config struct {
	Dispatcher *runtime.Dispatcher
	History    runtime.HistoryStore
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the development HTTP API around a dispatcher.
type Server struct {
	dispatcher *runtime.Dispatcher
	history    runtime.HistoryStore
	events     *sse.Hub
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("devserver: dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	return &Server{
		dispatcher: cfg.Dispatcher,
		history:    cfg.History,
		events:     sse.NewHub(),
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}, nil
}

// Close disconnects event stream subscribers. Call it before shutting
// the HTTP server down so open streams do not hold up graceful
// shutdown.
func (s *Server) Close() {
	s.events.Close()
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API routes onto an existing mux. Use this
// when composing with other handlers.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/schema.proto", s.handleSchemaProto)
	mux.HandleFunc("POST /api/tools/call", s.handleCall)
	mux.HandleFunc("GET /api/calls", s.handleListCalls)
	mux.Handle("GET /api/events", sse.Handler(s.events))
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"app":    s.dispatcher.Bundle().App(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Bundle().Tools())
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Bundle().Service())
}

func (s *Server) handleSchemaProto(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.dispatcher.Bundle().RenderProto()))
}

// handleCall decodes a wire envelope, dispatches it, and returns the
// response envelope. Dispatch failures ride in the envelope with a
// 200 status; only transport problems map to HTTP errors.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req wire.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isMaxBytesError(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	start := time.Now()
	resp := s.dispatcher.Dispatch(r.Context(), req)
	s.events.Publish("call", callEvent{
		Tool:       resp.ToolName,
		CallID:     resp.CallID,
		Kind:       resp.Kind,
		Error:      resp.Error,
		DurationMS: time.Since(start).Milliseconds(),
		Time:       start.UTC(),
	})
	writeJSON(w, http.StatusOK, resp)
}

// callEvent is the payload published on the live event feed for each
// dispatched call. It carries the outcome only; full results are
// served by /api/calls.
type callEvent struct {
	Tool       string            `json:"tool_name"`
	CallID     string            `json:"call_id"`
	Kind       schema.ReturnKind `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Time       time.Time         `json:"time"`
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []runtime.CallRecord{})
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if recs == nil {
		recs = []runtime.CallRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}

// isMaxBytesError checks if the error is from http.MaxBytesReader.
func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
