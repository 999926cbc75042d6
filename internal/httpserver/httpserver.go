// Package httpserver exposes an mcp.Handler over HTTP, one JSON-RPC message
// per POST, next to info and probe endpoints.
package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// MCPPath is the JSON-RPC endpoint.
	MCPPath       = "/mcp-jenkins"
	HealthPath    = "/health"
	ReadinessPath = "/readiness"

	// SessionHeader carries the session id handed out on initialize.
	SessionHeader = "Mcp-Session-Id"

	maxBodyBytes = 10 << 20
)

// Options describes what GET / reports.
type Options struct {
	Name            string
	Version         string
	ProtocolVersion string
	JenkinsURL      string
}

// ReadyFunc reports whether the server should receive traffic.
type ReadyFunc func(ctx context.Context) error

// Server routes HTTP requests to an mcp.Handler.
type Server struct {
	handler mcp.Handler
	opts    Options
	ready   ReadyFunc
	log     zerolog.Logger
	router  *chi.Mux
}

// New builds the router. A nil ready func always reports ready.
func New(h mcp.Handler, opts Options, ready ReadyFunc, logger zerolog.Logger) *Server {
	s := &Server{
		handler: h,
		opts:    opts,
		ready:   ready,
		log:     logger,
		router:  chi.NewRouter(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleInfo)
	s.router.Get(HealthPath, s.handleHealth)
	s.router.Get(ReadinessPath, s.handleReadiness)
	s.router.Get(MCPPath, s.handleDescriptor)
	s.router.Post(MCPPath, s.handleMCP)

	return s
}

// Router exposes the root HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	mcpURL := baseURL(r) + MCPPath
	writeJSON(w, http.StatusOK, map[string]any{
		"name":             s.opts.Name,
		"version":          s.opts.Version,
		"protocol_version": s.opts.ProtocolVersion,
		"status":           "running",
		"jenkins_url":      s.opts.JenkinsURL,
		"mcp_endpoint":     MCPPath,
		"mcp_url":          mcpURL,
		"health":           HealthPath,
		"readiness":        ReadinessPath,
		"vs_code_config": map[string]any{
			"servers": map[string]any{
				"jenkins": map[string]any{
					"type": "http",
					"url":  mcpURL,
				},
			},
		},
	})
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoint":         MCPPath,
		"transport":        "http",
		"protocol_version": s.opts.ProtocolVersion,
		"methods":          []string{"initialize", "ping", "tools/list", "tools/call"},
		"usage":            "POST one JSON-RPC 2.0 message per request",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mcp.NewErrorResponse(nil, mcp.ParseError, "Parse error: "+err.Error()))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Warn().Err(err).Msg("invalid JSON-RPC body")
		writeJSON(w, http.StatusOK, mcp.NewErrorResponse(nil, mcp.ParseError, "Parse error: "+err.Error()))
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusOK, mcp.NewErrorResponse(req.ID, mcp.InvalidRequest, "Invalid request: missing method"))
		return
	}

	resp := s.handler.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if req.Method == "initialize" && resp.Error == nil {
		w.Header().Set(SessionHeader, uuid.NewString())
	}
	writeJSON(w, http.StatusOK, resp)
}

// baseURL rebuilds the externally visible origin, honoring a TLS-terminating proxy.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
