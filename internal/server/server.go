// Package server implements the InsureAI HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/ctxutil"
	"github.com/ashita-ai/insureai/internal/ratelimit"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/service/chat"
	"github.com/ashita-ai/insureai/internal/service/report"
)

// Server is the InsureAI HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer. An empty AdminKeyHash
// disables the /admin routes.
type ServerConfig struct {
	// Required dependencies.
	Store    Store
	JWTMgr   *auth.JWTManager
	Chat     *chat.Service
	Reports  *report.Service
	Searcher search.Searcher
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	AdminKeyHash string
	FAQPath      string
	StoreName    string

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		JWTMgr:              cfg.JWTMgr,
		Chat:                cfg.Chat,
		Reports:             cfg.Reports,
		Searcher:            cfg.Searcher,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		StoreName:           cfg.StoreName,
		FAQPath:             cfg.FAQPath,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	reqIDFunc := func(r *http.Request) string {
		return ctxutil.RequestIDFromContext(r.Context())
	}
	chatRL := ratelimit.Middleware(cfg.Limiter, sessionKeyFunc, reqIDFunc, cfg.Logger)
	loginRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)

	session := requireSession(cfg.JWTMgr, cfg.Chat)
	admin := requireAdminKey(cfg.AdminKeyHash, cfg.Logger)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/users", h.HandleUsers)
	mux.Handle("POST /api/login", loginRL(http.HandlerFunc(h.HandleLogin)))

	// Session endpoints (bearer token bound to a live session).
	mux.Handle("POST /api/chat", session(chatRL(http.HandlerFunc(h.HandleChat))))
	mux.Handle("DELETE /api/chat/history", session(http.HandlerFunc(h.HandleClearHistory)))
	mux.Handle("POST /api/logout", session(http.HandlerFunc(h.HandleLogout)))
	mux.Handle("POST /api/report", session(http.HandlerFunc(h.HandleReport)))

	// Operator endpoints (admin API key).
	mux.Handle("POST /admin/faq/reindex", admin(http.HandlerFunc(h.HandleReindex)))

	// MCP StreamableHTTP transport, scoped to the caller's session.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", session(mcpHTTP))
	}

	// Middleware chain (outermost executes first):
	// recovery → request ID → security headers → tracing → logging → handler.
	// Auth and rate limiting are applied per route above.
	var handler http.Handler = mux
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(cfg.Logger, handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// sessionKeyFunc rate limits chat traffic per session.
func sessionKeyFunc(r *http.Request) string {
	claims := ctxutil.ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return "session:" + claims.SessionID
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
