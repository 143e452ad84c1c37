package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/ctxutil"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/service/chat"
	"github.com/ashita-ai/insureai/internal/service/report"
	"github.com/ashita-ai/insureai/internal/session"
	"github.com/ashita-ai/insureai/internal/storage"
	"github.com/ashita-ai/insureai/internal/supervisor"
)

// usersDirectoryLimit caps the login directory.
const usersDirectoryLimit = 200

// Store is the part of the record store the HTTP layer reads directly.
// Both *storage.DB and *sqlite.Store satisfy it.
type Store interface {
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context, limit int) ([]model.UserSummary, error)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               Store
	jwtMgr              *auth.JWTManager
	chat                *chat.Service
	reports             *report.Service
	searcher            search.Searcher
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	storeName           string
	faqPath             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               Store
	JWTMgr              *auth.JWTManager
	Chat                *chat.Service
	Reports             *report.Service
	Searcher            search.Searcher
	Logger              *slog.Logger
	Version             string
	StoreName           string
	FAQPath             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		jwtMgr:              d.JWTMgr,
		chat:                d.Chat,
		reports:             d.Reports,
		searcher:            d.Searcher,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		storeName:           d.StoreName,
		faqPath:             d.FAQPath,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Store:    "connected",
		Search:   "ready",
		Sessions: h.chat.Sessions(),
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		resp.Store = "disconnected"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if err := h.searcher.Healthy(r.Context()); err != nil {
		resp.Search = "unavailable"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}
	if h.storeName != "" && resp.Store == "connected" {
		resp.Store = h.storeName
	}

	writeJSON(w, r, status, resp)
}

// HandleUsers handles GET /api/users.
func (h *Handlers) HandleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context(), usersDirectoryLimit)
	if err != nil {
		h.writeInternalError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.UserSummary{}
	}
	writeJSON(w, r, http.StatusOK, model.UsersResponse{Users: users})
}

// HandleLogin handles POST /api/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || len(email) > model.MaxEmailLen || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "a valid email is required")
		return
	}

	login, err := h.chat.Login(r.Context(), email)
	if errors.Is(err, chat.ErrUnknownCustomer) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "customer not found")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "login failed", err)
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(model.Principal(login.CustomerID), login.SessionID)
	if err != nil {
		h.chat.Logout(login.SessionID)
		h.writeInternalError(w, r, "failed to issue token", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.LoginResponse{
		SessionID:   login.SessionID,
		Token:       token,
		ExpiresAt:   expiresAt,
		CustomerID:  login.CustomerID,
		DisplayName: login.DisplayName,
		Email:       login.Email,
		PolicyType:  login.PolicyType,
		Greeting:    login.Greeting,
	})
}

// HandleChat handles POST /api/chat.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	claims := ctxutil.ClaimsFromContext(r.Context())

	var req model.ChatRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes, false); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if !h.sameSession(w, r, claims, req.SessionID) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "message is required")
		return
	}

	resp, err := h.chat.Send(r.Context(), claims.SessionID, req.Message)
	if err != nil {
		h.writeServiceError(w, r, "chat failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleClearHistory handles DELETE /api/chat/history. The session may be
// named in the session_id query parameter or body; either must match the token.
func (h *Handlers) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	claims := ctxutil.ClaimsFromContext(r.Context())

	var req model.SessionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes, true); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}
	if !h.sameSession(w, r, claims, req.SessionID) {
		return
	}

	if err := h.chat.Clear(r.Context(), claims.SessionID); err != nil {
		h.writeServiceError(w, r, "failed to clear history", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleLogout handles POST /api/logout.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims := ctxutil.ClaimsFromContext(r.Context())
	h.chat.Logout(claims.SessionID)
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleReport handles POST /api/report.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	claims := ctxutil.ClaimsFromContext(r.Context())

	var req model.SessionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes, true); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if !h.sameSession(w, r, claims, req.SessionID) {
		return
	}

	rep, err := h.reports.Generate(r.Context(), claims.Principal())
	if err != nil {
		h.writeServiceError(w, r, "report generation failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// HandleReindex handles POST /admin/faq/reindex.
func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
	entries, err := search.LoadCorpus(h.faqPath)
	if err != nil {
		h.writeInternalError(w, r, "failed to load FAQ corpus", err)
		return
	}
	if err := h.searcher.Index(r.Context(), entries); err != nil {
		h.writeInternalError(w, r, "failed to index FAQ corpus", err)
		return
	}
	h.logger.Info("faq corpus reindexed", "entries", len(entries), "backend", h.searcher.Name())
	writeJSON(w, r, http.StatusOK, model.ReindexResponse{Entries: len(entries), Backend: h.searcher.Name()})
}

// sameSession rejects a body session_id that differs from the token's session.
func (h *Handlers) sameSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims, sessionID string) bool {
	if sessionID != "" && sessionID != claims.SessionID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "session_id does not match the authenticated session")
		return false
	}
	return true
}

// writeServiceError maps service-layer errors onto API error responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "session expired, please log in again")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "customer not found")
	case errors.Is(err, supervisor.ErrClassificationFailure):
		h.logger.Error(msg, "error", err, "request_id", ctxutil.RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeClassificationFailed,
			"could not understand the request, please try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "request cancelled")
	default:
		h.writeInternalError(w, r, msg, err)
	}
}

// writeInternalError logs err and writes a 500 without leaking its text.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", ctxutil.RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}
