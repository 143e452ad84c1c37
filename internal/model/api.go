package model

import "time"

// Field length limits for inbound chat traffic.
const (
	MaxMessageLen = 4000
	MaxEmailLen   = 254
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeClassificationFailed = "CLASSIFICATION_FAILED"
	ErrCodeUnavailable          = "SERVICE_UNAVAILABLE"
)

// LoginRequest is the request body for POST /api/login.
type LoginRequest struct {
	Email string `json:"email"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	SessionID   string    `json:"session_id"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	CustomerID  string    `json:"customer_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PolicyType  string    `json:"policy_type"`
	Greeting    string    `json:"greeting"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ToolCall is a tool request as shown to API clients.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ChatResponse is returned by POST /api/chat.
type ChatResponse struct {
	AIMessage    string     `json:"ai_message"`
	AgentName    string     `json:"agent_name,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls"`
	Blocked      bool       `json:"blocked"`
	BlockMessage string     `json:"block_message,omitempty"`
	Route        Route      `json:"route,omitempty"`
	Terminated   bool       `json:"terminated"`
}

// SessionRequest carries an optional session ID for endpoints that act on the caller's session.
type SessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// UsersResponse is returned by GET /api/users.
type UsersResponse struct {
	Users []UserSummary `json:"users"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Store    string `json:"store"`
	Search   string `json:"search"`
	Sessions int    `json:"sessions"`
	Uptime   int64  `json:"uptime_seconds"`
}

// ReindexResponse is returned by POST /admin/faq/reindex.
type ReindexResponse struct {
	Entries int    `json:"entries"`
	Backend string `json:"backend"`
}
