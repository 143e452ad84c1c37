package model

import (
	"fmt"
	"slices"
)

// Principal is the authenticated customer identity attached to a session.
// The empty Principal means the caller has not been authenticated yet.
type Principal string

// Route is the supervisor's decision for one exchange.
type Route string

const (
	RouteCustomer Route = "customer"
	RoutePolicy   Route = "policy"
	RouteClaims   Route = "claims"
	RouteBilling  Route = "billing"
	RouteFAQ      Route = "faq"
	RouteFinish   Route = "FINISH"
)

// SpecialistRoutes lists the routes that dispatch to a specialist, in a stable order.
var SpecialistRoutes = []Route{RouteCustomer, RoutePolicy, RouteClaims, RouteBilling, RouteFAQ}

// ParseRoute validates a classifier output against the closed route set.
func ParseRoute(s string) (Route, error) {
	r := Route(s)
	if r == RouteFinish || r.IsSpecialist() {
		return r, nil
	}
	return "", fmt.Errorf("invalid route %q", s)
}

// IsSpecialist reports whether r dispatches to one of the five specialists.
func (r Route) IsSpecialist() bool {
	return slices.Contains(SpecialistRoutes, r)
}

// AgentName is the display name of the specialist behind r.
func (r Route) AgentName() string {
	switch r {
	case RouteCustomer:
		return "Customer Agent"
	case RoutePolicy:
		return "Policy Agent"
	case RouteClaims:
		return "Claims Agent"
	case RouteBilling:
		return "Billing Agent"
	case RouteFAQ:
		return "FAQ Agent"
	default:
		return "General"
	}
}

// Author attributes a turn to exactly one participant.
type Author string

const (
	AuthorUser       Author = "user"
	AuthorSpecialist Author = "specialist"
	AuthorTool       Author = "tool"
)

// Turn is one immutable unit of conversation history.
// The interface is sealed: only UserTurn, SpecialistTurn and ToolResultTurn implement it.
type Turn interface {
	Author() Author
	turn()
}

// UserTurn is an utterance from the customer.
type UserTurn struct {
	Text string
}

// SpecialistTurn is a specialist's answer, tool requests, or both.
type SpecialistTurn struct {
	Specialist   Route
	Text         string
	ToolRequests []ToolRequest

	// Awaiting names the fields the specialist asked the user to supply.
	// A non-empty Awaiting is an open question.
	Awaiting []string

	// Blocked marks a reply produced by moderation instead of a specialist.
	Blocked bool
}

// ToolResultTurn carries the outcome of one ToolRequest back to the requesting specialist.
type ToolResultTurn struct {
	Specialist Route
	CallID     string
	Tool       string
	Result     ToolResult
}

func (UserTurn) Author() Author       { return AuthorUser }
func (SpecialistTurn) Author() Author { return AuthorSpecialist }
func (ToolResultTurn) Author() Author { return AuthorTool }

func (UserTurn) turn()       {}
func (SpecialistTurn) turn() {}
func (ToolResultTurn) turn() {}

// HasToolRequests reports whether the specialist must wait for tool results.
func (t SpecialistTurn) HasToolRequests() bool { return len(t.ToolRequests) > 0 }

// IsOpenQuestion reports whether the turn asked the user for more input.
func (t SpecialistTurn) IsOpenQuestion() bool {
	if t.Blocked || t.HasToolRequests() {
		return false
	}
	if len(t.Awaiting) > 0 {
		return true
	}
	for i := len(t.Text) - 1; i >= 0; i-- {
		switch t.Text[i] {
		case ' ', '\n', '\t':
			continue
		case '?':
			return true
		default:
			return false
		}
	}
	return false
}

// ToolRequest asks the invoker to run a named capability.
type ToolRequest struct {
	ID   string         `json:"id"`
	Tool string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ResultStatus tags a ToolResult.
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultNotFound ResultStatus = "not_found"
	ResultDenied   ResultStatus = "denied"
	ResultError    ResultStatus = "error"
)

// ErrorCode refines ResultError.
type ErrorCode string

const (
	CodeValidation ErrorCode = "validation"
	CodeExecution  ErrorCode = "execution"
)

// ToolResult is the tagged outcome of a tool invocation.
type ToolResult struct {
	Status  ResultStatus `json:"status"`
	Code    ErrorCode    `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	// Field names the offending argument of a validation error, when there is one.
	Field   string `json:"field,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func Success(payload any) ToolResult {
	return ToolResult{Status: ResultSuccess, Payload: payload}
}

func NotFound(msg string) ToolResult {
	return ToolResult{Status: ResultNotFound, Message: msg}
}

func Denied(msg string) ToolResult {
	return ToolResult{Status: ResultDenied, Message: msg}
}

func ValidationError(msg string) ToolResult {
	return ToolResult{Status: ResultError, Code: CodeValidation, Message: msg}
}

// FieldError is a validation error attributed to one argument.
func FieldError(field, msg string) ToolResult {
	return ToolResult{Status: ResultError, Code: CodeValidation, Field: field, Message: msg}
}

func ExecutionError(msg string) ToolResult {
	return ToolResult{Status: ResultError, Code: CodeExecution, Message: msg}
}

// ConversationState is the per-session conversation: an append-only turn log
// bound to the principal it was created for.
//
// ConversationState has no internal locking. Callers serialize access per session.
type ConversationState struct {
	principal Principal
	turns     []Turn

	// Route is the most recent supervisor decision. It is recomputed every traversal.
	Route Route
}

// NewConversationState creates an empty state for principal. The principal cannot be changed later.
func NewConversationState(principal Principal) *ConversationState {
	return &ConversationState{principal: principal}
}

// Principal returns the authorized principal for this conversation.
func (s *ConversationState) Principal() Principal { return s.principal }

// Turns returns a copy of the turn log.
func (s *ConversationState) Turns() []Turn { return slices.Clone(s.turns) }

// Len returns the number of turns in the log.
func (s *ConversationState) Len() int { return len(s.turns) }

// Append adds turns to the end of the log.
func (s *ConversationState) Append(turns ...Turn) {
	s.turns = append(s.turns, turns...)
}

// LastUserTurn returns the index of the most recent UserTurn in turns, or -1.
func LastUserTurn(turns []Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if _, ok := turns[i].(UserTurn); ok {
			return i
		}
	}
	return -1
}
