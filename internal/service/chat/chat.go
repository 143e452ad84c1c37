// Package chat is the conversation service shared by the HTTP API, the MCP
// server and the CLI. It screens each message, runs the graph under the
// session lock and shapes the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/insureai/internal/graph"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/moderation"
	"github.com/ashita-ai/insureai/internal/session"
	"github.com/ashita-ai/insureai/internal/specialist"
	"github.com/ashita-ai/insureai/internal/storage"
	"github.com/ashita-ai/insureai/internal/telemetry"
	"github.com/ashita-ai/insureai/internal/tools"
)

// ErrUnknownCustomer is returned when a login email matches no customer.
var ErrUnknownCustomer = errors.New("chat: unknown customer")

// Runner runs one traversal. *graph.Graph satisfies it.
type Runner interface {
	Run(ctx context.Context, state *model.ConversationState, input model.UserTurn) (graph.Outcome, error)
}

// Directory resolves login identities.
type Directory interface {
	FindCustomer(ctx context.Context, lookup model.CustomerLookup) (model.Customer, error)
	ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error)
}

// agentByTool names the agent behind the last tool call of an exchange.
var agentByTool = map[string]string{
	tools.Lookup:          "Customer Agent",
	tools.ListPolicies:    "Policy Agent",
	tools.PolicyDetail:    "Policy Agent",
	tools.VehicleDetail:   "Auto Specialist",
	tools.BillingHistory:  "Billing Agent",
	tools.ListClaims:      "Claims Agent",
	tools.ClaimStatus:     "Claims Agent",
	tools.FileClaim:       "Claims Agent",
	tools.KnowledgeSearch: "FAQ Agent",
}

// Service runs conversations for logged-in sessions.
type Service struct {
	runner    Runner
	sessions  *session.Repository
	guard     *moderation.Guard
	directory Directory
	logger    *slog.Logger

	messages metric.Int64Counter
}

// New creates a chat Service.
func New(runner Runner, sessions *session.Repository, guard *moderation.Guard, directory Directory, logger *slog.Logger) *Service {
	messages, _ := telemetry.Meter("insureai/chat").Int64Counter("insureai.chat.messages",
		metric.WithDescription("Chat messages by outcome"),
	)
	return &Service{
		runner:    runner,
		sessions:  sessions,
		guard:     guard,
		directory: directory,
		logger:    logger,
		messages:  messages,
	}
}

// Login describes a freshly bootstrapped session.
type Login struct {
	SessionID   string
	CustomerID  string
	DisplayName string
	Email       string
	PolicyType  string
	Greeting    string
}

// Login resolves email to a customer and starts a session for them.
func (s *Service) Login(ctx context.Context, email string) (Login, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	c, err := s.directory.FindCustomer(ctx, model.CustomerLookup{Email: email})
	if errors.Is(err, storage.ErrNotFound) {
		return Login{}, ErrUnknownCustomer
	}
	if err != nil {
		return Login{}, fmt.Errorf("chat: login: %w", err)
	}

	policies, err := s.directory.ListPolicies(ctx, c.CustomerID)
	if err != nil {
		return Login{}, fmt.Errorf("chat: login: %w", err)
	}

	id, greeting, err := s.Start(ctx, model.Principal(c.CustomerID))
	if err != nil {
		return Login{}, err
	}
	return Login{
		SessionID:   id,
		CustomerID:  c.CustomerID,
		DisplayName: c.FullName(),
		Email:       c.Email,
		PolicyType:  primaryPolicyType(policies),
		Greeting:    greeting,
	}, nil
}

// primaryPolicyType is the alphabetically first policy type held, matching the login directory.
func primaryPolicyType(policies []model.Policy) string {
	types := make([]string, 0, len(policies))
	for _, p := range policies {
		types = append(types, p.PolicyType)
	}
	if len(types) == 0 {
		return ""
	}
	return slices.Min(types)
}

// Start creates a session for principal and runs the bootstrap traversal.
// It returns the session ID and the identity specialist's greeting.
func (s *Service) Start(ctx context.Context, principal model.Principal) (string, string, error) {
	id := s.sessions.Create(principal)
	var greeting string
	err := s.sessions.With(ctx, id, func(state *model.ConversationState) error {
		out, err := s.bootstrap(ctx, state)
		greeting = out.Reply
		return err
	})
	if err != nil {
		s.sessions.Invalidate(id)
		return "", "", err
	}
	s.logger.Info("chat: session started", "session_id", id, "principal", string(principal))
	return id, greeting, nil
}

func (s *Service) bootstrap(ctx context.Context, state *model.ConversationState) (graph.Outcome, error) {
	out, err := s.runner.Run(ctx, state, model.UserTurn{Text: specialist.BootstrapUtterance(state.Principal())})
	if err != nil {
		return graph.Outcome{}, fmt.Errorf("chat: bootstrap: %w", err)
	}
	return out, nil
}

// Principal returns the principal a session belongs to.
func (s *Service) Principal(sessionID string) (model.Principal, error) {
	info, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	return info.Principal, nil
}

// Send screens message and, if allowed, runs one traversal for it.
// Blocked messages are recorded with the block reply and never reach the graph.
func (s *Service) Send(ctx context.Context, sessionID, message string) (model.ChatResponse, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("insureai.session_id", sessionID))

	var resp model.ChatResponse
	err := s.sessions.With(ctx, sessionID, func(state *model.ConversationState) error {
		verdict := s.guard.Check(ctx, state.Principal(), message)
		if !verdict.Allowed {
			state.Append(
				model.UserTurn{Text: message},
				model.SpecialistTurn{Specialist: blockedRoute(state), Text: verdict.Message, Blocked: true},
			)
			resp = model.ChatResponse{
				AIMessage:    verdict.Message,
				ToolCalls:    []model.ToolCall{},
				Blocked:      true,
				BlockMessage: verdict.Message,
			}
			return nil
		}

		out, err := s.runner.Run(ctx, state, model.UserTurn{Text: message})
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		resp = shape(out)
		return nil
	})

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.Blocked:
		outcome = "blocked"
	}
	s.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return resp, err
}

// blockedRoute attributes a moderation reply to the session's current specialist.
func blockedRoute(state *model.ConversationState) model.Route {
	if state.Route.IsSpecialist() {
		return state.Route
	}
	return model.RouteFAQ
}

func shape(out graph.Outcome) model.ChatResponse {
	calls := make([]model.ToolCall, 0, len(out.ToolCalls))
	for _, c := range out.ToolCalls {
		calls = append(calls, model.ToolCall{Name: c.Tool, Args: c.Args})
	}
	return model.ChatResponse{
		AIMessage:  out.Reply,
		AgentName:  AgentName(out),
		ToolCalls:  calls,
		Route:      out.Route,
		Terminated: out.Terminated,
	}
}

// AgentName names the agent that produced out: the owner of the last tool
// called, otherwise the answering specialist.
func AgentName(out graph.Outcome) string {
	if n := len(out.ToolCalls); n > 0 {
		if name, ok := agentByTool[out.ToolCalls[n-1].Tool]; ok {
			return name
		}
	}
	if out.Route.IsSpecialist() {
		return out.Route.AgentName()
	}
	return ""
}

// Clear replaces the session's history with a freshly bootstrapped conversation.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Reset(ctx, sessionID, func(state *model.ConversationState) error {
		_, err := s.bootstrap(ctx, state)
		return err
	})
}

// History returns a copy of the session's turns.
func (s *Service) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	var turns []model.Turn
	err := s.sessions.With(ctx, sessionID, func(state *model.ConversationState) error {
		turns = state.Turns()
		return nil
	})
	return turns, err
}

// Logout ends the session. It reports whether the session existed.
func (s *Service) Logout(sessionID string) bool {
	ok := s.sessions.Invalidate(sessionID)
	if ok {
		s.logger.Info("chat: session ended", "session_id", sessionID)
	}
	return ok
}

// Sessions returns the number of live sessions.
func (s *Service) Sessions() int { return s.sessions.Len() }
