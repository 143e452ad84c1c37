package mcp

import (
	"context"
	"errors"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/insureai/internal/session"
	"github.com/ashita-ai/insureai/internal/supervisor"
	"github.com/ashita-ai/insureai/internal/tools"
)

// maxFAQResults caps insureai_faq's limit argument.
const maxFAQResults = 5

func (s *Server) registerTools() {
	// insureai_chat: one conversational turn in the caller's session.
	s.mcpServer.AddTool(
		mcplib.NewTool("insureai_chat",
			mcplib.WithDescription(`Send one message to the insurance assistant as the signed-in customer.

WHEN TO USE: Questions about the customer's own profile, policies, vehicles,
bills and claims, or filing a new claim. The conversation keeps its history,
so follow-up answers ("yes", a date, a policy number) continue the thread.

WHAT YOU GET BACK: the assistant's reply, the agent that answered, the tool
calls it made, and whether moderation blocked the message.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("message",
				mcplib.Description("The customer's message"),
				mcplib.Required(),
			),
		),
		s.handleChat,
	)

	// insureai_report: the read-only customer report.
	s.mcpServer.AddTool(
		mcplib.NewTool("insureai_report",
			mcplib.WithDescription(`Generate the customer insurance report for the signed-in customer:
profile, policy portfolio with billing history, claims history and an
executive summary. Does not touch the conversation.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleReport,
	)

	// insureai_faq: general insurance knowledge, no customer data.
	s.mcpServer.AddTool(
		mcplib.NewTool("insureai_faq",
			mcplib.WithDescription(`Search the insurance FAQ (NCD, MediShield Life, PayNow/GIRO, claims procedure, MAS and more).

WHEN TO USE: General questions that do not depend on the customer's records.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("query",
				mcplib.Description("Natural language question"),
				mcplib.Required(),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum FAQ entries to return"),
				mcplib.Min(1),
				mcplib.Max(maxFAQResults),
				mcplib.DefaultNumber(tools.FAQResultLimit),
			),
		),
		s.handleFAQ,
	)
}

func (s *Server) handleChat(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	claims, err := sessionClaims(ctx)
	if err != nil {
		return errorResult("not authenticated: log in through /api/login and send the token as a bearer token"), nil
	}
	message := request.GetString("message", "")
	if message == "" {
		return errorResult("message is required"), nil
	}

	resp, err := s.chat.Send(ctx, claims.SessionID, message)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return errorResult("session expired, please log in again"), nil
	case errors.Is(err, supervisor.ErrClassificationFailure):
		return errorResult("could not understand the request, please try again"), nil
	case err != nil:
		s.logger.Error("mcp: chat failed", "session_id", claims.SessionID, "error", err)
		return errorResult("chat failed"), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleReport(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	claims, err := sessionClaims(ctx)
	if err != nil {
		return errorResult("not authenticated: log in through /api/login and send the token as a bearer token"), nil
	}
	rep, err := s.reports.Generate(ctx, claims.Principal())
	if err != nil {
		s.logger.Error("mcp: report failed", "principal", string(claims.Principal()), "error", err)
		return errorResult("report generation failed"), nil
	}
	return jsonResult(rep)
}

func (s *Server) handleFAQ(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if _, err := sessionClaims(ctx); err != nil {
		return errorResult("not authenticated: log in through /api/login and send the token as a bearer token"), nil
	}
	query := request.GetString("query", "")
	if query == "" {
		return errorResult("query is required"), nil
	}
	limit := min(max(request.GetInt("limit", tools.FAQResultLimit), 1), maxFAQResults)

	hits, err := s.kb.Search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("mcp: faq search failed", "error", err)
		return errorResult("FAQ search is unavailable right now"), nil
	}
	return textResult(tools.FormatFAQ(hits)), nil
}
