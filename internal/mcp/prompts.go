package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// agent-setup: how an assistant should use the InsureAI tools.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("agent-setup",
			mcplib.WithPromptDescription("System prompt snippet explaining how to serve a customer with the InsureAI tools"),
		),
		s.handleAgentSetupPrompt,
	)
}

func (s *Server) handleAgentSetupPrompt(context.Context, mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "InsureAI customer service workflow",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `You are helping a signed-in customer of a Singapore insurer. Your session is
bound to that one customer; you cannot see anyone else's records.

## Tools

- insureai_chat: Relay the customer's message to the assistant. It routes to
  the customer, policy, billing, claims or FAQ specialist and keeps the
  conversation history. Pass follow-up answers through unchanged.
- insureai_faq: Look up general insurance topics (NCD, MediShield Life,
  PayNow and GIRO, claim procedure, MAS). Uses no customer data.
- insureai_report: Produce the full customer report as JSON.

## Rules

- Amounts are in SGD.
- Payments are never taken in this channel. Direct the customer to PayNow,
  GIRO or the customer portal.
- If a message is blocked, tell the customer the request could not be
  processed and do not retry it in another form.`,
				},
			},
		},
	}, nil
}
