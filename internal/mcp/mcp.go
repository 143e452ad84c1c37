// Package mcp implements the Model Context Protocol server for InsureAI.
//
// The MCP server exposes the customer conversation, the customer report and
// FAQ search as tools. Every call acts as the session named by the caller's
// bearer token, so an MCP client can never reach another customer's data.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/ctxutil"
	"github.com/ashita-ai/insureai/internal/service/chat"
	"github.com/ashita-ai/insureai/internal/service/report"
	"github.com/ashita-ai/insureai/internal/tools"
)

var errNoSession = errors.New("mcp: no authenticated session")

// Server wraps the MCP server with InsureAI's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	chat      *chat.Service
	reports   *report.Service
	kb        tools.KnowledgeBase
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources and prompts.
func New(chatSvc *chat.Service, reports *report.Service, kb tools.KnowledgeBase, logger *slog.Logger, version string) *Server {
	s := &Server{
		chat:    chatSvc,
		reports: reports,
		kb:      kb,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"insureai",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions("Customer service for a Singapore insurer. "+
			"Use insureai_chat for anything about the signed-in customer's policies, bills and claims, "+
			"insureai_faq for general insurance questions, and insureai_report for a full account summary."),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// sessionClaims returns the claims the HTTP auth middleware attached.
func sessionClaims(ctx context.Context) (*auth.Claims, error) {
	claims := ctxutil.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, errNoSession
	}
	return claims, nil
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
