package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/insureai/internal/model"
)

const sessionURI = "insureai://session/current"

func (s *Server) registerResources() {
	// insureai://session/current: the caller's conversation so far.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			sessionURI,
			"Current Session",
			mcplib.WithResourceDescription("The signed-in customer's conversation history"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleSessionCurrent,
	)
}

// transcriptLine is one rendered turn of the session resource.
type transcriptLine struct {
	Author  model.Author `json:"author"`
	Agent   string       `json:"agent,omitempty"`
	Text    string       `json:"text,omitempty"`
	Tool    string       `json:"tool,omitempty"`
	Status  string       `json:"status,omitempty"`
	Blocked bool         `json:"blocked,omitempty"`
}

func transcript(turns []model.Turn) []transcriptLine {
	out := make([]transcriptLine, 0, len(turns))
	for _, t := range turns {
		switch t := t.(type) {
		case model.UserTurn:
			out = append(out, transcriptLine{Author: t.Author(), Text: t.Text})
		case model.SpecialistTurn:
			if t.Text == "" {
				continue
			}
			out = append(out, transcriptLine{Author: t.Author(), Agent: t.Specialist.AgentName(), Text: t.Text, Blocked: t.Blocked})
		case model.ToolResultTurn:
			out = append(out, transcriptLine{Author: t.Author(), Tool: t.Tool, Status: string(t.Result.Status)})
		}
	}
	return out
}

func (s *Server) handleSessionCurrent(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	claims, err := sessionClaims(ctx)
	if err != nil {
		return nil, err
	}
	turns, err := s.chat.History(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("mcp: session history: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"session_id":  claims.SessionID,
		"customer_id": string(claims.Principal()),
		"turns":       transcript(turns),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal session: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      sessionURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
