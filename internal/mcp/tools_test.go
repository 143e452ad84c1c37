package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/insureai/internal/app"
	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/ctxutil"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/testutil"
)

// fixture is an MCP server over a seeded store with one logged-in customer.
type fixture struct {
	srv *Server
	rt  *app.Runtime
	ctx context.Context
	sid string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := testutil.TestLogger()
	store := testutil.SeededSQLite(t)

	kb := search.NewBleveIndex(logger)
	t.Cleanup(func() { _ = kb.Close() })
	entries, err := search.LoadCorpus("")
	require.NoError(t, err)
	require.NoError(t, kb.Index(context.Background(), entries))

	rt := app.NewRuntime(store, kb, app.Options{}, logger)
	t.Cleanup(rt.Close)

	login, err := rt.Chat.Login(context.Background(), testutil.Dataset().Customers[41].Email)
	require.NoError(t, err)

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: login.CustomerID},
		SessionID:        login.SessionID,
	}
	return fixture{
		srv: New(rt.Chat, rt.Reports, kb, logger, "test"),
		rt:  rt,
		ctx: ctxutil.WithClaims(context.Background(), claims),
		sid: login.SessionID,
	}
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	var req mcplib.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.Len(t, r.Content, 1)
	tc, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer(t *testing.T) {
	f := newFixture(t)
	assert.NotNil(t, f.srv.MCPServer())
}

func TestHandleChat(t *testing.T) {
	f := newFixture(t)

	res, err := f.srv.handleChat(f.ctx, callRequest("insureai_chat", map[string]any{"message": "What is MediShield Life?"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &resp))
	assert.Equal(t, "FAQ Agent", resp.AgentName)
	assert.Contains(t, resp.AIMessage, "MediShield Life")

	history, err := f.rt.Chat.History(f.ctx, f.sid)
	require.NoError(t, err)
	assert.Greater(t, len(history), 4, "the exchange is appended to the session")
}

func TestHandleChatErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		ctx  context.Context
		args map[string]any
		want string
	}{
		{"no claims", context.Background(), map[string]any{"message": "hi"}, "not authenticated"},
		{"empty message", f.ctx, map[string]any{}, "message is required"},
		{"expired session", ctxutil.WithClaims(context.Background(), &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "CUST00042"},
			SessionID:        "00000000-0000-0000-0000-000000000000",
		}), map[string]any{"message": "hi"}, "session expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.srv.handleChat(tt.ctx, callRequest("insureai_chat", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestHandleReport(t *testing.T) {
	f := newFixture(t)

	res, err := f.srv.handleReport(f.ctx, callRequest("insureai_report", nil))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var rep model.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rep))
	assert.Equal(t, "CUST00042", rep.Metadata.CustomerID)
	assert.Equal(t, testutil.Dataset().Customers[41].FullName(), rep.CustomerProfile.Name)

	res, err = f.srv.handleReport(context.Background(), callRequest("insureai_report", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleFAQ(t *testing.T) {
	f := newFixture(t)

	res, err := f.srv.handleFAQ(f.ctx, callRequest("insureai_faq", map[string]any{"query": "PayNow GIRO", "limit": 1}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "PayNow")

	res, err = f.srv.handleFAQ(f.ctx, callRequest("insureai_faq", map[string]any{"query": ""}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSessionResource(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.handleChat(f.ctx, callRequest("insureai_chat", map[string]any{"message": "What is MediShield Life?"}))
	require.NoError(t, err)

	contents, err := f.srv.handleSessionCurrent(f.ctx, mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, sessionURI, text.URI)

	var body struct {
		SessionID  string           `json:"session_id"`
		CustomerID string           `json:"customer_id"`
		Turns      []transcriptLine `json:"turns"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	assert.Equal(t, f.sid, body.SessionID)
	assert.Equal(t, "CUST00042", body.CustomerID)
	require.NotEmpty(t, body.Turns)

	last := body.Turns[len(body.Turns)-1]
	assert.Equal(t, model.AuthorSpecialist, last.Author)
	assert.Equal(t, "FAQ Agent", last.Agent)

	_, err = f.srv.handleSessionCurrent(context.Background(), mcplib.ReadResourceRequest{})
	assert.ErrorIs(t, err, errNoSession)
}

func TestAgentSetupPrompt(t *testing.T) {
	f := newFixture(t)
	res, err := f.srv.handleAgentSetupPrompt(context.Background(), mcplib.GetPromptRequest{})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "insureai_chat")
}
