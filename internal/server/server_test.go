package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/app"
	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/mcp"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/ratelimit"
	"github.com/ashita-ai/insureai/internal/search"
	"github.com/ashita-ai/insureai/internal/server"
	"github.com/ashita-ai/insureai/internal/testutil"
)

const adminKey = "test-admin-key"

type testEnv struct {
	url   string
	email string
}

// newTestServer serves the full API over a seeded SQLite store and a bleve index.
func newTestServer(t *testing.T, limiter ratelimit.Limiter) testEnv {
	t.Helper()
	ctx := context.Background()
	logger := testutil.TestLogger()
	store := testutil.SeededSQLite(t)

	idx := search.NewBleveIndex(logger)
	t.Cleanup(func() { _ = idx.Close() })
	entries, err := search.LoadCorpus("")
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, entries))
	searcher := search.Instrument(idx)

	rt := app.NewRuntime(store, searcher, app.Options{}, logger)
	t.Cleanup(rt.Close)

	jwtMgr, err := auth.NewJWTManager("", "", time.Hour, logger)
	require.NoError(t, err)
	hash, err := auth.HashAdminKey(adminKey)
	require.NoError(t, err)

	srv := server.New(server.ServerConfig{
		Store:               store,
		JWTMgr:              jwtMgr,
		Chat:                rt.Chat,
		Reports:             rt.Reports,
		Searcher:            searcher,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcp.New(rt.Chat, rt.Reports, searcher, logger, "test").MCPServer(),
		AdminKeyHash:        hash,
		StoreName:           "sqlite",
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{url: ts.URL, email: testutil.Dataset().Customers[41].Email}
}

func do(t *testing.T, method, url, token string, body any, header ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// decodeData unwraps the response envelope into v.
func decodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage    `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.NotEmpty(t, env.Meta.RequestID)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeError(t *testing.T, resp *http.Response) model.ErrorDetail {
	t.Helper()
	var env model.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Error
}

func login(t *testing.T, env testEnv) model.LoginResponse {
	t.Helper()
	resp := do(t, http.MethodPost, env.url+"/api/login", "", model.LoginRequest{Email: env.email})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out model.LoginResponse
	decodeData(t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)
	resp := do(t, http.MethodGet, env.url+"/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var h model.HealthResponse
	decodeData(t, resp, &h)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "sqlite", h.Store)
	assert.Equal(t, "ready", h.Search)
	assert.Equal(t, "test", h.Version)
}

func TestUsers(t *testing.T) {
	env := newTestServer(t, nil)
	resp := do(t, http.MethodGet, env.url+"/api/users", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out model.UsersResponse
	decodeData(t, resp, &out)
	assert.Len(t, out.Users, len(testutil.Dataset().Customers))
}

func TestLogin(t *testing.T) {
	env := newTestServer(t, nil)

	out := login(t, env)
	assert.Equal(t, "CUST00042", out.CustomerID)
	assert.NotEmpty(t, out.Token)
	assert.NotEmpty(t, out.SessionID)
	assert.Contains(t, out.Greeting, "CUST00042")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown email", model.LoginRequest{Email: "nobody@example.com"}, http.StatusNotFound, model.ErrCodeNotFound},
		{"not an email", model.LoginRequest{Email: "nobody"}, http.StatusBadRequest, model.ErrCodeInvalidInput},
		{"unknown field", map[string]string{"email": env.email, "password": "x"}, http.StatusBadRequest, model.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, env.url+"/api/login", "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, resp).Code)
		})
	}
}

func TestChat(t *testing.T) {
	env := newTestServer(t, nil)
	sess := login(t, env)

	resp := do(t, http.MethodPost, env.url+"/api/chat", sess.Token,
		model.ChatRequest{SessionID: sess.SessionID, Message: "What is MediShield Life?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out model.ChatResponse
	decodeData(t, resp, &out)
	assert.Equal(t, "FAQ Agent", out.AgentName)
	assert.Contains(t, out.AIMessage, "MediShield Life")
	assert.False(t, out.Blocked)

	t.Run("no token", func(t *testing.T) {
		resp := do(t, http.MethodPost, env.url+"/api/chat", "", model.ChatRequest{Message: "hi"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("garbage token", func(t *testing.T) {
		resp := do(t, http.MethodPost, env.url+"/api/chat", "not.a.jwt", model.ChatRequest{Message: "hi"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("other session id", func(t *testing.T) {
		resp := do(t, http.MethodPost, env.url+"/api/chat", sess.Token,
			model.ChatRequest{SessionID: "3f0c4a52-5b55-4c1c-9d1e-000000000000", Message: "hi"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, model.ErrCodeForbidden, decodeError(t, resp).Code)
	})
	t.Run("empty message", func(t *testing.T) {
		resp := do(t, http.MethodPost, env.url+"/api/chat", sess.Token, model.ChatRequest{Message: "  "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestClearHistory(t *testing.T) {
	env := newTestServer(t, nil)
	sess := login(t, env)

	resp := do(t, http.MethodPost, env.url+"/api/chat", sess.Token, model.ChatRequest{Message: "What is MediShield Life?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodDelete, env.url+"/api/chat/history?session_id="+sess.SessionID, sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	decodeData(t, resp, &out)
	assert.Equal(t, "cleared", out["status"])

	// The session survives a clear.
	resp = do(t, http.MethodPost, env.url+"/api/chat", sess.Token, model.ChatRequest{Message: "What is MediShield Life?"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	env := newTestServer(t, nil)
	sess := login(t, env)

	resp := do(t, http.MethodPost, env.url+"/api/logout", sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, env.url+"/api/chat", sess.Token, model.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Message, "log in again")
}

func TestReport(t *testing.T) {
	env := newTestServer(t, nil)
	sess := login(t, env)

	resp := do(t, http.MethodPost, env.url+"/api/report", sess.Token, model.SessionRequest{SessionID: sess.SessionID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep model.Report
	decodeData(t, resp, &rep)
	assert.Equal(t, "CUST00042", rep.Metadata.CustomerID)
	assert.NotEmpty(t, rep.PolicyPortfolio)

	resp = do(t, http.MethodPost, env.url+"/api/report", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReindex(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"no key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusForbidden},
		{"admin key", adminKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, env.url+"/admin/faq/reindex", "", nil, "X-Admin-Key", tt.key)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp := do(t, http.MethodPost, env.url+"/admin/faq/reindex", "", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out model.ReindexResponse
	decodeData(t, resp, &out)
	assert.Equal(t, search.BackendBleve, out.Backend)
	assert.Positive(t, out.Entries)
}

func TestLoginRateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 2)
	t.Cleanup(func() { _ = limiter.Close() })
	env := newTestServer(t, limiter)

	for range 2 {
		resp := do(t, http.MethodPost, env.url+"/api/login", "", model.LoginRequest{Email: env.email})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := do(t, http.MethodPost, env.url+"/api/login", "", model.LoginRequest{Email: env.email})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, model.ErrCodeRateLimited, decodeError(t, resp).Code)
}

func newMCPClient(t *testing.T, url, token string) *mcpclient.Client {
	t.Helper()
	c, err := mcpclient.NewStreamableHttpClient(
		url+"/mcp",
		mcptransport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + token,
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMCP(t *testing.T) {
	env := newTestServer(t, nil)
	sess := login(t, env)
	ctx := context.Background()

	c := newMCPClient(t, env.url, sess.Token)
	initResult, err := c.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ClientInfo: mcplib.Implementation{Name: "test-client", Version: "1.0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "insureai", initResult.ServerInfo.Name)

	toolsResult, err := c.ListTools(ctx, mcplib.ListToolsRequest{})
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, tool := range toolsResult.Tools {
		names[tool.Name] = true
	}
	assert.Equal(t, map[string]bool{"insureai_chat": true, "insureai_report": true, "insureai_faq": true}, names)

	var call mcplib.CallToolRequest
	call.Params.Name = "insureai_faq"
	call.Params.Arguments = map[string]any{"query": "MediShield Life"}
	res, err := c.CallTool(ctx, call)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	unauth := newMCPClient(t, env.url, "not.a.jwt")
	_, err = unauth.Initialize(ctx, mcplib.InitializeRequest{})
	assert.Error(t, err)
}
