package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/testutil"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars(), kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	return &cli, kctx, err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		check   func(t *testing.T, cli *CLI)
	}{
		{"seed default", []string{"seed"}, "seed", func(t *testing.T, cli *CLI) {
			assert.Equal(t, 1000, cli.Seed.Customers)
		}},
		{"seed count", []string{"seed", "-n", "25"}, "seed", func(t *testing.T, cli *CLI) {
			assert.Equal(t, 25, cli.Seed.Customers)
		}},
		{"chat by id", []string{"chat", "-c", "CUST00042"}, "chat", func(t *testing.T, cli *CLI) {
			assert.Equal(t, "CUST00042", cli.Chat.Customer)
		}},
		{"report", []string{"--store", "sqlite", "report", "CUST00001"}, "report <customer>", func(t *testing.T, cli *CLI) {
			assert.Equal(t, "CUST00001", cli.Report.Customer)
			assert.Equal(t, "sqlite", cli.Store)
		}},
		{"keygen default", []string{"keygen"}, "keygen", func(t *testing.T, cli *CLI) {
			assert.Equal(t, "insureai-jwt", cli.Keygen.Output)
		}},
		{"hash-key", []string{"hash-key", "secret"}, "hash-key <key>", func(t *testing.T, cli *CLI) {
			assert.Equal(t, "secret", cli.HashKey.Key)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, kctx, err := parse(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.command, kctx.Command())
			tt.check(t, cli)
		})
	}

	t.Run("chat needs exactly one customer", func(t *testing.T) {
		_, _, err := parse(t, "chat")
		assert.Error(t, err)
		_, _, err = parse(t, "chat", "-c", "CUST00001", "-e", "a@example.com")
		assert.Error(t, err)
	})
}

// globals runs commands against a fresh SQLite file.
func globals(t *testing.T, in string) (*Globals, *bytes.Buffer) {
	t.Helper()
	t.Setenv("INSUREAI_STORE", "sqlite")
	t.Setenv("INSUREAI_SEARCH_BACKEND", "bleve")
	var out bytes.Buffer
	return &Globals{
		Ctx:        context.Background(),
		Logger:     testutil.TestLogger(),
		In:         strings.NewReader(in),
		Out:        &out,
		sqlitePath: filepath.Join(t.TempDir(), "insureai.db"),
	}, &out
}

func TestSeedAndReport(t *testing.T) {
	g, out := globals(t, "")

	require.NoError(t, (&SeedCmd{Customers: 20}).Run(g))
	assert.Contains(t, out.String(), "seeded sqlite store with 20 customers")

	out.Reset()
	require.NoError(t, (&SeedCmd{Customers: 20}).Run(g))
	assert.Contains(t, out.String(), "already holds 20 customers")

	out.Reset()
	require.NoError(t, (&ReportCmd{Customer: "CUST00003"}).Run(g))
	var rep model.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, "CUST00003", rep.Metadata.CustomerID)

	assert.Error(t, (&ReportCmd{Customer: "CUST99999"}).Run(g))
	assert.Error(t, (&SeedCmd{Customers: 0}).Run(g))
}

func TestChat(t *testing.T) {
	g, out := globals(t, "What is MediShield Life?\n\nquit\n")
	require.NoError(t, (&SeedCmd{Customers: 5}).Run(g))
	out.Reset()

	require.NoError(t, (&ChatCmd{Customer: "CUST00002"}).Run(g))
	text := out.String()
	assert.Contains(t, text, "CUST00002")
	assert.Contains(t, text, "[FAQ Agent]")
	assert.Contains(t, text, "MediShield Life")

	assert.Error(t, (&ChatCmd{Customer: "CUST09999"}).Run(g))
}

func TestKeygen(t *testing.T) {
	g, out := globals(t, "")
	prefix := filepath.Join(t.TempDir(), "jwt")

	require.NoError(t, (&KeygenCmd{Output: prefix}).Run(g))
	assert.Contains(t, out.String(), "INSUREAI_JWT_PRIVATE_KEY="+prefix+".pem")

	privPEM, err := os.ReadFile(prefix + ".pem")
	require.NoError(t, err)
	pubPEM, err := os.ReadFile(prefix + ".pub.pem")
	require.NoError(t, err)
	_, _, err = auth.ParseKeyPair(privPEM, pubPEM)
	require.NoError(t, err)

	err = (&KeygenCmd{Output: prefix}).Run(g)
	assert.ErrorContains(t, err, "already exists")
	require.NoError(t, (&KeygenCmd{Output: prefix, Force: true}).Run(g))
}

func TestHashKey(t *testing.T) {
	g, out := globals(t, "")
	require.NoError(t, (&HashKeyCmd{Key: "admin-secret"}).Run(g))

	ok, err := auth.VerifyAdminKey("admin-secret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, (&HashKeyCmd{Key: ""}).Run(g))
}

func TestVersion(t *testing.T) {
	g, out := globals(t, "")
	require.NoError(t, (&VersionCmd{}).Run(g))
	assert.Equal(t, "insurectl dev\n", out.String())
}
