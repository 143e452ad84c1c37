package auth_test

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/testutil"
)

func TestHashAndVerifyAdminKey(t *testing.T) {
	hash, err := auth.HashAdminKey("admin-key-123")
	require.NoError(t, err)
	assert.Regexp(t, `^argon2id\$[^$]+\$[^$]+$`, hash)

	valid, err := auth.VerifyAdminKey("admin-key-123", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = auth.VerifyAdminKey("wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, valid)

	other, err := auth.HashAdminKey("admin-key-123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")

	_, err = auth.HashAdminKey("")
	assert.Error(t, err)

	for _, bad := range []string{"", "plain", "bcrypt$a$b", "argon2id$!!$abc"} {
		_, err := auth.VerifyAdminKey("admin-key-123", bad)
		assert.Error(t, err, bad)
	}
}

// keyFiles writes a fresh key pair and returns the paths and the private key.
func keyFiles(t *testing.T) (string, string, ed25519.PrivateKey) {
	t.Helper()
	privPEM, pubPEM, err := auth.GenerateKeyPEM()
	require.NoError(t, err)
	priv, _, err := auth.ParseKeyPair(privPEM, pubPEM)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))
	return privPath, pubPath, priv
}

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour, testutil.TestLogger())
	require.NoError(t, err)

	sid := uuid.NewString()
	token, expiresAt, err := mgr.IssueToken("CUST00042", sid)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.Principal("CUST00042"), claims.Principal())
	assert.Equal(t, sid, claims.SessionID)

	other, err := auth.NewJWTManager("", "", time.Hour, testutil.TestLogger())
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "signed by another key")
}

func TestJWTManagerFromFiles(t *testing.T) {
	privPath, pubPath, _ := keyFiles(t)
	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour, testutil.TestLogger())
	require.NoError(t, err)

	token, _, err := mgr.IssueToken("CUST00001", uuid.NewString())
	require.NoError(t, err)
	_, err = mgr.ValidateToken(token)
	require.NoError(t, err)

	_, otherPub, _ := keyFiles(t)
	_, err = auth.NewJWTManager(privPath, otherPub, time.Hour, testutil.TestLogger())
	assert.ErrorContains(t, err, "does not match")

	_, err = auth.NewJWTManager(filepath.Join(t.TempDir(), "nope.pem"), pubPath, time.Hour, testutil.TestLogger())
	assert.Error(t, err)
}

func TestValidateTokenRejects(t *testing.T) {
	privPath, pubPath, priv := keyFiles(t)
	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour, testutil.TestLogger())
	require.NoError(t, err)

	now := time.Now().UTC()
	valid := func() auth.Claims {
		return auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "CUST00042",
				Issuer:    "insureai",
				Audience:  jwt.ClaimStrings{"insureai"},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				ID:        uuid.NewString(),
			},
			SessionID: uuid.NewString(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*auth.Claims)
	}{
		{"wrong issuer", func(c *auth.Claims) { c.Issuer = "someone-else" }},
		{"wrong audience", func(c *auth.Claims) { c.Audience = jwt.ClaimStrings{"other"} }},
		{"expired", func(c *auth.Claims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute)) }},
		{"no subject", func(c *auth.Claims) { c.Subject = "" }},
		{"bad session id", func(c *auth.Claims) { c.SessionID = "not-a-uuid" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(priv)
			require.NoError(t, err)

			_, err = mgr.ValidateToken(signed)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}

	t.Run("control", func(t *testing.T) {
		c := valid()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(priv)
		require.NoError(t, err)
		_, err = mgr.ValidateToken(signed)
		assert.NoError(t, err)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, valid()).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = mgr.ValidateToken(signed)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestParseKeyPairRejectsGarbage(t *testing.T) {
	_, _, err := auth.ParseKeyPair([]byte("nope"), []byte("nope"))
	assert.Error(t, err)

	_, pubPEM, err := auth.GenerateKeyPEM()
	require.NoError(t, err)
	_, _, err = auth.ParseKeyPair(pubPEM, pubPEM)
	assert.Error(t, err, "public key in the private slot")
}
