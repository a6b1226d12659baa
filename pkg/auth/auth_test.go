package auth

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
)

func testSigner() *Signer {
	return NewSigner(config.AuthConfig{JWTSecret: "jwt-secret", MasterSecret: "master-secret"})
}

func TestKeyRoundTrip(t *testing.T) {
	s := testSigner()
	key, err := s.GenerateKey("guild-7")
	require.NoError(t, err)

	unit, err := s.VerifyKey(key)
	require.NoError(t, err)
	assert.Equal(t, "guild-7", unit)

	other, err := s.GenerateKey("guild-7")
	require.NoError(t, err)
	assert.NotEqual(t, key, other, "keys for the same unit are distinct")
}

func TestVerifyKeyRejects(t *testing.T) {
	s := testSigner()
	key, err := s.GenerateKey("guild-7")
	require.NoError(t, err)
	parts := strings.Split(key, ".")

	_, err = s.VerifyKey("guild-8." + parts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.VerifyKey("no-dots")
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)

	foreign := NewSigner(config.AuthConfig{MasterSecret: "other"})
	_, err = foreign.VerifyKey(key)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.GenerateKey("a.b")
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestToken(t *testing.T) {
	s := testSigner()
	token, err := s.CreateToken("admin")
	require.NoError(t, err)

	claims, err := s.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	_, err = NewSigner(config.AuthConfig{JWTSecret: "different"}).VerifyToken(token)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	assert.Equal(t, "guild-7....abcd", Preview("guild-7.0123456789abcd"))
}

func TestEnsureAdminExists(t *testing.T) {
	db, err := database.InitDB(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "auth.db")}, zap.NewNop())
	require.NoError(t, err)
	cfg := config.AuthConfig{AdminUsername: "root", AdminPassword: "hunter22"}

	require.NoError(t, EnsureAdminExists(db, cfg, zap.NewNop()))
	require.NoError(t, EnsureAdminExists(db, cfg, zap.NewNop()))

	var users []database.MasterUser
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Username)
	assert.True(t, CheckPasswordHash("hunter22", users[0].PasswordHash))
	assert.False(t, CheckPasswordHash("wrong", users[0].PasswordHash))

	key := "guild-1.abc.def"
	require.NoError(t, db.Create(&database.APIKey{Key: key, Name: "bot", UnitID: "guild-1"}).Error)
	found, err := LookupAPIKey(db, key)
	require.NoError(t, err)
	assert.Equal(t, "guild-1", found.UnitID)
	assert.NotNil(t, found.LastUsed)

	_, err = LookupAPIKey(db, "missing")
	assert.Error(t, err)
}
