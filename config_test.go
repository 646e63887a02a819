package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("IDENTITY_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("IDENTITY_GOOGLE_CLIENT_ID", "client.apps.googleusercontent.com")
	t.Setenv("IDENTITY_INVITATION_TTL", "72h")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "go-identity", cfg.Issuer)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, 72*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "client.apps.googleusercontent.com", cfg.GoogleClientID)
}

func TestLoadConfigFromEnvErrors(t *testing.T) {
	t.Run("short key", func(t *testing.T) {
		t.Setenv("IDENTITY_SIGNING_KEY", "short")
		_, err := LoadConfigFromEnv()
		assert.True(t, IsValidation(err))
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("IDENTITY_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
		t.Setenv("IDENTITY_RESET_TTL", "soon")
		_, err := LoadConfigFromEnv()
		assert.True(t, IsValidation(err))
	})
}
