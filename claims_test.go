package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTokenClaims_UserID(t *testing.T) {
	t.Run("returns UID when present", func(t *testing.T) {
		claims := &TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
			UID:              "uid456",
		}
		assert.Equal(t, "uid456", claims.UserID())
	})

	t.Run("falls back to subject", func(t *testing.T) {
		claims := &TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
		}
		assert.Equal(t, "user123", claims.UserID())
	})
}

func TestTokenClaims_Times(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))
	assert.True(t, (&TokenClaims{}).Expires().IsZero())
	assert.True(t, (&TokenClaims{}).IssuedAt().IsZero())
}

func TestSessionClaims(t *testing.T) {
	user := &User{ID: uuid.New(), Username: "jane", Email: "jane@example.com"}

	claims := SessionClaims(user)

	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.ID.String(), claims.UID)
	assert.Equal(t, "jane", claims.Username)
	assert.Equal(t, PurposeSession, claims.Purpose)
}
