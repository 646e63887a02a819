package federated

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

func newTestVerifier(t *testing.T, issuers ...string) (*JWKSVerifier, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := NewJWKSVerifierFromKeys("acme", map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenRSA(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	}, issuers...)

	return v, key
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://id.acme.test",
			Subject:   "1234",
			Audience:  jwt.ClaimStrings{"client-1"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "Jane@Example.com",
		EmailVerified: true,
		Name:          "jane",
	}
}

func TestJWKSVerifier_Verify(t *testing.T) {
	v, key := newTestVerifier(t, "https://id.acme.test")

	raw := signIDToken(t, key, baseClaims())

	fed, err := v.Verify(context.Background(), raw, "client-1")
	require.NoError(t, err)

	assert.Equal(t, "acme", fed.Provider)
	assert.Equal(t, "1234", fed.Subject)
	assert.Equal(t, "Jane@Example.com", fed.Email)
	assert.True(t, fed.EmailVerified)
	assert.Equal(t, "jane", fed.DisplayName)
}

func TestJWKSVerifier_PreferredUsernameFallback(t *testing.T) {
	v, key := newTestVerifier(t)

	claims := baseClaims()
	claims.Name = ""
	claims.PreferredUsername = "jdoe"
	claims.EmailVerified = "true"

	fed, err := v.Verify(context.Background(), signIDToken(t, key, claims), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", fed.DisplayName)
	assert.True(t, fed.EmailVerified)
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	v, key := newTestVerifier(t, "https://id.acme.test")

	t.Run("wrong audience", func(t *testing.T) {
		raw := signIDToken(t, key, baseClaims())
		_, err := v.Verify(context.Background(), raw, "client-2")
		assert.Error(t, err)
	})

	t.Run("empty audience", func(t *testing.T) {
		claims := baseClaims()
		claims.Audience = jwt.ClaimStrings{"some-other-client"}
		fed, err := v.Verify(context.Background(), signIDToken(t, key, claims), "")
		require.Error(t, err)
		assert.Nil(t, fed)
		assert.True(t, identity.IsValidation(err))
	})

	t.Run("expired", func(t *testing.T) {
		claims := baseClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(context.Background(), signIDToken(t, key, claims), "client-1")
		assert.Error(t, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := baseClaims()
		claims.ExpiresAt = nil
		_, err := v.Verify(context.Background(), signIDToken(t, key, claims), "client-1")
		assert.Error(t, err)
	})

	t.Run("unknown issuer", func(t *testing.T) {
		claims := baseClaims()
		claims.Issuer = "https://evil.test"
		_, err := v.Verify(context.Background(), signIDToken(t, key, claims), "client-1")
		assert.Error(t, err)
	})

	t.Run("no email", func(t *testing.T) {
		claims := baseClaims()
		claims.Email = ""
		_, err := v.Verify(context.Background(), signIDToken(t, key, claims), "client-1")
		assert.Error(t, err)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), signIDToken(t, other, baseClaims()), "client-1")
		assert.Error(t, err)
	})

	t.Run("hmac token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
		token.Header["kid"] = testKID
		raw, err := token.SignedString([]byte("shared-secret-value"))
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), raw, "client-1")
		assert.Error(t, err)
	})
}

func TestJWKSVerifier_Clock(t *testing.T) {
	v, key := newTestVerifier(t)

	raw := signIDToken(t, key, baseClaims())
	v.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	_, err := v.Verify(context.Background(), raw, "client-1")
	assert.Error(t, err)
}
