package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenCodec signs and verifies HS256 tokens with a process wide key.
// It holds no mutable state once built.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
	logger     Logger
}

var _ Codec = (*TokenCodec)(nil)

// NewTokenCodec creates a codec keyed by signingKey
func NewTokenCodec(signingKey []byte, issuer string) *TokenCodec {
	return &TokenCodec{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}
}

// WithLogger overrides the logger used by the codec
func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock overrides the time source, used to stamp and check tokens
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// Issue signs claims and stamps the issue time. A positive ttl embeds an
// expiry that Verify enforces.
func (c *TokenCodec) Issue(claims *TokenClaims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	if ttl < 0 {
		return "", goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	if len(c.signingKey) == 0 {
		return "", goerrors.New("token signing key is not configured", goerrors.CategoryInternal)
	}

	signed := *claims
	now := c.now()
	signed.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	signed.RegisteredClaims.ExpiresAt = nil
	if ttl > 0 {
		signed.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	if signed.Issuer == "" {
		signed.Issuer = c.issuer
	}

	if signed.ID == "" {
		signed.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &signed)

	signedString, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signedString, nil
}

// Verify parses a token and returns its claims
func (c *TokenCodec) Verify(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, invalidToken(nil, map[string]any{"cause": "empty token"})
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("token codec encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, expiredToken(map[string]any{"expired_at": claims.Expires()})
		}
		return nil, invalidToken(err, map[string]any{"cause": err.Error()})
	}

	if !token.Valid {
		return nil, invalidToken(nil, nil)
	}

	return claims, nil
}
