package federated

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
)

// Claims are the OpenID Connect claims read from provider ID tokens
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	EmailVerified     any    `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

// JWKSVerifier validates RS256/ES256 ID tokens from any OpenID Connect
// provider that publishes a JWK Set
type JWKSVerifier struct {
	provider string
	issuers  []string
	keyfunc  jwt.Keyfunc
	jwks     *keyfunc.JWKS
	now      func() time.Time
	logger   identity.Logger
}

var _ identity.IdentityVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed in
// the background until Close is called
func NewJWKSVerifier(provider, jwksURL string, issuers ...string) (*JWKSVerifier, error) {
	v := &JWKSVerifier{
		provider: provider,
		issuers:  issuers,
		now:      time.Now,
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			if v.logger != nil {
				v.logger.Error("failed to do a background refresh of JWK set: %s", err)
			}
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get JWK set").
			WithMetadata(map[string]any{"url": jwksURL})
	}

	v.jwks = jwks
	v.keyfunc = jwks.Keyfunc
	return v, nil
}

// NewJWKSVerifierFromKeys verifies against a fixed set of keys indexed by kid
func NewJWKSVerifierFromKeys(provider string, keys map[string]keyfunc.GivenKey, issuers ...string) *JWKSVerifier {
	return &JWKSVerifier{
		provider: provider,
		issuers:  issuers,
		keyfunc:  keyfunc.NewGiven(keys).Keyfunc,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for exp and nbf checks
func (v *JWKSVerifier) WithClock(now func() time.Time) *JWKSVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// WithLogger sets the logger used for background refresh errors
func (v *JWKSVerifier) WithLogger(logger identity.Logger) *JWKSVerifier {
	v.logger = logger
	return v
}

// Close stops the background refresh
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify checks the signature, expiry, audience and issuer of rawToken
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken, audience string) (*identity.FederatedIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during token verification")
	}

	if audience == "" {
		return nil, goerrors.New("id token audience is required", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation).
			WithMetadata(map[string]any{"provider": v.provider})
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384"}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(rawToken, claims, v.keyfunc, opts...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "id token rejected").
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{"provider": v.provider})
	}

	if len(v.issuers) > 0 && !slices.Contains(v.issuers, claims.Issuer) {
		return nil, goerrors.New("id token issuer not accepted", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{"provider": v.provider, "iss": claims.Issuer})
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, goerrors.New("id token has no email claim", goerrors.CategoryAuth).
			WithMetadata(map[string]any{"provider": v.provider, "sub": claims.Subject})
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = strings.TrimSpace(claims.PreferredUsername)
	}

	return &identity.FederatedIdentity{
		Provider:      v.provider,
		Subject:       claims.Subject,
		Email:         email,
		EmailVerified: boolClaim(claims.EmailVerified),
		DisplayName:   name,
	}, nil
}
