package federated

import (
	"context"
	"strings"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// ProviderGoogle is the provider name reported for Google identities
const ProviderGoogle = "google"

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier checks Google ID tokens against Google's published keys
type GoogleVerifier struct {
	validate validateFunc
}

var _ identity.IdentityVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier creates a verifier backed by idtoken.Validator. Client
// options are passed through, e.g. option.WithHTTPClient.
func NewGoogleVerifier(ctx context.Context, opts ...option.ClientOption) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create google token validator")
	}
	return &GoogleVerifier{validate: validator.Validate}, nil
}

// Verify validates rawToken for audience and maps the payload claims
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken, audience string) (*identity.FederatedIdentity, error) {
	if audience == "" {
		return nil, goerrors.New("google client id is required", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation)
	}

	payload, err := v.validate(ctx, rawToken, audience)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "google id token rejected").
			WithCode(goerrors.CodeUnauthorized)
	}

	return payloadIdentity(payload)
}

func payloadIdentity(payload *idtoken.Payload) (*identity.FederatedIdentity, error) {
	if payload == nil {
		return nil, goerrors.New("google id token has no payload", goerrors.CategoryAuth)
	}

	fed := &identity.FederatedIdentity{
		Provider: ProviderGoogle,
		Subject:  payload.Subject,
	}

	if email, ok := payload.Claims["email"].(string); ok {
		fed.Email = strings.TrimSpace(email)
	}

	fed.EmailVerified = boolClaim(payload.Claims["email_verified"])

	if name, ok := payload.Claims["name"].(string); ok {
		fed.DisplayName = strings.TrimSpace(name)
	}

	if fed.Email == "" {
		return nil, goerrors.New("google id token has no email claim", goerrors.CategoryAuth).
			WithMetadata(map[string]any{"sub": payload.Subject})
	}

	return fed, nil
}

// some issuers encode email_verified as a string
func boolClaim(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}
