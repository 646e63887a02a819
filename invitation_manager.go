package identity

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// InvitationManager issues and redeems single use invitation tokens bound
// to an email address
type InvitationManager struct {
	repo   RepositoryManager
	codec  Codec
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// NewInvitationManager creates a manager. Invitations never expire unless
// WithTTL is set.
func NewInvitationManager(repo RepositoryManager, codec Codec) *InvitationManager {
	return &InvitationManager{
		repo:   repo,
		codec:  codec,
		now:    time.Now,
		logger: defLogger{},
	}
}

// WithTTL embeds an expiry in issued invitation tokens
func (m *InvitationManager) WithTTL(ttl time.Duration) *InvitationManager {
	if ttl >= 0 {
		m.ttl = ttl
	}
	return m
}

// WithClock overrides the time source
func (m *InvitationManager) WithClock(now func() time.Time) *InvitationManager {
	if now != nil {
		m.now = now
	}
	return m
}

// WithLogger overrides the logger
func (m *InvitationManager) WithLogger(logger Logger) *InvitationManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Issue mints an invitation for email and replaces any pending one, so an
// older token held by someone else stops redeeming.
func (m *InvitationManager) Issue(ctx context.Context, email string) (*Invitation, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, goerrors.New("invitation email is required", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation)
	}

	token, err := m.codec.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
		Email:            email,
		Purpose:          PurposeInvitation,
	}, m.ttl)
	if err != nil {
		return nil, asRichError(err, "failed to mint invitation token")
	}

	invitation := &Invitation{
		Email:     email,
		Token:     token,
		CreatedAt: m.now().UTC(),
	}

	if m.ttl > 0 {
		expireAt := invitation.CreatedAt.Add(m.ttl)
		invitation.ExpireAt = &expireAt
	}

	stored, err := m.repo.Invitations().Upsert(ctx, invitation)
	if err != nil {
		return nil, asRichError(err, "failed to store invitation")
	}

	m.logger.Debug("invitation issued for %s", email)

	return stored, nil
}

// Inspect checks the token signature and purpose and returns the invited
// email. It does not consume the invitation.
func (m *InvitationManager) Inspect(token string) (string, error) {
	claims, err := m.codec.Verify(token)
	if err != nil {
		return "", err
	}

	if claims.Purpose != PurposeInvitation {
		return "", invalidToken(nil, map[string]any{"cause": "token is not an invitation"})
	}

	email := NormalizeEmail(claims.Email)
	if email == "" || !strings.Contains(email, "@") {
		return "", invalidToken(nil, map[string]any{"cause": "invitation has no email"})
	}

	return email, nil
}

// Redeem consumes the invitation and returns its email. A valid signature
// is not enough: the token must still be the live row for that email, so a
// second redemption or a superseded token fails.
func (m *InvitationManager) Redeem(ctx context.Context, token string) (string, error) {
	email, err := m.Inspect(token)
	if err != nil {
		return "", err
	}

	consumed, err := m.repo.Invitations().Consume(ctx, email, token)
	if err != nil {
		return "", asRichError(err, "failed to consume invitation")
	}

	if !consumed {
		return "", invalidToken(nil, map[string]any{
			"email": email,
			"cause": "invitation used or superseded",
		})
	}

	m.logger.Debug("invitation redeemed for %s", email)

	return email, nil
}
