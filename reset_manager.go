package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultResetTTL is how long a password reset token stays redeemable
const DefaultResetTTL = time.Hour

// ResetManager issues and redeems single use, time limited password reset
// tokens bound to a username
type ResetManager struct {
	repo   RepositoryManager
	codec  Codec
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

func NewResetManager(repo RepositoryManager, codec Codec) *ResetManager {
	return &ResetManager{
		repo:   repo,
		codec:  codec,
		ttl:    DefaultResetTTL,
		now:    time.Now,
		logger: defLogger{},
	}
}

// WithTTL sets the reset window
func (m *ResetManager) WithTTL(ttl time.Duration) *ResetManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// WithClock overrides the time source
func (m *ResetManager) WithClock(now func() time.Time) *ResetManager {
	if now != nil {
		m.now = now
	}
	return m
}

// WithLogger overrides the logger
func (m *ResetManager) WithLogger(logger Logger) *ResetManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Issue creates a reset for username, replacing any pending one. Accounts
// without a local password get ErrFederatedAccount, missing users get
// ErrUserNotFound.
func (m *ResetManager) Issue(ctx context.Context, username string) (*PasswordReset, error) {
	user, err := m.repo.Users().FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if !user.HasPassword() {
		return nil, ErrFederatedAccount.Clone().
			WithMetadata(map[string]any{"username": user.Username})
	}

	token, err := m.codec.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Username},
		Username:         user.Username,
		Purpose:          PurposePasswordReset,
	}, m.ttl)
	if err != nil {
		return nil, asRichError(err, "failed to mint password reset token")
	}

	now := m.now().UTC()
	reset := &PasswordReset{
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		ExpireAt:  now.Add(m.ttl),
		CreatedAt: now,
	}

	stored, err := m.repo.PasswordResets().Upsert(ctx, reset)
	if err != nil {
		return nil, asRichError(err, "failed to store password reset")
	}

	m.logger.Debug("password reset issued for %s", user.Username)

	return stored, nil
}

// Redeem sets newPassword for the user the token was issued to. An expired
// row is left in place. The password update and the row delete share a
// transaction: if the update fails the token stays redeemable, and a
// concurrent redemption that loses the delete rolls back its update.
func (m *ResetManager) Redeem(ctx context.Context, token, newPassword string) error {
	reset, err := m.repo.PasswordResets().FindByToken(ctx, token)
	if err != nil {
		return err
	}

	if reset.IsExpired(m.now()) {
		return expiredToken(map[string]any{
			"username":  reset.Username,
			"expire_at": reset.ExpireAt,
		})
	}

	claims, err := m.codec.Verify(token)
	if err != nil {
		return err
	}

	if claims.Purpose != PurposePasswordReset || claims.Username != reset.Username {
		return invalidToken(nil, map[string]any{"cause": "token does not match reset request"})
	}

	err = m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := m.repo.Users().FindByUsernameTx(ctx, tx, reset.Username)
		if err != nil {
			return err
		}

		if err := m.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, newPassword); err != nil {
			return err
		}

		deleted, err := m.repo.PasswordResets().DeleteTx(ctx, tx, reset.ID, reset.Token)
		if err != nil {
			return err
		}

		if !deleted {
			return invalidToken(nil, map[string]any{"cause": "password reset already used"})
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	m.logger.Debug("password reset redeemed for %s", reset.Username)

	return nil
}

// PruneExpired deletes reset rows that expired before the given instant.
// Redemption never purges rows on its own.
func (m *ResetManager) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	return m.repo.PasswordResets().DeleteExpired(ctx, before.UTC())
}
