package identity

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invitations stores at most one pending invitation per email
type Invitations interface {
	Upsert(ctx context.Context, invitation *Invitation) (*Invitation, error)
	UpsertTx(ctx context.Context, tx bun.IDB, invitation *Invitation) (*Invitation, error)
	FindByEmail(ctx context.Context, email string) (*Invitation, error)
	Consume(ctx context.Context, email, token string) (bool, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, email, token string) (bool, error)
}

type invitations struct {
	db *bun.DB
}

var _ Invitations = (*invitations)(nil)

func NewInvitationsRepository(db *bun.DB) Invitations {
	return &invitations{db: db}
}

func (r *invitations) Upsert(ctx context.Context, invitation *Invitation) (*Invitation, error) {
	return r.UpsertTx(ctx, r.db, invitation)
}

// UpsertTx replaces any pending invitation for the same email in a single
// statement, so only the newest token stays redeemable.
func (r *invitations) UpsertTx(ctx context.Context, tx bun.IDB, invitation *Invitation) (*Invitation, error) {
	if invitation == nil {
		return nil, goerrors.New("invitation must not be nil", goerrors.CategoryInternal)
	}

	invitation.Email = NormalizeEmail(invitation.Email)
	if invitation.ID == uuid.Nil {
		invitation.ID = uuid.New()
	}

	_, err := tx.NewInsert().
		Model(invitation).
		On("CONFLICT (email) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("token = EXCLUDED.token").
		Set("expire_at = EXCLUDED.expire_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store invitation")
	}

	return invitation, nil
}

func (r *invitations) FindByEmail(ctx context.Context, email string) (*Invitation, error) {
	record := &Invitation{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invalidToken(err, map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve invitation")
	}
	return record, nil
}

func (r *invitations) Consume(ctx context.Context, email, token string) (bool, error) {
	return r.ConsumeTx(ctx, r.db, email, token)
}

// ConsumeTx deletes the invitation only if the token is still the live one
// for that email. It reports false when nothing matched.
func (r *invitations) ConsumeTx(ctx context.Context, tx bun.IDB, email, token string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Invitation)(nil)).
		Where("email = ?", NormalizeEmail(email)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume invitation")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read consumed invitations")
	}

	return affected > 0, nil
}
