package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets stores at most one pending reset per username
type PasswordResets interface {
	Upsert(ctx context.Context, reset *PasswordReset) (*PasswordReset, error)
	UpsertTx(ctx context.Context, tx bun.IDB, reset *PasswordReset) (*PasswordReset, error)
	FindByToken(ctx context.Context, token string) (*PasswordReset, error)
	FindByUsername(ctx context.Context, username string) (*PasswordReset, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type passwordResets struct {
	db *bun.DB
}

var _ PasswordResets = (*passwordResets)(nil)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	return &passwordResets{db: db}
}

func (r *passwordResets) Upsert(ctx context.Context, reset *PasswordReset) (*PasswordReset, error) {
	return r.UpsertTx(ctx, r.db, reset)
}

// UpsertTx replaces any pending reset for the same username in one statement
func (r *passwordResets) UpsertTx(ctx context.Context, tx bun.IDB, reset *PasswordReset) (*PasswordReset, error) {
	if reset == nil {
		return nil, goerrors.New("password reset must not be nil", goerrors.CategoryInternal)
	}

	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}

	_, err := tx.NewInsert().
		Model(reset).
		On("CONFLICT (username) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("email = EXCLUDED.email").
		Set("token = EXCLUDED.token").
		Set("expire_at = EXCLUDED.expire_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
	}

	return reset, nil
}

func (r *passwordResets) FindByToken(ctx context.Context, token string) (*PasswordReset, error) {
	return r.findBy(ctx, "token", token)
}

func (r *passwordResets) FindByUsername(ctx context.Context, username string) (*PasswordReset, error) {
	return r.findBy(ctx, "username", username)
}

func (r *passwordResets) findBy(ctx context.Context, column, value string) (*PasswordReset, error) {
	if value == "" {
		return nil, invalidToken(nil, nil)
	}

	record := &PasswordReset{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invalidToken(err, nil)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
	}

	return record, nil
}

// DeleteTx removes the reset only if it still carries the given token
func (r *passwordResets) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*PasswordReset)(nil)).
		Where("id = ?", id).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete password reset")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read deleted password resets")
	}

	return affected > 0, nil
}

func (r *passwordResets) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*PasswordReset)(nil)).
		Where("expire_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to prune password resets")
	}
	return res.RowsAffected()
}
