package identity

import (
	"context"
	"database/sql"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager groups the three stores behind one connection so
// managers can span them in a single transaction
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Invitations() Invitations
	PasswordResets() PasswordResets
}

type stores struct {
	db             *bun.DB
	users          Users
	invitations    Invitations
	passwordResets PasswordResets
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &stores{
		db:             db,
		users:          NewUsersRepository(db, opts...),
		invitations:    NewInvitationsRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
	}
}

func (s *stores) Validate() error {
	missing := make([]string, 0)
	if s.db == nil {
		missing = append(missing, "db")
	}
	if s.users == nil {
		missing = append(missing, "users")
	}
	if s.invitations == nil {
		missing = append(missing, "invitations")
	}
	if s.passwordResets == nil {
		missing = append(missing, "password_resets")
	}

	if len(missing) > 0 {
		return goerrors.New("repository manager is not initialized", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"missing": missing})
	}

	return nil
}

func (s *stores) MustValidate() {
	if err := s.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx refuses to start once ctx is done
func (s *stores) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.RunInTx(ctx, opts, f)
}

func (s *stores) Users() Users {
	return s.users
}

func (s *stores) Invitations() Invitations {
	return s.invitations
}

func (s *stores) PasswordResets() PasswordResets {
	return s.passwordResets
}
