package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Users is the credential store. It exclusively owns user rows.
type Users interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	FindByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, username, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	CreateUser(ctx context.Context, username, email, password string) (*User, error)
	CreateUserTx(ctx context.Context, tx bun.IDB, username, email, password string) (*User, error)
	VerifyPassword(user *User, password string) bool
	LinkUsername(ctx context.Context, user *User, username string) (*User, error)
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, password string) error
	RemoveUser(ctx context.Context, id uuid.UUID) (bool, error)
}

type users struct {
	repo      repository.Repository[*User]
	db        *bun.DB
	hashCost  int
	useHashid bool
	now       func() time.Time
	logger    Logger
}

var _ Users = (*users)(nil)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithHashCost sets the bcrypt cost used for new password hashes
func WithHashCost(cost int) UsersOption {
	return func(u *users) {
		u.hashCost = cost
	}
}

// WithHashidIDs derives user ids from the email address instead of
// generating random ones
func WithHashidIDs() UsersOption {
	return func(u *users) {
		u.useHashid = true
	}
}

// WithUsersClock overrides the time source used for timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

// WithUsersLogger overrides the logger
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	u := &users{
		repo:     repo,
		db:       db,
		hashCost: passwordHashCost(),
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	return u
}

func (u *users) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	return u.FindByUsernameOrEmailTx(ctx, u.db, username, email)
}

func (u *users) FindByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, username, email string) (*User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if username == "" && email == "" {
		return nil, userNotFound(nil)
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if username != "" {
				q = q.WhereOr("?TableAlias.username = ?", username)
			}
			if email != "" {
				q = q.WhereOr("?TableAlias.email = ?", email)
			}
			return q
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, u.lookupError(err, map[string]any{
			"username": username,
			"email":    email,
		})
	}

	return record, nil
}

func (u *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return u.findBy(ctx, u.db, "id", id)
}

func (u *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return u.FindByUsernameTx(ctx, u.db, username)
}

func (u *users) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, userNotFound(nil)
	}
	return u.findBy(ctx, tx, "username", username)
}

func (u *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, userNotFound(nil)
	}
	return u.findBy(ctx, u.db, "email", email)
}

func (u *users) findBy(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, u.lookupError(err, map[string]any{column: value})
	}

	return record, nil
}

func (u *users) ListUsers(ctx context.Context) ([]*User, error) {
	records := make([]*User, 0)
	err := u.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (u *users) CreateUser(ctx context.Context, username, email, password string) (*User, error) {
	var created *User
	err := u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = u.CreateUserTx(ctx, tx, username, email, password)
		return err
	})
	if err != nil {
		return nil, asRichError(err, "user creation transaction failed")
	}
	return created, nil
}

// CreateUserTx checks for a matching username or email before inserting and
// maps unique constraint violations to a conflict, so a concurrent insert
// that slips past the check is still rejected.
func (u *users) CreateUserTx(ctx context.Context, tx bun.IDB, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	metadata := map[string]any{
		"username": username,
		"email":    email,
	}

	if _, err := u.FindByUsernameOrEmailTx(ctx, tx, username, email); err == nil {
		return nil, conflict(metadata)
	} else if !IsNotFound(err) {
		return nil, err
	}

	record := &User{
		Username: username,
		Email:    email,
	}

	if password != "" {
		hash, err := HashPasswordWithCost(password, u.hashCost)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided").
				WithTextCode(TextCodeValidation)
		}
		record.PasswordHash = hash
	}

	record.ID = u.newID(email)
	now := u.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	created, err := u.repo.CreateTx(ctx, tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(metadata)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	return created, nil
}

// VerifyPassword returns false for accounts without a local password
func (u *users) VerifyPassword(user *User, password string) bool {
	if !user.HasPassword() || password == "" {
		return false
	}
	return ComparePasswordAndHash(password, user.PasswordHash) == nil
}

// LinkUsername sets the username of an account that has none. An existing
// username is never overwritten.
func (u *users) LinkUsername(ctx context.Context, user *User, username string) (*User, error) {
	if user == nil {
		return nil, userNotFound(nil)
	}

	username = strings.TrimSpace(username)
	if user.Username != "" || username == "" {
		return user, nil
	}

	now := u.now()
	res, err := u.db.NewUpdate().
		Model((*User)(nil)).
		Set("username = ?", username).
		Set("updated_at = ?", now).
		Where("id = ?", user.ID).
		Where("username IS NULL").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(map[string]any{"username": username})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link username")
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		// someone else linked it first, return the stored value
		return u.FindByID(ctx, user.ID)
	}

	user.Username = username
	user.UpdatedAt = now
	return user, nil
}

func (u *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, password string) error {
	hash, err := HashPasswordWithCost(password, u.hashCost)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided").
			WithTextCode(TextCodeValidation)
	}

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", u.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return userNotFound(map[string]any{"id": id.String()})
	}

	return nil
}

func (u *users) RemoveUser(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := u.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read deleted rows")
	}

	return affected > 0, nil
}

func (u *users) newID(email string) uuid.UUID {
	if u.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
		u.logger.Warn("hashid failed for %s, falling back to random id", email)
	}
	return uuid.New()
}

func (u *users) lookupError(err error, metadata map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return userNotFound(metadata)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
}

// NormalizeEmail trims and lower cases an address so lookups are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		var pgErr *pgconn.PgError
		if errors.As(e, &pgErr) && pgErr.Code == "23505" {
			return true
		}
		msg := e.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value") {
			return true
		}
	}
	return false
}
