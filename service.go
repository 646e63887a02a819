package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AuthResult is returned by successful logins
type AuthResult struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}

// ForgotPasswordStatus describes the outcome of a forgot password request
type ForgotPasswordStatus string

const (
	// ForgotPasswordSent means a reset token was issued and handed to the notifier
	ForgotPasswordSent ForgotPasswordStatus = "sent"
	// ForgotPasswordProvider means the account signs in through an identity
	// provider and has no password to reset
	ForgotPasswordProvider ForgotPasswordStatus = "provider"
)

// ForgotPasswordResult is the non-error outcome of ForgotPassword
type ForgotPasswordResult struct {
	Status  ForgotPasswordStatus `json:"status"`
	Message string               `json:"message"`
}

// Service orchestrates registration, login and password recovery. Every
// call is request scoped; the service holds no mutable state.
type Service struct {
	repo        RepositoryManager
	codec       Codec
	invitations *InvitationManager
	resets      *ResetManager
	verifier    IdentityVerifier
	audience    string
	notifier    Notifier
	activity    ActivitySink
	now         func() time.Time
	logger      Logger
}

// NewService wires the managers around a shared repository and codec
func NewService(repo RepositoryManager, codec Codec) *Service {
	return &Service{
		repo:        repo,
		codec:       codec,
		invitations: NewInvitationManager(repo, codec),
		resets:      NewResetManager(repo, codec),
		notifier:    noopNotifier{},
		activity:    noopActivitySink{},
		now:         time.Now,
		logger:      defLogger{},
	}
}

// NewServiceFromConfig builds a codec and managers from cfg
func NewServiceFromConfig(repo RepositoryManager, cfg Config) *Service {
	codec := NewTokenCodec([]byte(cfg.SigningKey), cfg.Issuer)
	s := NewService(repo, codec)
	s.invitations.WithTTL(cfg.InvitationTTL)
	s.resets.WithTTL(cfg.ResetTTL)
	s.audience = cfg.GoogleClientID
	return s
}

// WithInvitationManager replaces the invitation manager
func (s *Service) WithInvitationManager(m *InvitationManager) *Service {
	if m != nil {
		s.invitations = m
	}
	return s
}

// WithResetManager replaces the reset manager
func (s *Service) WithResetManager(m *ResetManager) *Service {
	if m != nil {
		s.resets = m
	}
	return s
}

// WithIdentityVerifier sets the provider verifier and the expected audience
func (s *Service) WithIdentityVerifier(verifier IdentityVerifier, audience string) *Service {
	s.verifier = verifier
	if audience != "" {
		s.audience = audience
	}
	return s
}

// WithNotifier sets the collaborator that delivers invitation and reset tokens
func (s *Service) WithNotifier(notifier Notifier) *Service {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the time source used to stamp activity events
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLogger overrides the logger used by the service and its managers
func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
		s.invitations.WithLogger(logger)
		s.resets.WithLogger(logger)
	}
	return s
}

// Invitations returns the invitation manager
func (s *Service) Invitations() *InvitationManager {
	return s.invitations
}

// Resets returns the reset manager
func (s *Service) Resets() *ResetManager {
	return s.resets
}

// Register creates a user with a local password
func (s *Service) Register(ctx context.Context, msg RegisterUserMessage) (*PublicUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during user registration")
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return s.register(ctx, msg, nil)
}

// RegisterInvited redeems the invitation and then registers the user. An
// unusable token is reported as an invalid token, never as a conflict. The
// invitation stays consumed if the registration itself fails afterwards.
func (s *Service) RegisterInvited(ctx context.Context, msg RegisterInvitedMessage) (*PublicUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during invited registration")
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	invited, err := s.invitations.Inspect(msg.Token)
	if err != nil {
		return nil, err
	}

	if invited != NormalizeEmail(msg.Email) {
		return nil, invalidToken(nil, map[string]any{
			"cause": "invitation was issued for a different email",
		})
	}

	if _, err := s.invitations.Redeem(ctx, msg.Token); err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventInvitationRedeemed, ActorRef{Type: "invitee"}, "", map[string]any{
		"email": invited,
	})

	return s.register(ctx, msg.RegisterUserMessage, map[string]any{"invited": true})
}

func (s *Service) register(ctx context.Context, msg RegisterUserMessage, metadata map[string]any) (*PublicUser, error) {
	users := s.repo.Users()

	if _, err := users.FindByUsernameOrEmail(ctx, msg.Username, msg.Email); err == nil {
		return nil, conflict(map[string]any{
			"username": msg.Username,
			"email":    NormalizeEmail(msg.Email),
		})
	} else if !IsNotFound(err) {
		return nil, err
	}

	user, err := users.CreateUser(ctx, msg.Username, msg.Email, msg.Password)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventUserRegistered, userActor(user), user.ID.String(), metadata)

	public := user.Public()
	return &public, nil
}

// Authenticate checks password credentials and issues a session token
func (s *Service) Authenticate(ctx context.Context, msg LoginMessage) (*AuthResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().FindByUsername(ctx, msg.Username)
	if err != nil {
		if IsNotFound(err) {
			s.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"identifier": msg.Username,
				"reason":     ReasonNotFound,
			})
			return nil, NewAuthenticationError(ReasonNotFound)
		}
		return nil, err
	}

	if !s.repo.Users().VerifyPassword(user, msg.Password) {
		s.emit(ctx, ActivityEventLoginFailure, userActor(user), user.ID.String(), map[string]any{
			"identifier": msg.Username,
			"reason":     ReasonMismatch,
		})
		return nil, NewAuthenticationError(ReasonMismatch)
	}

	result, err := s.session(user)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, userActor(user), user.ID.String(), map[string]any{
		"identifier": msg.Username,
	})

	return result, nil
}

// AuthenticateFederated verifies a provider identity token, finds or
// creates the user by email and issues a session token. The provider
// display name becomes the username only when the account has none and
// nobody else holds it.
func (s *Service) AuthenticateFederated(ctx context.Context, msg FederatedLoginMessage) (*AuthResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if s.verifier == nil {
		return nil, goerrors.New("identity verifier is not configured", goerrors.CategoryInternal)
	}

	fed, err := s.verifier.Verify(ctx, msg.Token, s.audience)
	if err != nil {
		s.logger.Warn("federated identity token rejected: %v", err)
		return nil, NewAuthenticationError(ReasonProvider, map[string]any{
			"cause": err.Error(),
		})
	}

	if NormalizeEmail(fed.Email) == "" {
		return nil, NewAuthenticationError(ReasonProvider, map[string]any{
			"cause": "identity token has no email",
		})
	}

	// an unverified address could belong to anyone, including a local account
	if !fed.EmailVerified {
		return nil, NewAuthenticationError(ReasonProvider, map[string]any{
			"cause":    "email not verified",
			"provider": fed.Provider,
		})
	}

	user, created, err := s.findOrCreateFederated(ctx, fed)
	if err != nil {
		return nil, err
	}

	result, err := s.session(user)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventSocialLogin, userActor(user), user.ID.String(), map[string]any{
		"provider": fed.Provider,
		"created":  created,
	})

	return result, nil
}

func (s *Service) findOrCreateFederated(ctx context.Context, fed *FederatedIdentity) (*User, bool, error) {
	users := s.repo.Users()

	user, err := users.FindByEmail(ctx, fed.Email)
	if err == nil {
		if user.Username == "" {
			available, err := s.usernameAvailable(ctx, fed.DisplayName)
			if err != nil {
				return nil, false, err
			}
			if !available {
				return user, false, nil
			}
			linked, err := users.LinkUsername(ctx, user, fed.DisplayName)
			if err != nil && !IsConflict(err) {
				return nil, false, err
			}
			if err == nil {
				user = linked
			}
		}
		return user, false, nil
	}

	if !IsNotFound(err) {
		return nil, false, err
	}

	username := fed.DisplayName
	available, err := s.usernameAvailable(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if !available {
		username = ""
	}

	user, err = users.CreateUser(ctx, username, fed.Email, "")
	if err == nil {
		return user, true, nil
	}

	if !IsConflict(err) {
		return nil, false, err
	}

	// a concurrent sign in created the account first
	user, err = users.FindByEmail(ctx, fed.Email)
	if err != nil {
		return nil, false, err
	}

	return user, false, nil
}

func (s *Service) usernameAvailable(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	_, err := s.repo.Users().FindByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case IsNotFound(err):
		return true, nil
	default:
		return false, asRichError(err, "failed to check username availability")
	}
}

// ForgotPassword issues a reset token and hands it to the notifier. A
// federated only account is an expected outcome, reported through the
// result status rather than an error.
func (s *Service) ForgotPassword(ctx context.Context, msg ForgotPasswordMessage) (*ForgotPasswordResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	reset, err := s.resets.Issue(ctx, msg.Username)
	if err != nil {
		if IsFederatedAccount(err) {
			return &ForgotPasswordResult{
				Status:  ForgotPasswordProvider,
				Message: "user has logged in with an identity provider",
			}, nil
		}
		return nil, err
	}

	s.notify(ctx, Notification{
		Kind:      NotificationPasswordReset,
		Recipient: reset.Email,
		Username:  reset.Username,
		Token:     reset.Token,
	})

	s.emit(ctx, ActivityEventPasswordResetRequested, ActorRef{Type: "user"}, "", map[string]any{
		"username":  reset.Username,
		"expire_at": reset.ExpireAt,
	})

	return &ForgotPasswordResult{
		Status:  ForgotPasswordSent,
		Message: "forgot password e-mail sent",
	}, nil
}

// ResetPassword redeems a reset token
func (s *Service) ResetPassword(ctx context.Context, msg ResetPasswordMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := s.resets.Redeem(ctx, msg.Token, msg.Password); err != nil {
		return err
	}

	s.emit(ctx, ActivityEventPasswordResetSuccess, ActorRef{Type: "user"}, "", nil)

	return nil
}

// Invite issues an invitation for an email that has no account yet and
// hands the token to the notifier
func (s *Service) Invite(ctx context.Context, msg InviteUserMessage) (*Invitation, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.Users().FindByEmail(ctx, msg.Email); err == nil {
		return nil, goerrors.New("a user with this email already exists", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithTextCode(TextCodeUserExists).
			WithMetadata(map[string]any{"email": NormalizeEmail(msg.Email)})
	} else if !IsNotFound(err) {
		return nil, err
	}

	invitation, err := s.invitations.Issue(ctx, msg.Email)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, Notification{
		Kind:      NotificationInvitation,
		Recipient: invitation.Email,
		Token:     invitation.Token,
	})

	s.emit(ctx, ActivityEventInvitationIssued, ActorRef{Type: "system"}, "", map[string]any{
		"email": invitation.Email,
	})

	return invitation, nil
}

// ListUsers returns the public view of every user
func (s *Service) ListUsers(ctx context.Context) ([]PublicUser, error) {
	records, err := s.repo.Users().ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PublicUser, 0, len(records))
	for _, u := range records {
		out = append(out, u.Public())
	}
	return out, nil
}

// DeleteUser removes a user, reporting whether a row existed
func (s *Service) DeleteUser(ctx context.Context, id string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user id").
			WithTextCode(TextCodeValidation)
	}

	deleted, err := s.repo.Users().RemoveUser(ctx, uid)
	if err != nil {
		return false, err
	}

	if deleted {
		s.emit(ctx, ActivityEventUserDeleted, ActorRef{Type: "system"}, id, nil)
	}

	return deleted, nil
}

// SessionFromToken decodes a session token issued by Authenticate
func (s *Service) SessionFromToken(token string) (*TokenClaims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != PurposeSession {
		return nil, invalidToken(nil, map[string]any{"cause": "token is not a session token"})
	}

	return claims, nil
}

// session tokens carry no expiry, the transport boundary decides lifetime
func (s *Service) session(user *User) (*AuthResult, error) {
	token, err := s.codec.Issue(SessionClaims(user), 0)
	if err != nil {
		return nil, asRichError(err, "failed to issue session token")
	}

	return &AuthResult{
		User:  user.Public(),
		Token: token,
	}, nil
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("failed to deliver %s notification to %s: %v", n.Kind, n.Recipient, err)
	}
}

func (s *Service) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := newActivityEvent(eventType, actor, userID, metadata, s.now())

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
