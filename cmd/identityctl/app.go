package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/database"
	"github.com/goliatone/go-identity/federated"
	"github.com/goliatone/go-identity/notify"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error)
}

var commands = map[string]command{
	"migrate":          {usage: "apply database migrations", run: cmdMigrate},
	"register":         {usage: "register a user with a password", run: cmdRegister},
	"invite":           {usage: "invite an email address", run: cmdInvite},
	"register-invited": {usage: "register with an invitation token", run: cmdRegisterInvited},
	"login":            {usage: "authenticate with username and password", run: cmdLogin},
	"login-google":     {usage: "authenticate with a Google ID token", run: cmdLoginGoogle},
	"login-oidc":       {usage: "authenticate with an ID token checked against a JWK set", run: cmdLoginOIDC},
	"forgot-password":  {usage: "issue a password reset token", run: cmdForgotPassword},
	"reset-password":   {usage: "set a new password with a reset token", run: cmdResetPassword},
	"users":            {usage: "list users", run: cmdUsers},
	"delete-user":      {usage: "delete a user by id", run: cmdDeleteUser},
	"decode":           {usage: "decode a session token", run: cmdDecode},
	"prune-resets":     {usage: "delete expired password resets", run: cmdPruneResets},
}

type app struct {
	cfg     config
	db      *bun.DB
	repo    identity.RepositoryManager
	svc     *identity.Service
	logger  identity.Logger
	log     *logrus.Logger
	closers []func()
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError()
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return usageError()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	result, err := cmd.run(ctx, a, fs, args[1:])
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, print.MaybePrettyJSON(result))
	return err
}

func usageError() error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: identityctl <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-18s %s\n", name, commands[name].usage)
	}

	return goerrors.New(b.String(), goerrors.CategoryBadInput)
}

func newApp(ctx context.Context, cfg config) (*app, error) {
	log := newLogrus(cfg)
	logger := identity.NewLogrusLogger(log.WithField("component", "identity"))

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	opts := []identity.UsersOption{
		identity.WithHashCost(cfg.BcryptCost),
		identity.WithUsersLogger(logger),
	}
	if cfg.HashidIDs {
		opts = append(opts, identity.WithHashidIDs())
	}

	repo := identity.NewRepositoryManager(db, opts...)
	if err := repo.Validate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		db:     db,
		repo:   repo,
		logger: logger,
		log:    log,
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	notifier, err := a.notifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = identity.NewServiceFromConfig(repo, cfg.Config).
		WithNotifier(notifier).
		WithActivitySink(activityLogger(log)).
		WithLogger(logger)

	return a, nil
}

func (a *app) notifier() (identity.Notifier, error) {
	switch {
	case a.cfg.MailgunDomain != "":
		mailer := notify.NewMailgun(a.cfg.MailgunDomain, a.cfg.MailgunAPIKey, a.cfg.MailgunSender, a.cfg.ClientURL).
			WithAPIBase(a.cfg.MailgunAPIBase)
		if a.cfg.MailTemplates {
			mailer.WithTemplates()
		}
		return mailer, nil
	case a.cfg.AMQPURL != "":
		publisher, err := notify.NewRabbitPublisher(a.cfg.AMQPURL, a.cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
		return notify.NewQueue(publisher, a.cfg.ClientURL), nil
	default:
		return notify.NewLog(a.logger, a.cfg.ClientURL), nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newLogrus(cfg config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

func activityLogger(log *logrus.Logger) identity.ActivitySink {
	return identity.ActivitySinkFunc(func(_ context.Context, e identity.ActivityEvent) error {
		fields := logrus.Fields{
			"event":      string(e.EventType),
			"actor_type": e.Actor.Type,
		}
		if e.UserID != "" {
			fields["user_id"] = e.UserID
		}
		for k, v := range e.Metadata {
			fields["meta_"+k] = v
		}
		log.WithFields(fields).Info("activity")
		return nil
	})
}

func required(fs *flag.FlagSet, names ...string) error {
	missing := make([]string, 0)
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil || f.Value.String() == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		return goerrors.New("missing required flags: "+strings.Join(missing, ", "), goerrors.CategoryBadInput).
			WithTextCode(identity.TextCodeValidation)
	}
	return nil
}

func parse(fs *flag.FlagSet, args []string, names ...string) error {
	if err := fs.Parse(args); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid flags").
			WithTextCode(identity.TextCodeValidation)
	}
	return required(fs, names...)
}

func cmdMigrate(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	applied, err := database.Migrate(ctx, a.db, a.logger)
	if err != nil {
		return nil, err
	}

	return map[string]any{"applied": applied}, nil
}

func cmdRegister(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.RegisterUserMessage
	fs.StringVar(&msg.Username, "username", "", "username")
	fs.StringVar(&msg.Email, "email", "", "email address")
	fs.StringVar(&msg.Password, "password", "", "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.Register(ctx, msg)
}

func cmdInvite(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.InviteUserMessage
	fs.StringVar(&msg.Email, "email", "", "email address to invite")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	inv, err := a.svc.Invite(ctx, msg)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"email":      inv.Email,
		"token":      inv.Token,
		"expire_at":  inv.ExpireAt,
		"created_at": inv.CreatedAt,
	}, nil
}

func cmdRegisterInvited(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.RegisterInvitedMessage
	fs.StringVar(&msg.Token, "token", "", "invitation token")
	fs.StringVar(&msg.Username, "username", "", "username")
	fs.StringVar(&msg.Email, "email", "", "invited email address")
	fs.StringVar(&msg.Password, "password", "", "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.RegisterInvited(ctx, msg)
}

func cmdLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.LoginMessage
	fs.StringVar(&msg.Username, "username", "", "username")
	fs.StringVar(&msg.Password, "password", "", "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.Authenticate(ctx, msg)
}

func cmdLoginGoogle(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.FederatedLoginMessage
	fs.StringVar(&msg.Token, "token", "", "Google ID token")
	if err := parse(fs, args, "token"); err != nil {
		return nil, err
	}

	if a.cfg.GoogleClientID == "" {
		return nil, goerrors.New("IDENTITY_GOOGLE_CLIENT_ID is not set", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation)
	}

	verifier, err := federated.NewGoogleVerifier(ctx)
	if err != nil {
		return nil, err
	}

	return a.svc.WithIdentityVerifier(verifier, a.cfg.GoogleClientID).AuthenticateFederated(ctx, msg)
}

func cmdLoginOIDC(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.FederatedLoginMessage
	var provider, jwksURL, issuer, audience string
	fs.StringVar(&msg.Token, "token", "", "ID token")
	fs.StringVar(&provider, "provider", "oidc", "provider name")
	fs.StringVar(&jwksURL, "jwks-url", "", "JWK set URL")
	fs.StringVar(&issuer, "issuer", "", "accepted issuer")
	fs.StringVar(&audience, "audience", "", "expected audience")
	if err := parse(fs, args, "token", "jwks-url", "audience"); err != nil {
		return nil, err
	}

	var issuers []string
	if issuer != "" {
		issuers = append(issuers, issuer)
	}

	verifier, err := federated.NewJWKSVerifier(provider, jwksURL, issuers...)
	if err != nil {
		return nil, err
	}
	defer verifier.Close()
	verifier.WithLogger(a.logger)

	return a.svc.WithIdentityVerifier(verifier, audience).AuthenticateFederated(ctx, msg)
}

func cmdForgotPassword(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.ForgotPasswordMessage
	fs.StringVar(&msg.Username, "username", "", "username")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.ForgotPassword(ctx, msg)
}

func cmdResetPassword(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var msg identity.ResetPasswordMessage
	fs.StringVar(&msg.Token, "token", "", "password reset token")
	fs.StringVar(&msg.Password, "password", "", "new password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	if err := a.svc.ResetPassword(ctx, msg); err != nil {
		return nil, err
	}

	return map[string]any{"success": true}, nil
}

func cmdUsers(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.ListUsers(ctx)
}

func cmdDeleteUser(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var id string
	fs.StringVar(&id, "id", "", "user id")
	if err := parse(fs, args, "id"); err != nil {
		return nil, err
	}

	deleted, err := a.svc.DeleteUser(ctx, id)
	if err != nil {
		return nil, err
	}

	return map[string]any{"id": id, "deleted": deleted}, nil
}

func cmdDecode(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var token string
	fs.StringVar(&token, "token", "", "session token")
	if err := parse(fs, args, "token"); err != nil {
		return nil, err
	}
	return a.svc.SessionFromToken(token)
}

func cmdPruneResets(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	var olderThan time.Duration
	fs.DurationVar(&olderThan, "older-than", 0, "only prune resets that expired at least this long ago")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	pruned, err := a.svc.Resets().PruneExpired(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return nil, err
	}

	return map[string]any{"pruned": pruned}, nil
}
