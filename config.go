package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the settings read by NewServiceFromConfig
type Config struct {
	SigningKey     string        `env:"IDENTITY_SIGNING_KEY"`
	Issuer         string        `env:"IDENTITY_ISSUER"          envDefault:"go-identity"`
	ResetTTL       time.Duration `env:"IDENTITY_RESET_TTL"       envDefault:"1h"`
	InvitationTTL  time.Duration `env:"IDENTITY_INVITATION_TTL"  envDefault:"0s"`
	GoogleClientID string        `env:"IDENTITY_GOOGLE_CLIENT_ID"`
	BcryptCost     int           `env:"IDENTITY_BCRYPT_COST"     envDefault:"12"`
}

// LoadConfigFromEnv parses Config from the process environment
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse identity config").
			WithTextCode(TextCodeValidation)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the settings NewServiceFromConfig depends on
func (c Config) Validate() error {
	if len(c.SigningKey) < 16 {
		return goerrors.New("signing key must be at least 16 bytes", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation)
	}

	if c.ResetTTL <= 0 {
		return goerrors.New("reset ttl must be positive", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation)
	}

	if c.InvitationTTL < 0 {
		return goerrors.New("invitation ttl must not be negative", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation)
	}

	return nil
}
