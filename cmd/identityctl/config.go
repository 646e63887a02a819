package main

import (
	"github.com/caarlos0/env/v11"
	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
)

type config struct {
	identity.Config

	DatabaseURL string `env:"DATABASE_URL"      envDefault:"file:identity.db"`
	ClientURL   string `env:"CLIENT_URL"        envDefault:"http://localhost:3000"`
	LogLevel    string `env:"LOG_LEVEL"         envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"        envDefault:"text"`
	HashidIDs   bool   `env:"IDENTITY_HASHID_IDS"`

	MailgunDomain  string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey  string `env:"MAILGUN_API_KEY"`
	MailgunSender  string `env:"MAILGUN_SENDER"`
	MailgunAPIBase string `env:"MAILGUN_API_BASE"`
	MailTemplates  bool   `env:"MAILGUN_TEMPLATES"`

	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_EMAIL_QUEUE" envDefault:"identity.emails"`
}

func loadConfig() (config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment").
			WithTextCode(identity.TextCodeValidation)
	}

	if err := cfg.Config.Validate(); err != nil {
		return config{}, err
	}

	if cfg.MailgunDomain != "" && (cfg.MailgunAPIKey == "" || cfg.MailgunSender == "") {
		return config{}, goerrors.New("MAILGUN_API_KEY and MAILGUN_SENDER are required with MAILGUN_DOMAIN", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation)
	}

	return cfg, nil
}
