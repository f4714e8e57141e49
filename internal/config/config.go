package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"inbox-autoresponder/internal/models"

	"gopkg.in/yaml.v2"
)

// Defaults applied to any field left empty in the YAML file.
const (
	DefaultIMAPServer      = "imap.gmail.com:993"
	DefaultMailBox         = "INBOX"
	DefaultIMAPTimeout     = 30 * time.Second
	DefaultSMTPServer      = "smtp.gmail.com:465"
	DefaultSMTPTimeout     = 20 * time.Second
	DefaultPollInterval    = 60
	DefaultBackoffAfter    = 5
	DefaultMaxBackoff      = 30 * time.Minute
	DefaultReplySubject    = "Auto Reply"
	DefaultSignature       = "The Team"
	DefaultPhone           = "000-000-0000"
	DefaultGreetingSubject = "Greetings"
	DefaultShutdownTimeout = time.Second
)

// Default returns a configuration with every default applied
func Default() *models.Config {
	cfg := &models.Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration from the specified YAML file, applies defaults and validates it
func Load(filepath string) (*models.Config, error) {
	configFile, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := yaml.Unmarshal(configFile, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filepath, err)
	}

	return &config, nil
}

// Validate checks the ranges and required fields of cfg
func Validate(cfg *models.Config) error {
	var errs []error

	if err := ValidateInterval(cfg.Poll.Interval); err != nil {
		errs = append(errs, err)
	}
	if cfg.IMAP.Server == "" {
		errs = append(errs, errors.New("imap.server is required"))
	}
	if cfg.SMTP.Server == "" {
		errs = append(errs, errors.New("smtp.server is required"))
	}
	if cfg.IMAP.Timeout <= 0 || cfg.SMTP.Timeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if cfg.Poll.MaxBackoff < 0 {
		errs = append(errs, errors.New("poll.maxBackoff must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateInterval checks that seconds is within the supported poll interval range
func ValidateInterval(seconds int) error {
	if seconds < models.MinPollInterval || seconds > models.MaxPollInterval {
		return fmt.Errorf("%w: %d (must be between %d and %d seconds)",
			models.ErrInvalidInterval, seconds, models.MinPollInterval, models.MaxPollInterval)
	}
	return nil
}

func applyDefaults(cfg *models.Config) {
	setString(&cfg.IMAP.Server, DefaultIMAPServer)
	setString(&cfg.IMAP.MailBox, DefaultMailBox)
	setDuration(&cfg.IMAP.Timeout, DefaultIMAPTimeout)
	setString(&cfg.SMTP.Server, DefaultSMTPServer)
	setDuration(&cfg.SMTP.Timeout, DefaultSMTPTimeout)

	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.BackoffAfter == 0 {
		cfg.Poll.BackoffAfter = DefaultBackoffAfter
	}
	setDuration(&cfg.Poll.MaxBackoff, DefaultMaxBackoff)

	setString(&cfg.Reply.Subject, DefaultReplySubject)
	setString(&cfg.Reply.Signature, DefaultSignature)
	setString(&cfg.Reply.DefaultPhone, DefaultPhone)
	setString(&cfg.Greeting.Subject, DefaultGreetingSubject)

	setString(&cfg.Logging.Level, "info")
	setString(&cfg.Logging.Format, "json")

	setDuration(&cfg.ShutdownTimeout, DefaultShutdownTimeout)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setDuration(field *time.Duration, def time.Duration) {
	if *field == 0 {
		*field = def
	}
}
