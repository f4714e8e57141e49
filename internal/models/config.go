package models

import "time"

// Config represents the application configuration
type Config struct {
	IMAP            IMAPConfig     `yaml:"imap"`
	SMTP            SMTPConfig     `yaml:"smtp"`
	Poll            PollConfig     `yaml:"poll"`
	Reply           ReplyConfig    `yaml:"reply"`
	Greeting        GreetingConfig `yaml:"greeting"`
	Logging         LoggingConfig  `yaml:"logging"`
	ShutdownTimeout time.Duration  `yaml:"shutdownTimeout"`
}

// IMAPConfig represents the mailbox polling server
type IMAPConfig struct {
	Server  string        `yaml:"server"`
	MailBox string        `yaml:"mailbox"`
	Timeout time.Duration `yaml:"timeout"`
}

// SMTPConfig represents the submission server used for replies
type SMTPConfig struct {
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollConfig controls the poll worker timing. Interval is in seconds.
type PollConfig struct {
	Interval     int           `yaml:"interval"`
	BackoffAfter int           `yaml:"backoffAfter"`
	MaxBackoff   time.Duration `yaml:"maxBackoff"`
}

// ReplyConfig holds the automated reply content settings
type ReplyConfig struct {
	Subject      string `yaml:"subject"`
	Signature    string `yaml:"signature"`
	DefaultPhone string `yaml:"defaultPhone"`
}

// GreetingConfig holds the manual greeting settings
type GreetingConfig struct {
	Subject string `yaml:"subject"`
}

// LoggingConfig selects the logger level and output format
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Poll interval bounds, in seconds.
const (
	MinPollInterval = 5
	MaxPollInterval = 600
)
