package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"inbox-autoresponder/internal/models"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender transmits a composed message using the session credentials
type Sender interface {
	Send(ctx context.Context, creds models.Credentials, msg *Message) error
}

// SMTP reply codes that mean the credentials were rejected
var authFailureCodes = map[int]bool{530: true, 534: true, 535: true}

type StandardSender struct {
	server  string
	timeout time.Duration
	now     func() time.Time
}

// NewStandardSender creates a sender submitting over implicit TLS (port 465) to server.
// Each command and the DATA submission are bounded by timeout (20 seconds when zero).
func NewStandardSender(server string, timeout time.Duration) *StandardSender {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &StandardSender{
		server:  server,
		timeout: timeout,
		now:     time.Now,
	}
}

// Send composes msg and submits it after authenticating with creds.
// Errors wrap models.ErrConnection, models.ErrAuthentication or models.ErrTransmission.
func (s *StandardSender) Send(ctx context.Context, creds models.Credentials, msg *Message) error {
	raw, err := Compose(msg, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrTransmission, err)
	}

	c, err := s.open(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	if err := c.SendMail(msg.From, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return classify(models.ErrTransmission, fmt.Errorf("sending to %s: %w", msg.To, err))
	}

	_ = c.Quit()
	return nil
}

// Verify authenticates against the submission server and disconnects without sending
func (s *StandardSender) Verify(ctx context.Context, creds models.Credentials) error {
	c, err := s.open(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()
	_ = c.Quit()
	return nil
}

func (s *StandardSender) open(ctx context.Context, creds models.Credentials) (*smtp.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConnection, err)
	}

	host, _, err := net.SplitHostPort(s.server)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid SMTP address %q: %w", models.ErrConnection, s.server, err)
	}

	c, err := smtp.DialTLS(s.server, &tls.Config{ServerName: host})
	if err != nil {
		return nil, fmt.Errorf("%w: SMTP dial %s: %w", models.ErrConnection, s.server, err)
	}
	c.CommandTimeout = s.timeout
	c.SubmissionTimeout = s.timeout

	if err := c.Auth(sasl.NewPlainClient("", creds.Address, creds.Secret)); err != nil {
		_ = c.Close()
		return nil, classify(models.ErrAuthentication, fmt.Errorf("SMTP auth as %s: %w", creds.Address, err))
	}

	return c, nil
}

// classify wraps err with kind, promoting rejected-credential replies to models.ErrAuthentication
// and network failures to models.ErrConnection
func classify(kind error, err error) error {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if authFailureCodes[smtpErr.Code] {
			return fmt.Errorf("%w: %w", models.ErrAuthentication, err)
		}
		return fmt.Errorf("%w: %w", kind, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	}

	return fmt.Errorf("%w: %w", kind, err)
}
