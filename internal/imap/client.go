package imap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"inbox-autoresponder/internal/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

var errNotConnected = errors.New("not connected")

type StandardClient struct {
	client  *client.Client
	timeout time.Duration
}

// NewStandardClient creates a new StandardClient. Every dial and command is bounded by timeout (30 seconds when zero).
func NewStandardClient(timeout time.Duration) *StandardClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StandardClient{
		timeout: timeout,
	}
}

// NewFactory returns a Factory producing StandardClients with the given timeout
func NewFactory(timeout time.Duration) Factory {
	return func() Client {
		return NewStandardClient(timeout)
	}
}

// Connect establishes a secure connection to the IMAP server using TLS. Failures are reported as models.ErrConnection.
func (c *StandardClient) Connect(server string) error {
	host, _, err := net.SplitHostPort(server)
	if err != nil {
		return fmt.Errorf("%w: invalid IMAP address %q: %w", models.ErrConnection, server, err)
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	cl, err := client.DialWithDialerTLS(dialer, server, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("%w: IMAP dial %s: %w", models.ErrConnection, server, err)
	}
	cl.Timeout = c.timeout
	c.client = cl
	return nil
}

// Login authenticates the user with the IMAP server. A rejected login is reported as models.ErrAuthentication.
func (c *StandardClient) Login(user, password string) error {
	if c.client == nil {
		return fmt.Errorf("%w: %w", models.ErrConnection, errNotConnected)
	}
	if err := c.client.Login(user, password); err != nil {
		return fmt.Errorf("%w: IMAP login as %s: %w", models.ErrAuthentication, user, err)
	}
	return nil
}

// SelectMailbox selects the specified mailbox (e.g., "INBOX") in read-write mode so seen flags can be stored.
func (c *StandardClient) SelectMailbox(name string) error {
	if c.client == nil {
		return fmt.Errorf("%w: %w", models.ErrConnection, errNotConnected)
	}
	if _, err := c.client.Select(name, false); err != nil {
		return fmt.Errorf("%w: select %s: %w", models.ErrConnection, name, err)
	}
	return nil
}

// ListUnseenUIDs retrieves the UIDs of every message without the \Seen flag, in server order.
func (c *StandardClient) ListUnseenUIDs() ([]uint32, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConnection, errNotConnected)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: error searching for unseen emails: %w", models.ErrConnection, err)
	}

	return uids, nil
}

// FetchMessage retrieves the full message for uid without setting \Seen. Failures are reported as models.ErrFetch.
func (c *StandardClient) FetchMessage(uid uint32) (*imap.Message, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFetch, errNotConnected)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: error fetching message UID %d: %w", models.ErrFetch, uid, err)
	}

	if msg == nil {
		return nil, fmt.Errorf("%w: no message retrieved for UID %d", models.ErrFetch, uid)
	}

	return msg, nil
}

// MarkSeen adds the \Seen flag to the message with the specified UID.
func (c *StandardClient) MarkSeen(uid uint32) error {
	if c.client == nil {
		return fmt.Errorf("%w: %w", models.ErrConnection, errNotConnected)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	return c.client.UidStore(seqSet, item, flags, nil)
}

// Close logs out from the IMAP server and closes the connection. If there is no active connection, it simply returns nil.
func (c *StandardClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	return err
}
