// Package imaptest provides an in-memory mailbox implementing imap.Client for tests.
package imaptest

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	imapclient "inbox-autoresponder/internal/imap"
	"inbox-autoresponder/internal/models"

	"github.com/emersion/go-imap"
)

// Mailbox is a fake server-side mailbox shared by every client it creates
type Mailbox struct {
	mu       sync.Mutex
	nextUID  uint32
	messages map[uint32]*stored

	// Failure injection
	ConnectErr error
	LoginErr   error
	SearchErr  error
	FetchErr   map[uint32]error
	// FetchDelay is slept inside FetchMessage to widen race windows
	FetchDelay time.Duration

	active        int
	maxActive     int
	sessions      int
	logouts       int
	searches      int
	stores        int
	loginAttempts int
}

type stored struct {
	raw  string
	seen bool
}

// NewMailbox returns an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{
		nextUID:  1,
		messages: make(map[uint32]*stored),
		FetchErr: make(map[uint32]error),
	}
}

// Deliver appends an unseen message from the given sender and returns its UID
func (m *Mailbox) Deliver(from, subject string) uint32 {
	raw := fmt.Sprintf("From: %s\r\nSubject: %s\r\nMessage-ID: <%d.%s>\r\n\r\nbody\r\n", from, subject, m.peekUID(), "test@local")
	return m.DeliverRaw(raw)
}

// DeliverRaw appends an unseen raw RFC 5322 message and returns its UID
func (m *Mailbox) DeliverRaw(raw string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := m.nextUID
	m.nextUID++
	m.messages[uid] = &stored{raw: raw}
	return uid
}

func (m *Mailbox) peekUID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextUID
}

// Seen reports whether uid carries the \Seen flag
func (m *Mailbox) Seen(uid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.messages[uid]
	return ok && s.seen
}

// Unseen returns how many messages are not yet seen
func (m *Mailbox) Unseen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.messages {
		if !s.seen {
			n++
		}
	}
	return n
}

// Stats is a snapshot of session counters
type Stats struct {
	Sessions      int
	Logouts       int
	Active        int
	MaxActive     int
	Searches      int
	Stores        int
	LoginAttempts int
}

// Stats returns the session counters
func (m *Mailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Sessions:      m.sessions,
		Logouts:       m.logouts,
		Active:        m.active,
		MaxActive:     m.maxActive,
		Searches:      m.searches,
		Stores:        m.stores,
		LoginAttempts: m.loginAttempts,
	}
}

// Factory returns an imap.Factory producing clients bound to m
func (m *Mailbox) Factory() imapclient.Factory {
	return func() imapclient.Client {
		return &Client{box: m}
	}
}

// Client is a fake session against a Mailbox
type Client struct {
	box       *Mailbox
	connected bool
}

var errNotConnected = errors.New("not connected")

func (c *Client) Connect(server string) error {
	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if c.box.ConnectErr != nil {
		return fmt.Errorf("%w: %w", models.ErrConnection, c.box.ConnectErr)
	}
	c.connected = true
	c.box.sessions++
	c.box.active++
	if c.box.active > c.box.maxActive {
		c.box.maxActive = c.box.active
	}
	return nil
}

func (c *Client) Login(user, password string) error {
	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if !c.connected {
		return errNotConnected
	}
	c.box.loginAttempts++
	if c.box.LoginErr != nil {
		return fmt.Errorf("%w: %w", models.ErrAuthentication, c.box.LoginErr)
	}
	return nil
}

func (c *Client) SelectMailbox(name string) error {
	if !c.connected {
		return errNotConnected
	}
	return nil
}

func (c *Client) ListUnseenUIDs() ([]uint32, error) {
	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if !c.connected {
		return nil, errNotConnected
	}
	c.box.searches++
	if c.box.SearchErr != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConnection, c.box.SearchErr)
	}

	var uids []uint32
	for uid, s := range c.box.messages {
		if !s.seen {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (c *Client) FetchMessage(uid uint32) (*imap.Message, error) {
	c.box.mu.Lock()
	delay := c.box.FetchDelay
	c.box.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if !c.connected {
		return nil, errNotConnected
	}
	if err := c.box.FetchErr[uid]; err != nil {
		return nil, fmt.Errorf("%w: UID %d: %w", models.ErrFetch, uid, err)
	}
	s, ok := c.box.messages[uid]
	if !ok {
		return nil, fmt.Errorf("%w: no message retrieved for UID %d", models.ErrFetch, uid)
	}

	return &imap.Message{
		Uid: uid,
		Body: map[*imap.BodySectionName]imap.Literal{
			{}: bytes.NewBufferString(s.raw),
		},
	}, nil
}

func (c *Client) MarkSeen(uid uint32) error {
	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if !c.connected {
		return errNotConnected
	}
	c.box.stores++
	if s, ok := c.box.messages[uid]; ok {
		s.seen = true
	}
	return nil
}

func (c *Client) Close() error {
	c.box.mu.Lock()
	defer c.box.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	c.box.active--
	c.box.logouts++
	return nil
}
