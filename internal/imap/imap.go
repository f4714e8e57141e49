package imap

import (
	"github.com/emersion/go-imap"
)

// Client is the mailbox session used by one scan cycle
type Client interface {
	Connect(server string) error
	Login(user, password string) error
	SelectMailbox(name string) error
	ListUnseenUIDs() ([]uint32, error)
	FetchMessage(uid uint32) (*imap.Message, error)
	MarkSeen(uid uint32) error
	Close() error
}

// Factory creates a fresh, unconnected Client for each scan cycle
type Factory func() Client
