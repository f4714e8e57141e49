// Package mailertest provides a recording mailer.Sender for tests.
package mailertest

import (
	"context"
	"fmt"
	"sync"

	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/models"
)

// Sender records every message and fails for the recipients listed in FailFor.
// Like the SMTP sender it refuses to start once ctx is done.
type Sender struct {
	mu   sync.Mutex
	Sent []*mailer.Message
	// FailFor maps a recipient to the error returned when sending to it
	FailFor map[string]error
	// Hook runs before each send, outside the lock
	Hook func(msg *mailer.Message)
}

func (s *Sender) Send(ctx context.Context, creds models.Credentials, msg *mailer.Message) error {
	if s.Hook != nil {
		s.Hook(msg)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailFor[msg.To]; ok {
		return err
	}
	s.Sent = append(s.Sent, msg)
	return nil
}

// SentTo returns how many messages were delivered to addr
func (s *Sender) SentTo(addr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.Sent {
		if m.To == addr {
			n++
		}
	}
	return n
}

// Count returns the total number of delivered messages
func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}
