package autoreply

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inbox-autoresponder/internal/dedup"
	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"
)

// Dispatcher composes and sends one automated reply at a time and records the
// recipient in the dedup registry once the transmission succeeded.
type Dispatcher struct {
	sender   mailer.Sender
	registry *dedup.Registry
	events   *status.Emitter
	config   models.ReplyConfig

	mu            sync.Mutex
	lastReplied   string
	lastRepliedAt time.Time
}

// NewDispatcher creates a Dispatcher sending through sender and recording into registry
func NewDispatcher(sender mailer.Sender, registry *dedup.Registry, sink status.Sink, cfg models.ReplyConfig) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		registry: registry,
		events:   status.NewEmitter(sink),
		config:   cfg,
	}
}

// SendAutoReply replies to to unless it is already in the registry. inReplyTo is
// the Message-ID being answered and may be empty. It reports whether a reply was
// transmitted; a nil error with sent=false means the sender was already replied to.
func (d *Dispatcher) SendAutoReply(ctx context.Context, creds models.Credentials, to, inReplyTo, traceID string) (bool, error) {
	to = dedup.Normalize(to)
	gen := d.registry.Generation()

	if d.registry.Contains(to) {
		d.events.Emit(status.Event{
			Level:   status.Info,
			Kind:    status.AlreadyReplied,
			Message: fmt.Sprintf("Already replied to %s", to),
			Address: to,
			TraceID: traceID,
		})
		return false, nil
	}

	msg, err := d.compose(creds, to, inReplyTo)
	if err != nil {
		err = fmt.Errorf("%w: rendering reply: %w", models.ErrTransmission, err)
		d.reportFailure(to, traceID, err)
		return false, err
	}

	if err := d.sender.Send(ctx, creds, msg); err != nil {
		d.reportFailure(to, traceID, err)
		return false, err
	}

	// A logout since gen was taken leaves both the registry and the last reply untouched
	d.mu.Lock()
	if d.registry.RecordIn(gen, to) {
		d.lastReplied = to
		d.lastRepliedAt = time.Now()
	}
	d.mu.Unlock()

	d.events.Emit(status.Event{
		Level:   status.Success,
		Kind:    status.ReplySent,
		Message: fmt.Sprintf("Auto-reply sent to %s", to),
		Address: to,
		TraceID: traceID,
	})
	return true, nil
}

// LastReplied returns the most recent recipient and when the reply went out
func (d *Dispatcher) LastReplied() (string, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReplied, d.lastRepliedAt
}

// Reset forgets the last recipient. Called on logout.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.lastReplied = ""
	d.lastRepliedAt = time.Time{}
	d.mu.Unlock()
}

func (d *Dispatcher) compose(creds models.Credentials, to, inReplyTo string) (*mailer.Message, error) {
	phone := creds.Phone
	if phone == "" {
		phone = d.config.DefaultPhone
	}

	text, html, err := renderReply(replyData{Phone: phone, Signature: d.config.Signature})
	if err != nil {
		return nil, err
	}

	return &mailer.Message{
		From:      creds.Address,
		To:        to,
		Subject:   d.config.Subject,
		Text:      text,
		HTML:      html,
		InReplyTo: inReplyTo,
		AutoReply: true,
	}, nil
}

func (d *Dispatcher) reportFailure(to, traceID string, err error) {
	d.events.Emit(status.Event{
		Level:   status.Error,
		Kind:    status.ReplyFailed,
		Message: fmt.Sprintf("ERROR auto-reply to %s (%s)", to, models.Kind(err)),
		Address: to,
		TraceID: traceID,
		Err:     err,
	})
}
