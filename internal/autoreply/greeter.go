package autoreply

import (
	"context"
	"fmt"

	"inbox-autoresponder/internal/credentials"
	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"
)

// Greeter sends manual one-off greetings. It never touches the dedup registry.
type Greeter struct {
	sender  mailer.Sender
	events  *status.Emitter
	subject string
}

// NewGreeter creates a Greeter sending through sender with the given subject line
func NewGreeter(sender mailer.Sender, sink status.Sink, subject string) *Greeter {
	return &Greeter{
		sender:  sender,
		events:  status.NewEmitter(sink),
		subject: subject,
	}
}

// Send renders the named template for recipientName and transmits it to to
func (g *Greeter) Send(ctx context.Context, creds models.Credentials, to, recipientName, template string) error {
	if !credentials.IsValidEmail(to) {
		return fmt.Errorf("invalid recipient %q", to)
	}

	text, html := RenderGreeting(LookupGreeting(template), recipientName)
	msg := &mailer.Message{
		From:    creds.Address,
		To:      to,
		Subject: g.subject,
		Text:    text,
		HTML:    html,
	}

	if err := g.sender.Send(ctx, creds, msg); err != nil {
		g.events.Emit(status.Event{
			Level:   status.Error,
			Kind:    status.GreetingFailed,
			Message: fmt.Sprintf("ERROR sending greeting to %s", to),
			Address: to,
			Err:     err,
		})
		return err
	}

	name := recipientName
	if name == "" {
		name = "there"
	}
	g.events.Emit(status.Event{
		Level:   status.Success,
		Kind:    status.GreetingSent,
		Message: fmt.Sprintf("Greeting sent to %s (%s)", to, name),
		Address: to,
	})
	return nil
}
