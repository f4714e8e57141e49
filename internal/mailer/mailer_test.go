package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"inbox-autoresponder/internal/models"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
)

func TestCompose(t *testing.T) {
	msg := &Message{
		From:      "me@example.com",
		To:        "alice@example.com",
		Subject:   "Auto Reply",
		Text:      "Thanks for your message",
		HTML:      "<p>Thanks for your message</p>",
		InReplyTo: "orig@example.com",
		AutoReply: true,
	}

	raw, err := Compose(msg, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("CreateReader() error: %v", err)
	}

	if subject, _ := mr.Header.Subject(); subject != "Auto Reply" {
		t.Errorf("Subject = %q, want Auto Reply", subject)
	}
	if to, _ := mr.Header.AddressList("To"); len(to) != 1 || to[0].Address != "alice@example.com" {
		t.Errorf("To = %v, want alice@example.com", to)
	}
	if got := mr.Header.Get("Auto-Submitted"); got != "auto-replied" {
		t.Errorf("Auto-Submitted = %q", got)
	}
	if ids, _ := mr.Header.MsgIDList("In-Reply-To"); len(ids) != 1 || ids[0] != "orig@example.com" {
		t.Errorf("In-Reply-To = %v", ids)
	}

	bodies := map[string]string{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("NextPart() error: %v", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			t.Fatalf("Unexpected part header %T", p.Header)
		}
		contentType, _, _ := h.ContentType()
		body, _ := io.ReadAll(p.Body)
		bodies[contentType] = string(body)
	}

	if bodies["text/plain"] != msg.Text {
		t.Errorf("text/plain = %q, want %q", bodies["text/plain"], msg.Text)
	}
	if bodies["text/html"] != msg.HTML {
		t.Errorf("text/html = %q, want %q", bodies["text/html"], msg.HTML)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		kind error
		err  error
		want error
	}{
		{
			name: "Rejected credentials",
			kind: models.ErrTransmission,
			err:  &smtp.SMTPError{Code: 535, Message: "bad credentials"},
			want: models.ErrAuthentication,
		},
		{
			name: "Mailbox unavailable",
			kind: models.ErrTransmission,
			err:  &smtp.SMTPError{Code: 550, Message: "no such user"},
			want: models.ErrTransmission,
		},
		{
			name: "Plain error keeps kind",
			kind: models.ErrAuthentication,
			err:  errors.New("unsupported mechanism"),
			want: models.ErrAuthentication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.kind, tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classify() dropped the cause: %v", got)
			}
		})
	}
}

func TestSend_CancelledContext(t *testing.T) {
	s := NewStandardSender("smtp.example.com:465", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, models.Credentials{Address: "me@example.com", Secret: "x"}, &Message{From: "me@example.com", To: "a@x.com"})
	if !errors.Is(err, models.ErrConnection) {
		t.Errorf("Send() error = %v, want ErrConnection", err)
	}
}
