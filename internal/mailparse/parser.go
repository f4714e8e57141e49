package mailparse

import (
	"bufio"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"inbox-autoresponder/internal/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
)

var addressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Parse reads the header block of a fetched message. Only the header is needed to
// decide on a reply, so the body is never decoded. An empty From means no sender
// address could be extracted.
func Parse(msg *imap.Message) (*models.Email, error) {
	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("%w: message UID %d has no body section", models.ErrParse, msg.Uid)
	}

	th, err := textproto.ReadHeader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("%w: reading header of UID %d: %w", models.ErrParse, msg.Uid, err)
	}
	header := mail.Header{Header: message.Header{Header: th}}

	email := &models.Email{
		UID:          msg.Uid,
		InternalDate: msg.InternalDate,
		TraceID:      uuid.New().String(),
	}

	email.FromRaw = header.Get("From")
	email.From = SenderAddress(header)

	if subject, err := header.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = header.Get("Subject")
	}

	if id, err := header.MessageID(); err == nil {
		email.MessageID = id
	}

	return email, nil
}

// SenderAddress returns the bare, lower-cased address of the first From mailbox.
// It falls back to a pattern match when the header is not RFC 5322 compliant.
func SenderAddress(header mail.Header) string {
	if list, err := header.AddressList("From"); err == nil && len(list) > 0 {
		return strings.ToLower(list[0].Address)
	}
	return strings.ToLower(extractEmailAddress(header.Get("From")))
}

// Simple regex to extract email address from "From" header, which may contain name and email
func extractEmailAddress(fromHeader string) string {
	return addressPattern.FindString(fromHeader)
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}
