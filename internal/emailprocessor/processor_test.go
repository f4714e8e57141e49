package emailprocessor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"inbox-autoresponder/internal/autoreply"
	"inbox-autoresponder/internal/dedup"
	"inbox-autoresponder/internal/imap/imaptest"
	"inbox-autoresponder/internal/mailer"
	"inbox-autoresponder/internal/mailer/mailertest"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"
)

var testCreds = models.Credentials{Address: "me@example.com", Secret: "secret"}

type fixture struct {
	box      *imaptest.Mailbox
	sender   *mailertest.Sender
	registry *dedup.Registry
	events   *status.Recorder
	proc     *Processor
}

func newFixture() *fixture {
	f := &fixture{
		box:      imaptest.NewMailbox(),
		sender:   &mailertest.Sender{},
		registry: dedup.New(),
		events:   &status.Recorder{},
	}
	dispatcher := autoreply.NewDispatcher(f.sender, f.registry, f.events, models.ReplyConfig{
		Subject:      "Auto Reply",
		Signature:    "Desk",
		DefaultPhone: "000-000-0000",
	})
	f.proc = NewProcessor(f.box.Factory(), models.IMAPConfig{Server: "imap.test:993", MailBox: "INBOX"}, dispatcher, f.registry, f.events)
	return f
}

func TestScanOnce_RepliesOncePerSender(t *testing.T) {
	f := newFixture()
	f.box.Deliver("Alice <a@x.com>", "hello")
	f.box.Deliver("b@y.com", "hi")

	// Cycle 1
	res, err := f.proc.ScanOnce(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if res.Replied != 2 {
		t.Errorf("Replied = %d, want 2", res.Replied)
	}
	if f.registry.Len() != 2 || !f.registry.Contains("a@x.com") || !f.registry.Contains("b@y.com") {
		t.Errorf("Registry = %v, want {a@x.com, b@y.com}", f.registry.Snapshot())
	}

	// Cycle 2: a new message from an already answered sender
	uid := f.box.Deliver("A@X.COM", "again")
	res, err = f.proc.ScanOnce(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if res.Already != 1 || res.Replied != 0 {
		t.Errorf("Second cycle result = %+v, want one already replied", res)
	}
	if !f.box.Seen(uid) {
		t.Error("Expected message from known sender to be marked seen")
	}
	if f.sender.SentTo("a@x.com") != 1 {
		t.Errorf("a@x.com received %d replies, want 1", f.sender.SentTo("a@x.com"))
	}
	if f.registry.Len() != 2 {
		t.Errorf("Replies sent counter = %d, want 2", f.registry.Len())
	}
	if f.events.Count(status.AlreadyReplied) != 1 {
		t.Error("Expected an already_replied event")
	}
}

func TestScanOnce_DuplicateSenderInSameCycle(t *testing.T) {
	f := newFixture()
	f.box.Deliver("a@x.com", "one")
	f.box.Deliver("a@x.com", "two")
	f.box.Deliver("a@x.com", "three")

	if _, err := f.proc.ScanOnce(context.Background(), testCreds); err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if f.sender.SentTo("a@x.com") != 1 {
		t.Errorf("Expected exactly one reply, got %d", f.sender.SentTo("a@x.com"))
	}
	if f.box.Unseen() != 0 {
		t.Errorf("Expected every message marked seen, %d unseen", f.box.Unseen())
	}
}

func TestScanOnce_NoNewMessages(t *testing.T) {
	f := newFixture()

	res, err := f.proc.ScanOnce(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if res.Unseen != 0 {
		t.Errorf("Unseen = %d, want 0", res.Unseen)
	}

	stats := f.box.Stats()
	if stats.Stores != 0 {
		t.Errorf("Expected no writes, got %d stores", stats.Stores)
	}
	if stats.Searches != 1 {
		t.Errorf("Expected one search, got %d", stats.Searches)
	}
	if stats.Logouts != 1 {
		t.Error("Expected the session to be logged out")
	}
	if f.sender.Count() != 0 {
		t.Error("Expected no replies")
	}
	if f.proc.LastChecked().IsZero() {
		t.Error("Expected last checked to be updated")
	}
	if f.events.Count(status.NoNewMessages) != 1 || f.events.Count(status.LastChecked) != 1 {
		t.Error("Expected no_new_messages and last_checked events")
	}
}

func TestScanOnce_TransmissionFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture()
	f.sender.FailFor = map[string]error{"a@x.com": fmt.Errorf("%w: 451 try later", models.ErrTransmission)}
	uidA := f.box.Deliver("a@x.com", "1")
	f.box.Deliver("b@y.com", "2")
	f.box.Deliver("c@z.com", "3")

	res, err := f.proc.ScanOnce(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if res.Replied != 2 || res.Failed != 1 {
		t.Errorf("Result = %+v, want 2 replied and 1 failed", res)
	}
	if f.registry.Contains("a@x.com") {
		t.Error("Failed sender must not be recorded")
	}
	if !f.registry.Contains("b@y.com") || !f.registry.Contains("c@z.com") {
		t.Error("Expected later senders to be answered")
	}
	if !f.box.Seen(uidA) {
		t.Error("Expected failed-reply message to be marked seen anyway")
	}

	// A new message from the still unregistered sender triggers a fresh attempt
	f.sender.FailFor = nil
	f.box.Deliver("a@x.com", "4")
	if _, err := f.proc.ScanOnce(context.Background(), testCreds); err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if f.sender.SentTo("a@x.com") != 1 {
		t.Error("Expected a fresh attempt for a new message from the failed sender")
	}
}

func TestScanOnce_FetchAndParseFailures(t *testing.T) {
	f := newFixture()
	bad := f.box.Deliver("a@x.com", "broken")
	f.box.FetchErr[bad] = errors.New("connection reset")
	noSender := f.box.DeliverRaw("From: undisclosed recipients\r\nSubject: ?\r\n\r\nbody\r\n")
	f.box.Deliver("b@y.com", "ok")

	res, err := f.proc.ScanOnce(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if res.Replied != 1 || res.Skipped != 1 || res.Failed != 1 {
		t.Errorf("Result = %+v, want 1 replied, 1 skipped, 1 failed", res)
	}
	if f.box.Seen(bad) {
		t.Error("A message that could not be fetched should stay unseen")
	}
	if !f.box.Seen(noSender) {
		t.Error("A message without a parsable sender should be marked seen")
	}
	if f.events.Count(status.Warning) != 2 {
		t.Errorf("Expected 2 warnings, got %d", f.events.Count(status.Warning))
	}
}

func TestScanOnce_ConnectionAndAuthErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*imaptest.Mailbox)
		wantErr error
	}{
		{
			name:    "Connect failure",
			setup:   func(b *imaptest.Mailbox) { b.ConnectErr = errors.New("dns") },
			wantErr: models.ErrConnection,
		},
		{
			name:    "Login failure",
			setup:   func(b *imaptest.Mailbox) { b.LoginErr = errors.New("invalid credentials") },
			wantErr: models.ErrAuthentication,
		},
		{
			name:    "Search failure",
			setup:   func(b *imaptest.Mailbox) { b.SearchErr = errors.New("bye") },
			wantErr: models.ErrConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f.box)

			_, err := f.proc.ScanOnce(context.Background(), testCreds)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ScanOnce() error = %v, want %v", err, tt.wantErr)
			}
			stats := f.box.Stats()
			if stats.Active != 0 {
				t.Error("Expected the session to be released")
			}
			if !f.proc.LastChecked().IsZero() {
				t.Error("Last checked must not change on a failed cycle")
			}
		})
	}
}

func TestScanOnce_NotAuthenticated(t *testing.T) {
	f := newFixture()
	_, err := f.proc.ScanOnce(context.Background(), models.Credentials{})
	if !errors.Is(err, models.ErrNotAuthenticated) {
		t.Errorf("ScanOnce() error = %v, want ErrNotAuthenticated", err)
	}
	if f.box.Stats().Sessions != 0 {
		t.Error("Expected no session without credentials")
	}
}

func TestScanOnce_CancelMidIteration(t *testing.T) {
	f := newFixture()
	first := f.box.Deliver("a@x.com", "1")
	second := f.box.Deliver("b@y.com", "2")

	ctx, cancel := context.WithCancel(context.Background())
	f.sender.Hook = func(msg *mailer.Message) {
		cancel()
	}

	res, err := f.proc.ScanOnce(ctx, testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if !res.Interrupted {
		t.Error("Expected the cycle to be interrupted")
	}
	if !f.box.Seen(first) {
		t.Error("The in-flight message should complete and be marked seen")
	}
	if f.sender.SentTo("a@x.com") != 1 {
		t.Error("The in-flight reply should be transmitted despite the cancellation")
	}
	if f.box.Seen(second) {
		t.Error("Remaining messages should be left unseen")
	}
	if f.box.Stats().Active != 0 {
		t.Error("Expected the session to be released")
	}
}

func TestScanOnce_CancelledBeforeLogin(t *testing.T) {
	f := newFixture()
	f.box.Deliver("a@x.com", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.proc.ScanOnce(ctx, testCreds)
	if err != nil || !res.Interrupted {
		t.Fatalf("ScanOnce() = %+v, %v; want interrupted", res, err)
	}
	if f.box.Stats().LoginAttempts != 0 {
		t.Error("Expected no login after cancellation")
	}
}

func TestScanOnce_CancelDuringFetch(t *testing.T) {
	f := newFixture()
	f.box.FetchDelay = 100 * time.Millisecond
	first := f.box.Deliver("a@x.com", "1")
	second := f.box.Deliver("b@y.com", "2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := f.proc.ScanOnce(ctx, testCreds)
	if err != nil {
		t.Fatalf("ScanOnce() error: %v", err)
	}
	if !res.Interrupted {
		t.Error("Expected the cycle to be interrupted")
	}

	// A message marked seen must have been answered
	if f.box.Seen(first) && f.sender.SentTo("a@x.com") != 1 {
		t.Error("Message marked seen without a reply")
	}
	if !f.box.Seen(first) && f.sender.SentTo("a@x.com") != 0 {
		t.Error("Message replied to but left unseen")
	}
	if f.box.Seen(second) {
		t.Error("Messages after the cancellation should be left unseen")
	}
	if res.Failed != 0 || f.events.Count(status.ReplyFailed) != 0 {
		t.Errorf("Cancellation must not surface as a failed reply, got %+v", res)
	}
}
