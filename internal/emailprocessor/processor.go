package emailprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inbox-autoresponder/internal/dedup"
	imapclient "inbox-autoresponder/internal/imap"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/mailparse"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Replier sends a single automated reply. Implemented by autoreply.Dispatcher.
type Replier interface {
	SendAutoReply(ctx context.Context, creds models.Credentials, to, inReplyTo, traceID string) (bool, error)
}

// Outcome is what happened to one unseen message
type Outcome int

const (
	OutcomeReplied Outcome = iota
	OutcomeAlreadyReplied
	OutcomeSkipped
	OutcomeReplyFailed
	OutcomeFetchFailed
)

// Result summarizes one scan cycle
type Result struct {
	CycleID     string
	Unseen      int
	Replied     int
	Already     int
	Skipped     int
	Failed      int
	Interrupted bool
}

func (r *Result) add(o Outcome) {
	switch o {
	case OutcomeReplied:
		r.Replied++
	case OutcomeAlreadyReplied:
		r.Already++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Processor runs scan cycles against one mailbox. All mailbox access is
// serialized: at most one scan holds a session at any time.
type Processor struct {
	newClient imapclient.Factory
	server    string
	mailbox   string
	replier   Replier
	registry  *dedup.Registry
	events    *status.Emitter

	scanMu sync.Mutex

	mu          sync.Mutex
	lastChecked time.Time
}

// NewProcessor creates a new Processor for the given IMAP server and mailbox
func NewProcessor(newClient imapclient.Factory, cfg models.IMAPConfig, replier Replier, registry *dedup.Registry, sink status.Sink) *Processor {
	return &Processor{
		newClient: newClient,
		server:    cfg.Server,
		mailbox:   cfg.MailBox,
		replier:   replier,
		registry:  registry,
		events:    status.NewEmitter(sink),
	}
}

// ScanOnce opens a mailbox session, answers every unseen message from a new
// sender and marks each examined message as seen. The session is always logged
// out before returning. Connection, login and search failures end the cycle and
// are returned; per-message failures are reported as events and never abort it.
// Cancelling ctx stops the cycle between messages.
func (p *Processor) ScanOnce(ctx context.Context, creds models.Credentials) (Result, error) {
	p.scanMu.Lock()
	defer p.scanMu.Unlock()

	res := Result{CycleID: uuid.New().String()}
	locallog := logging.Log.WithField("cycle_id", res.CycleID)

	if creds.IsZero() {
		return res, models.ErrNotAuthenticated
	}

	client := p.newClient()

	// Connect
	if err := client.Connect(p.server); err != nil {
		return res, err
	}
	defer func(client imapclient.Client) {
		if err := client.Close(); err != nil {
			locallog.WithError(err).Debug("IMAP logout error")
		}
	}(client)

	// Credentials may have been cleared while dialing
	if ctx.Err() != nil {
		res.Interrupted = true
		return res, nil
	}

	// Login
	if err := client.Login(creds.Address, creds.Secret); err != nil {
		return res, err
	}

	// Select mailbox
	if err := client.SelectMailbox(p.mailbox); err != nil {
		return res, err
	}

	uids, err := client.ListUnseenUIDs()
	if err != nil {
		return res, err
	}
	res.Unseen = len(uids)

	if len(uids) == 0 {
		p.events.Infof(status.NoNewMessages, "No new messages")
		p.markChecked(ctx)
		return res, nil
	}

	locallog.Debugf("Found %d unseen messages", len(uids))

	for _, uid := range uids {
		if ctx.Err() != nil {
			res.Interrupted = true
			locallog.Info("Cancellation requested, leaving remaining messages unseen")
			break
		}
		res.add(p.ProcessEmail(ctx, client, creds, uid))
	}

	if !res.Interrupted {
		p.markChecked(ctx)
	}
	return res, nil
}

// ProcessEmail handles a single unseen message: fetch → parse sender → reply if new → mark as seen.
// A message that could not be fetched stays unseen; every other message is marked seen
// whatever the reply outcome.
func (p *Processor) ProcessEmail(ctx context.Context, client imapclient.Client, creds models.Credentials, uid uint32) Outcome {
	// Fetch message from IMAP
	msg, err := client.FetchMessage(uid)
	if err != nil {
		p.events.Emit(status.Event{
			Level:   status.Warn,
			Kind:    status.Warning,
			Message: fmt.Sprintf("Failed to fetch UID %d", uid),
			Err:     err,
		})
		return OutcomeFetchFailed
	}

	email, err := mailparse.Parse(msg)
	if err != nil {
		p.events.Emit(status.Event{
			Level:   status.Warn,
			Kind:    status.Warning,
			Message: fmt.Sprintf("Could not parse message UID %d", uid),
			Err:     err,
		})
		p.markSeen(client, uid, logging.Log.WithField("trace_id", "unknown"))
		return OutcomeSkipped
	}

	locallog := logging.Log.WithField("trace_id", email.TraceID)

	outcome := p.dispatch(ctx, creds, email)

	p.markSeen(client, uid, locallog)
	return outcome
}

func (p *Processor) dispatch(ctx context.Context, creds models.Credentials, email *models.Email) Outcome {
	if email.From == "" {
		raw := email.FromRaw
		if decoded, err := mailparse.DecodeHeader(raw); err == nil {
			raw = decoded
		}
		p.events.Emit(status.Event{
			Level:   status.Warn,
			Kind:    status.Warning,
			Message: fmt.Sprintf("Could not parse sender from: %q", raw),
			TraceID: email.TraceID,
			Err:     models.ErrParse,
		})
		return OutcomeSkipped
	}

	if p.registry.Contains(email.From) {
		p.events.Emit(status.Event{
			Level:   status.Info,
			Kind:    status.AlreadyReplied,
			Message: fmt.Sprintf("Already replied to %s", email.From),
			Address: email.From,
			TraceID: email.TraceID,
		})
		return OutcomeAlreadyReplied
	}

	// Synchronous, so at most one reply is outstanding. Cancellation is only
	// honoured between messages: a message about to be marked seen gets its
	// reply attempt, bounded by the SMTP timeouts.
	sent, err := p.replier.SendAutoReply(context.WithoutCancel(ctx), creds, email.From, email.MessageID, email.TraceID)
	switch {
	case err != nil:
		return OutcomeReplyFailed
	case !sent:
		return OutcomeAlreadyReplied
	default:
		return OutcomeReplied
	}
}

func (p *Processor) markSeen(client imapclient.Client, uid uint32, locallog *logrus.Entry) {
	if err := client.MarkSeen(uid); err != nil {
		locallog.Errorf("Error marking message UID %d as seen: %v", uid, err)
		p.events.Emit(status.Event{
			Level:   status.Warn,
			Kind:    status.Warning,
			Message: fmt.Sprintf("Could not mark UID %d as seen", uid),
			Err:     err,
		})
	}
}

// LastChecked returns when the last cycle completed, or the zero time
func (p *Processor) LastChecked() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastChecked
}

// ResetLastChecked clears the last checked timestamp. Called on logout.
func (p *Processor) ResetLastChecked() {
	p.mu.Lock()
	p.lastChecked = time.Time{}
	p.mu.Unlock()
}

// markChecked records a completed cycle unless ctx was cancelled, so a scan
// finishing after logout cannot restore the timestamp ResetLastChecked cleared
func (p *Processor) markChecked(ctx context.Context) {
	now := time.Now()
	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.lastChecked = now
	p.mu.Unlock()

	p.events.Emit(status.Event{
		Time:    now,
		Level:   status.Info,
		Kind:    status.LastChecked,
		Message: fmt.Sprintf("Last check: %s", now.Format("15:04:05")),
	})
}
