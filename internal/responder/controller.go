// Package responder owns the auto-responder session: credentials, the run
// state machine and the single background poll worker.
package responder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"inbox-autoresponder/internal/config"
	"inbox-autoresponder/internal/credentials"
	"inbox-autoresponder/internal/dedup"
	"inbox-autoresponder/internal/emailprocessor"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"
)

// Scanner runs one mailbox scan cycle. Implemented by emailprocessor.Processor.
type Scanner interface {
	ScanOnce(ctx context.Context, creds models.Credentials) (emailprocessor.Result, error)
	LastChecked() time.Time
	ResetLastChecked()
}

// ReplyTracker exposes the last automated reply. Implemented by autoreply.Dispatcher.
type ReplyTracker interface {
	LastReplied() (string, time.Time)
	Reset()
}

// GreetingSender sends a manual greeting. Implemented by autoreply.Greeter.
type GreetingSender interface {
	Send(ctx context.Context, creds models.Credentials, to, recipientName, template string) error
}

// Deps are the collaborators wired into a Controller
type Deps struct {
	Scanner  Scanner
	Replies  ReplyTracker
	Greeter  GreetingSender
	Registry *dedup.Registry
	Sink     status.Sink
	// Confirm asks the user to approve a destructive action. Nil approves everything.
	Confirm func(prompt string) bool
	// OnLoggedOut runs once the worker has exited after a logout, typically to show the login flow again.
	OnLoggedOut func()
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller coordinates the foreground with the poll worker. All exported
// methods are safe for concurrent use and never block on network I/O.
type Controller struct {
	deps   Deps
	cfg    *models.Config
	events *status.Emitter

	interval atomic.Int64
	// unit scales the poll interval; one second outside tests
	unit time.Duration

	mu            sync.Mutex
	creds         models.Credentials
	state         models.RunState
	w             *worker
	session       context.Context
	cancelSession context.CancelFunc
	background    sync.WaitGroup
}

// New creates a Controller. The poll interval starts at cfg.Poll.Interval.
func New(cfg *models.Config, deps Deps) *Controller {
	if deps.Registry == nil {
		deps.Registry = dedup.New()
	}
	c := &Controller{
		deps:   deps,
		cfg:    cfg,
		events: status.NewEmitter(deps.Sink),
		unit:   time.Second,
	}
	c.interval.Store(int64(cfg.Poll.Interval))
	return c
}

// Login validates and stores the session credentials
func (c *Controller) Login(creds models.Credentials) error {
	if creds.IsZero() {
		return fmt.Errorf("%w: address and secret are required", models.ErrInvalidCredentials)
	}
	if !credentials.IsValidEmail(creds.Address) {
		return fmt.Errorf("%w: %q is not a valid email address", models.ErrInvalidCredentials, creds.Address)
	}

	c.mu.Lock()
	if !c.creds.IsZero() {
		c.mu.Unlock()
		return models.ErrAlreadyAuthenticated
	}
	c.creds = creds
	c.session, c.cancelSession = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.events.Emit(status.Event{
		Level:   status.Success,
		Kind:    status.LoggedIn,
		Message: fmt.Sprintf("Logged in as %s", creds.Address),
		Address: creds.Address,
	})
	return nil
}

// Credentials returns a copy of the session credentials and whether they are set
func (c *Controller) Credentials() (models.Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds, !c.creds.IsZero()
}

// Start launches the poll worker. It is a no-op while already running and
// fails with models.ErrStopPending while a previous worker is still exiting.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds.IsZero() {
		return models.ErrNotAuthenticated
	}
	if c.w != nil {
		if c.state == models.Running {
			return nil
		}
		return models.ErrStopPending
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	c.w = w
	c.state = models.Running

	go c.run(ctx, w)
	return nil
}

// RequestStop signals the worker to exit and returns immediately
func (c *Controller) RequestStop() {
	c.mu.Lock()
	if c.w == nil || c.state != models.Running {
		c.mu.Unlock()
		return
	}
	c.w.cancel()
	c.state = models.StopRequested
	c.mu.Unlock()

	c.events.Infof(status.StopRequested, "Stop requested, waiting for worker to exit")
}

// Toggle starts a stopped worker or requests a running one to stop
func (c *Controller) Toggle() error {
	if c.State() == models.Running {
		c.RequestStop()
		return nil
	}
	return c.Start()
}

// Logout asks for confirmation, then stops the worker, clears the credentials
// and the dedup registry. The state reset is visible as soon as Logout returns;
// the returned channel closes once the worker has exited and OnLoggedOut ran.
func (c *Controller) Logout() (<-chan struct{}, error) {
	if c.deps.Confirm != nil && !c.deps.Confirm("Are you sure you want to logout?") {
		return nil, models.ErrLogoutDeclined
	}

	c.mu.Lock()
	w := c.w
	if w != nil {
		w.cancel()
		c.state = models.StopRequested
	} else {
		c.state = models.Stopped
	}
	if c.cancelSession != nil {
		c.cancelSession()
	}
	c.creds = models.Credentials{}
	c.deps.Registry.Clear()
	c.mu.Unlock()

	if c.deps.Replies != nil {
		c.deps.Replies.Reset()
	}
	if c.deps.Scanner != nil {
		c.deps.Scanner.ResetLastChecked()
	}
	c.events.Infof(status.LoggedOut, "Logged out, stopping background worker")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if w != nil {
			<-w.done
		}
		if c.deps.OnLoggedOut != nil {
			c.deps.OnLoggedOut()
		}
	}()
	return done, nil
}

// Join waits up to timeout for the current worker to exit. It reports whether no worker is left running.
func (c *Controller) Join(timeout time.Duration) bool {
	c.mu.Lock()
	w := c.w
	c.mu.Unlock()
	if w == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// Shutdown signals cancellation and joins the worker for at most the configured
// shutdown timeout. A worker that does not exit in time is abandoned.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.w != nil {
		c.w.cancel()
		c.state = models.StopRequested
	}
	if c.cancelSession != nil {
		c.cancelSession()
	}
	c.mu.Unlock()

	timeout := c.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	if !c.Join(timeout) {
		logging.Log.Warnf("Worker did not exit within %s, shutting down anyway", timeout)
	}
}

// SetInterval changes the poll interval. The worker picks it up at its next sleep.
func (c *Controller) SetInterval(seconds int) error {
	if err := config.ValidateInterval(seconds); err != nil {
		return err
	}
	c.interval.Store(int64(seconds))
	c.events.Infof(status.IntervalChanged, "Poll interval set to %ds", seconds)
	return nil
}

// Interval returns the poll interval in seconds
func (c *Controller) Interval() int {
	return int(c.interval.Load())
}

// State returns the current run state
func (c *Controller) State() models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats is a dashboard snapshot
type Stats struct {
	State         models.RunState
	Address       string
	Interval      int
	RepliesSent   int
	LastReplied   string
	LastRepliedAt time.Time
	LastChecked   time.Time
}

// Stats returns a snapshot of the session counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	st := Stats{
		State:    c.state,
		Address:  c.creds.Address,
		Interval: c.Interval(),
	}
	c.mu.Unlock()

	st.RepliesSent = c.deps.Registry.Len()
	if c.deps.Replies != nil {
		st.LastReplied, st.LastRepliedAt = c.deps.Replies.LastReplied()
	}
	if c.deps.Scanner != nil {
		st.LastChecked = c.deps.Scanner.LastChecked()
	}
	return st
}

// CheckNow runs one scan in the background, serialized with the worker by the scanner
func (c *Controller) CheckNow() error {
	ctx, creds, err := c.sessionSnapshot()
	if err != nil {
		return err
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.events.Infof(status.Checking, "Checking inbox (manual)")
		if _, err := c.scan(ctx, creds); err != nil {
			c.reportCycleError(err)
		}
	}()
	return nil
}

// SendGreeting sends a manual greeting on its own goroutine. It does not touch
// the dedup registry or the mailbox session.
func (c *Controller) SendGreeting(to, recipientName, template string) error {
	if c.deps.Greeter == nil {
		return fmt.Errorf("greetings are not configured")
	}
	if !credentials.IsValidEmail(to) {
		return fmt.Errorf("invalid recipient %q", to)
	}
	ctx, creds, err := c.sessionSnapshot()
	if err != nil {
		return err
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		// Failures are reported by the greeter as status events
		_ = c.deps.Greeter.Send(ctx, creds, to, recipientName, template)
	}()
	return nil
}

// WaitBackground blocks until manual checks and greetings have finished
func (c *Controller) WaitBackground() {
	c.background.Wait()
}

func (c *Controller) sessionSnapshot() (context.Context, models.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds.IsZero() {
		return nil, models.Credentials{}, models.ErrNotAuthenticated
	}
	return c.session, c.creds, nil
}

// workerExited clears the handle so a later Start can launch a fresh worker
func (c *Controller) workerExited(w *worker) {
	c.events.Infof(status.WorkerExited, "Worker exited cleanly")

	c.mu.Lock()
	if c.w == w {
		c.w = nil
		c.state = models.Stopped
	}
	c.mu.Unlock()

	close(w.done)
}
