package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inbox-autoresponder/internal/emailprocessor"
	"inbox-autoresponder/internal/models"
	"inbox-autoresponder/internal/status"
)

// maxBackoffSteps caps the exponent of the connection failure backoff
const maxBackoffSteps = 10

// run is the poll worker loop: scan, then sleep, until ctx is cancelled
func (c *Controller) run(ctx context.Context, w *worker) {
	defer c.workerExited(w)

	c.events.Infof(status.WorkerStarted, "Worker started")

	failures := 0
	for ctx.Err() == nil {
		creds, ok := c.Credentials()
		if !ok {
			break
		}

		c.events.Infof(status.Checking, "Checking inbox")
		_, err := c.scan(ctx, creds)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, models.ErrConnection):
			failures++
			c.reportCycleError(err)
		default:
			failures = 0
			c.reportCycleError(err)
		}

		if !sleep(ctx, c.nextSleep(failures)) {
			break
		}
	}
}

// scan runs one cycle and turns a panic into an error so the loop survives it
func (c *Controller) scan(ctx context.Context, creds models.Credentials) (res emailprocessor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan cycle panicked: %v", r)
		}
	}()
	return c.deps.Scanner.ScanOnce(ctx, creds)
}

func (c *Controller) reportCycleError(err error) {
	c.events.Emit(status.Event{
		Level:   status.Error,
		Kind:    status.Failure,
		Message: fmt.Sprintf("Inbox error (%s)", models.Kind(err)),
		Err:     err,
	})
}

// nextSleep reads the interval once for this sleep. After BackoffAfter consecutive
// connection failures the wait doubles per extra failure, capped at MaxBackoff.
func (c *Controller) nextSleep(failures int) time.Duration {
	base := time.Duration(c.Interval()) * c.unit
	after := c.cfg.Poll.BackoffAfter
	if after <= 0 || failures < after {
		return base
	}

	n := failures - after + 1
	if n > maxBackoffSteps {
		n = maxBackoffSteps
	}
	backoff := base * time.Duration(1<<n)
	if limit := c.cfg.Poll.MaxBackoff; limit > 0 && backoff > limit {
		backoff = limit
	}
	if backoff < base {
		backoff = base
	}

	c.events.Warnf(status.Warning, "IMAP failed %d times, waiting %s before next attempt", failures, backoff)
	return backoff
}

// sleep waits for d or until ctx is cancelled. It reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
