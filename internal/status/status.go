// Package status carries timestamped progress events from the background
// worker to whatever renders them. Sinks must accept calls from any goroutine.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the severity of an event
type Level int

const (
	Info Level = iota
	Success
	Warn
	Error
)

// Kind identifies what happened
type Kind string

const (
	WorkerStarted   Kind = "worker_started"
	WorkerExited    Kind = "worker_exited"
	StopRequested   Kind = "stop_requested"
	Checking        Kind = "checking_inbox"
	NoNewMessages   Kind = "no_new_messages"
	AlreadyReplied  Kind = "already_replied"
	ReplySent       Kind = "reply_sent"
	ReplyFailed     Kind = "reply_failed"
	GreetingSent    Kind = "greeting_sent"
	GreetingFailed  Kind = "greeting_failed"
	LastChecked     Kind = "last_checked"
	LoggedIn        Kind = "logged_in"
	LoggedOut       Kind = "logged_out"
	Warning         Kind = "warning"
	Failure         Kind = "error"
	IntervalChanged Kind = "interval_changed"
)

// Event is a single status notification
type Event struct {
	Time    time.Time
	Level   Level
	Kind    Kind
	Message string
	Address string
	TraceID string
	Err     error
}

// String renders the event as a log line
func (e Event) String() string {
	line := fmt.Sprintf("%s | %s", e.Time.Format("2006-01-02 15:04:05"), e.Message)
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	return line
}

// Sink receives status events
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Emitter stamps and forwards events to a sink
type Emitter struct {
	Sink Sink
	Now  func() time.Time
}

// NewEmitter returns an Emitter writing to sink, or to Discard when sink is nil
func NewEmitter(sink Sink) *Emitter {
	if sink == nil {
		sink = Discard
	}
	return &Emitter{Sink: sink, Now: time.Now}
}

// Emit fills in the timestamp and forwards e
func (em *Emitter) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = em.Now()
	}
	em.Sink.Emit(e)
}

func (em *Emitter) Infof(kind Kind, format string, args ...any) {
	em.Emit(Event{Level: Info, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (em *Emitter) Warnf(kind Kind, format string, args ...any) {
	em.Emit(Event{Level: Warn, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Errorf emits an error event carrying err
func (em *Emitter) Errorf(kind Kind, err error, format string, args ...any) {
	em.Emit(Event{Level: Error, Kind: kind, Message: fmt.Sprintf(format, args...), Err: err})
}

// LogSink mirrors events to a logrus logger
type LogSink struct {
	Log *logrus.Logger
}

func (s LogSink) Emit(e Event) {
	entry := s.Log.WithField("event", string(e.Kind))
	if e.TraceID != "" {
		entry = entry.WithField("trace_id", e.TraceID)
	}
	if e.Address != "" {
		entry = entry.WithField("address", e.Address)
	}
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}

	switch e.Level {
	case Warn:
		entry.Warn(e.Message)
	case Error:
		entry.Error(e.Message)
	default:
		entry.Info(e.Message)
	}
}

// Channel is a buffered sink drained by the foreground. Emit never blocks; when
// the buffer is full the event is dropped and counted.
type Channel struct {
	ch      chan Event
	mu      sync.Mutex
	dropped int
}

// NewChannel creates a Channel sink with the given buffer size
func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan Event, size)}
}

func (c *Channel) Emit(e Event) {
	select {
	case c.ch <- e:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// Events returns the receive side for the rendering goroutine
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded because the buffer was full
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Multi fans an event out to every sink in order
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// Recorder keeps every event in memory. Useful for tests and dashboards.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given kind
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
