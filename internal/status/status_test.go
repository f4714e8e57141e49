package status

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestEmitterStampsTime(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec)
	fixed := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	em.Now = func() time.Time { return fixed }

	em.Infof(Checking, "Checking inbox")
	em.Errorf(Failure, errors.New("boom"), "Inbox error")

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if !events[0].Time.Equal(fixed) {
		t.Errorf("Expected stamped time %v, got %v", fixed, events[0].Time)
	}
	if got := events[1].String(); got != "2024-05-01 10:30:00 | Inbox error: boom" {
		t.Errorf("String() = %q", got)
	}
}

func TestNewEmitterNilSink(t *testing.T) {
	em := NewEmitter(nil)
	em.Infof(Checking, "nobody listens")
}

func TestChannelDropsWhenFull(t *testing.T) {
	ch := NewChannel(1)
	ch.Emit(Event{Kind: Checking})
	ch.Emit(Event{Kind: NoNewMessages})

	if ch.Dropped() != 1 {
		t.Errorf("Expected 1 dropped event, got %d", ch.Dropped())
	}

	got := <-ch.Events()
	if got.Kind != Checking {
		t.Errorf("Expected first event to be kept, got %s", got.Kind)
	}
}

func TestMultiAndLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	rec := &Recorder{}
	sink := Multi(rec, LogSink{Log: log})
	sink.Emit(Event{Level: Warn, Kind: Warning, Message: "Could not parse sender", TraceID: "t-1"})

	if rec.Count(Warning) != 1 {
		t.Errorf("Expected recorder to receive the event")
	}
	out := buf.String()
	if !strings.Contains(out, `"trace_id":"t-1"`) || !strings.Contains(out, `"level":"warning"`) {
		t.Errorf("Unexpected log output: %s", out)
	}
}
