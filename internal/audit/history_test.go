package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/rip/routedb"
)

func noopLogger() *zap.Logger { return zap.NewNop() }

func sampleEvent() routedb.ChurnEvent {
	return routedb.ChurnEvent{
		Kind:     routedb.ChurnAdd,
		Family:   "v4",
		Net:      "10.0.0.0/24",
		Nexthop:  "10.0.1.1",
		Cost:     2,
		Tag:      0,
		Origin:   "rip",
		Source:   "eth0",
	}
}

func TestEventID_Deterministic(t *testing.T) {
	ev := sampleEvent()
	h1 := eventID(ev)
	h2 := eventID(ev)

	if len(h1) != 32 {
		t.Fatalf("expected 32-byte sha256 digest, got %d", len(h1))
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Fatal("eventID is not deterministic for identical events")
		}
	}
}

func TestEventID_DiffersOnCost(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.Cost = 3

	if string(eventID(a)) == string(eventID(b)) {
		t.Fatal("expected eventID to differ when cost differs")
	}
}

func TestEventID_DiffersOnKind(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.Kind = routedb.ChurnDelete

	if string(eventID(a)) == string(eventID(b)) {
		t.Fatal("expected eventID to differ when kind differs")
	}
}

func TestEventID_DiffersOnNet(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.Net = "10.0.2.0/24"

	if string(eventID(a)) == string(eventID(b)) {
		t.Fatal("expected eventID to differ when net differs")
	}
}

func TestPublish_BuffersWithoutFlushing(t *testing.T) {
	h := NewRouteHistory(nil, noopLogger(), 10, false)
	if err := h.Publish(sampleEvent()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(h.pending) != 1 {
		t.Fatalf("expected 1 buffered row below batch size, got %d", len(h.pending))
	}
}

func TestFlush_NoopWhenEmpty(t *testing.T) {
	h := NewRouteHistory(nil, noopLogger(), 10, false)
	if err := h.Flush(context.Background()); err != nil {
		t.Fatalf("Flush on empty buffer returned error: %v", err)
	}
}
