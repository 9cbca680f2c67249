package routedb

import (
	"net/netip"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/xorproute/xorpcore/internal/fea/fib"
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

func v4(s string) ipaddr.V4 { return ipaddr.NewV4(netip.MustParseAddr(s)) }

func net8(s string, l int) ipaddr.Prefix[ipaddr.V4] { return ipaddr.PrefixV4(v4(s), l) }

func newTestStack(t *testing.T) (*Stack[ipaddr.V4], *fib.Engine[ipaddr.V4]) {
	t.Helper()
	eng := fib.New[ipaddr.V4](nil, nil)
	resolveIf := func(Entry[ipaddr.V4]) (string, string) { return "", "" }
	return NewStack[ipaddr.V4]("v4", eng, resolveIf, zaptest.NewLogger(t)), eng
}

func TestMergePicksLowerAdminDistance(t *testing.T) {
	s, _ := newTestStack(t)
	rip := s.Origin("peerA")
	static := s.Origin("static")

	n := net8("10.0.0.0", 8)
	if err := rip.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("10.0.0.2"), Cost: 2, Origin: OriginRIP}, nil); err != nil {
		t.Fatalf("rip add: %v", err)
	}
	if err := static.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("10.0.0.3"), Cost: 1, Origin: OriginStatic}, nil); err != nil {
		t.Fatalf("static add: %v", err)
	}

	winner, ok := s.LookupRoute(n)
	if !ok || winner.Origin != OriginStatic {
		t.Fatalf("expected static route to win on admin distance, got %+v ok=%v", winner, ok)
	}
}

func TestMergeFallsBackWhenWinnerWithdrawn(t *testing.T) {
	s, _ := newTestStack(t)
	rip := s.Origin("peerA")
	static := s.Origin("static")
	n := net8("10.0.0.0", 8)

	rip.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("10.0.0.2"), Cost: 2, Origin: OriginRIP}, nil)
	static.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("10.0.0.3"), Cost: 1, Origin: OriginStatic}, nil)

	static.DeleteRoute(n, nil)

	winner, ok := s.LookupRoute(n)
	if !ok || winner.Origin != OriginRIP {
		t.Fatalf("expected rip route to become winner after static withdrawn, got %+v ok=%v", winner, ok)
	}
}

func TestSinkDrivesFibEngine(t *testing.T) {
	s, eng := newTestStack(t)
	peer := s.Origin("peerA")
	n := net8("192.0.2.0", 24)

	peer.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("192.0.2.2"), Cost: 2, Origin: OriginRIP}, nil)

	fte, ok := eng.LookupByNet(n)
	if !ok {
		t.Fatal("expected route installed into fib engine")
	}
	if fte.AdminDistance != uint32(OriginRIP.AdminDistance()) {
		t.Fatalf("expected admin distance %d, got %d", OriginRIP.AdminDistance(), fte.AdminDistance)
	}

	peer.DeleteRoute(n, nil)
	if _, ok := eng.LookupByNet(n); ok {
		t.Fatal("expected route removed from fib engine after withdrawal")
	}
}

func TestRemoveOriginWithdrawsAllItsRoutes(t *testing.T) {
	s, eng := newTestStack(t)
	peer := s.Origin("peerA")
	n1 := net8("10.0.0.0", 8)
	n2 := net8("172.16.0.0", 12)

	peer.AddRoute(Entry[ipaddr.V4]{Net: n1, Nexthop: v4("10.0.0.2"), Cost: 2, Origin: OriginRIP}, nil)
	peer.AddRoute(Entry[ipaddr.V4]{Net: n2, Nexthop: v4("10.0.0.2"), Cost: 3, Origin: OriginRIP}, nil)

	s.RemoveOrigin("peerA")

	if _, ok := eng.LookupByNet(n1); ok {
		t.Fatal("expected n1 withdrawn after origin removal")
	}
	if _, ok := eng.LookupByNet(n2); ok {
		t.Fatal("expected n2 withdrawn after origin removal")
	}
}

type recordingSink struct{ events []ChurnEvent }

func (r *recordingSink) Publish(ev ChurnEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func TestChurnSinkReceivesAddAndDelete(t *testing.T) {
	s, _ := newTestStack(t)
	rec := &recordingSink{}
	s.AddSink(rec)

	peer := s.Origin("peerA")
	n := net8("10.0.0.0", 8)
	peer.AddRoute(Entry[ipaddr.V4]{Net: n, Nexthop: v4("10.0.0.2"), Cost: 2, Origin: OriginRIP}, nil)
	peer.DeleteRoute(n, nil)

	if len(rec.events) != 2 {
		t.Fatalf("expected 2 churn events, got %d", len(rec.events))
	}
	if rec.events[0].Kind != ChurnAdd || rec.events[1].Kind != ChurnDelete {
		t.Fatalf("expected add then delete, got %+v", rec.events)
	}
}
