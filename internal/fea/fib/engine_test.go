package fib

import (
	"net/netip"
	"testing"

	"github.com/xorproute/xorpcore/internal/iftree"
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

func v4(s string) ipaddr.V4 { return ipaddr.NewV4(netip.MustParseAddr(s)) }

func prefix(s string, l int) ipaddr.Prefix[ipaddr.V4] { return ipaddr.PrefixV4(v4(s), l) }

func TestAddEntry_SkipsConnectedRoutes(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	fte := Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), IsConnected: true}
	if err := e.AddEntry(fte); err != nil {
		t.Fatalf("expected connected route to be silently skipped, got error: %v", err)
	}
	if _, ok := e.LookupByNet(fte.Net); ok {
		t.Fatal("expected connected route to not be installed")
	}
}

func TestAddEntry_RefusesMulticastPrefix(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	fte := Fte[ipaddr.V4]{Net: prefix("224.0.0.0", 24)}
	if err := e.AddEntry(fte); err == nil {
		t.Fatal("expected multicast prefix to be refused")
	}
}

func TestAddEntry_RefusesBroadcastPrefix(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	fte := Fte[ipaddr.V4]{Net: prefix("255.255.255.255", 32)}
	if err := e.AddEntry(fte); err == nil {
		t.Fatal("expected broadcast prefix to be refused")
	}
}

func TestAddEntry_RejectsUnresolvedInterface(t *testing.T) {
	tr := iftree.New()
	e := New[ipaddr.V4](tr, nil)
	fte := Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), IfName: "eth9"}
	if err := e.AddEntry(fte); err == nil {
		t.Fatal("expected add to fail for an ifname with no live interface")
	}
}

func TestAddEntry_DiscardRouteClearsInterface(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	fte := Fte[ipaddr.V4]{Net: prefix("0.0.0.0", 0), IsDiscard: true, IfName: "blackhole0"}
	if err := e.AddEntry(fte); err != nil {
		t.Fatalf("expected discard route to install, got error: %v", err)
	}
	got, ok := e.LookupByNet(fte.Net)
	if !ok {
		t.Fatal("expected discard route to be installed")
	}
	if got.IfName != "" {
		t.Fatalf("expected discard route ifname cleared, got %q", got.IfName)
	}
}

func TestDeleteEntry_AbsentPrefixIsIdempotent(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	if err := e.DeleteEntry(prefix("10.0.0.0", 24)); err != nil {
		t.Fatalf("expected deleting an absent prefix to succeed, got error: %v", err)
	}
}

func TestAddEntry_SecondAddToSameKeyIsChanged(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	net := prefix("10.0.0.0", 24)
	var events []EventKind
	e.Observe(func(ev Event[ipaddr.V4]) { events = append(events, ev.Kind) })

	e.AddEntry(Fte[ipaddr.V4]{Net: net, Nexthop: v4("10.0.0.1"), Metric: 1})
	e.AddEntry(Fte[ipaddr.V4]{Net: net, Nexthop: v4("10.0.0.2"), Metric: 2})

	if len(events) != 2 || events[0] != EventAdded || events[1] != EventChanged {
		t.Fatalf("expected [Added Changed], got %v", events)
	}
}

func TestLookupByDest_LongestPrefixMatch(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 8), Nexthop: v4("10.0.0.1")})
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), Nexthop: v4("10.0.0.2")})

	got, ok := e.LookupByDest(v4("10.0.0.5"))
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Net.Len != 24 {
		t.Fatalf("expected the /24 to win longest-prefix-match, got /%d", got.Net.Len)
	}
}

func TestSetTable_ReplacesXorpOwnedEntries(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), Nexthop: v4("10.0.0.1")})
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.1.0", 24), Nexthop: v4("10.0.0.1")})

	want := []Fte[ipaddr.V4]{
		{Net: prefix("10.0.1.0", 24), Nexthop: v4("10.0.0.1")},
		{Net: prefix("10.0.2.0", 24), Nexthop: v4("10.0.0.1")},
	}
	if err := e.SetTable(want); err != nil {
		t.Fatalf("SetTable returned error: %v", err)
	}

	if _, ok := e.LookupByNet(prefix("10.0.0.0", 24)); ok {
		t.Fatal("expected 10.0.0.0/24 to be removed by SetTable")
	}
	if _, ok := e.LookupByNet(prefix("10.0.1.0", 24)); !ok {
		t.Fatal("expected 10.0.1.0/24 to remain")
	}
	if _, ok := e.LookupByNet(prefix("10.0.2.0", 24)); !ok {
		t.Fatal("expected 10.0.2.0/24 to be added")
	}
}

func TestTransaction_NotificationsDeferredUntilCommit(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	var events int
	e.Observe(func(Event[ipaddr.V4]) { events++ })

	e.StartTransaction()
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), Nexthop: v4("10.0.0.1")})
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.1.0", 24), Nexthop: v4("10.0.0.1")})
	if events != 0 {
		t.Fatalf("expected no notifications before Commit, got %d", events)
	}
	e.Commit()
	if events != 2 {
		t.Fatalf("expected 2 notifications after Commit, got %d", events)
	}
}

func TestTransaction_AbortDropsNotificationsButKeepsMutations(t *testing.T) {
	e := New[ipaddr.V4](nil, nil)
	var events int
	e.Observe(func(Event[ipaddr.V4]) { events++ })

	e.StartTransaction()
	e.AddEntry(Fte[ipaddr.V4]{Net: prefix("10.0.0.0", 24), Nexthop: v4("10.0.0.1")})
	e.Abort()

	if events != 0 {
		t.Fatalf("expected Abort to suppress notifications, got %d", events)
	}
	if _, ok := e.LookupByNet(prefix("10.0.0.0", 24)); !ok {
		t.Fatal("expected Abort to leave the already-applied mutation installed")
	}
}
