package port

import (
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xorproute/xorpcore/internal/fea/fib"
	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/auth"
	"github.com/xorproute/xorpcore/internal/rip/packet"
	"github.com/xorproute/xorpcore/internal/rip/queue"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
	"github.com/xorproute/xorpcore/internal/runtime"
)

func v4(s string) ipaddr.V4 { return ipaddr.NewV4(netip.MustParseAddr(s)) }

// fakeSender records every datagram handed to it and always reports the
// send as immediately complete.
type fakeSender struct{ sent []queue.Datagram }

func (f *fakeSender) Send(d queue.Datagram) (bool, error) {
	f.sent = append(f.sent, d)
	return true, nil
}

func newTestPort(t *testing.T, name string, cfg Config) (*Port, *fakeSender, *routedb.Stack[ipaddr.V4], *runtime.FakeClock, *runtime.Runtime) {
	t.Helper()
	clock := runtime.NewFakeClock(time.Unix(0, 0))
	rt := runtime.New(clock, 64)
	eng := fib.New[ipaddr.V4](nil, nil)
	stack := routedb.NewStack[ipaddr.V4]("v4", eng, func(routedb.Entry[ipaddr.V4]) (string, string) { return "", "" }, zaptest.NewLogger(t))
	sender := &fakeSender{}
	rxSubnet := netip.MustParsePrefix("10.0.0.0/24")
	p := New(rt, zaptest.NewLogger(t), name, cfg, auth.None{}, sender, stack, "224.0.0.9", []ipaddr.V4{v4("10.0.0.1")}, rxSubnet)
	return p, sender, stack, clock, rt
}

func encodeResponse(t *testing.T, entries ...packet.RouteEntryV2) []byte {
	t.Helper()
	pkt := packet.PacketV2{
		Header:  packet.Header{Command: packet.CmdResponse, Version: packet.RIPv2Version},
		Entries: entries,
	}
	return packet.EncodeV2(pkt)
}

func TestLearnAndAdvertiseWithSplitPoisonReverse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cost = 1
	cfg.Horizon = HorizonSplitPoisonReverse
	portA, _, stackA, clock, rt := newTestPort(t, "eth0", cfg)
	portA.Enable()
	portA.IOUp()

	buf := encodeResponse(t, packet.RouteEntryV2{
		AFI: packet.AFIInet, Addr: v4("10.0.0.0"), Mask: 8, Nexthop: ipaddr.V4Zero(), Metric: 3,
	})
	if err := portA.HandleDatagram(v4("10.0.0.2"), RipPort, buf); err != nil {
		t.Fatalf("HandleDatagram: %v", err)
	}

	net := ipaddr.PrefixV4(v4("10.0.0.0"), 8)
	winner, ok := stackA.LookupRoute(net)
	if !ok || winner.Cost != 4 {
		t.Fatalf("expected routedb to hold cost 4, got %+v ok=%v", winner, ok)
	}

	// Drive the unsolicited dump timer and inspect what Port A (which
	// learned the route from its own peer) advertises back out: poisoned.
	clock.Advance(cfg.UnsolicitedMax)
	rt.RunPending()

	if len(portA.sentRouteEntries(t)) == 0 {
		t.Fatal("expected at least one dump packet sent")
	}
	found := false
	for _, e := range portA.sentRouteEntries(t) {
		if e.Addr == v4("10.0.0.0") && e.Mask == 8 {
			found = true
			if e.Metric != 16 {
				t.Fatalf("expected split-poison-reverse to advertise cost 16 back out the learning port, got %d", e.Metric)
			}
		}
	}
	if !found {
		t.Fatal("expected 10.0.0.0/8 in the dump")
	}
}

// sentRouteEntries decodes every datagram the fakeSender captured back
// into route entries, for assertions.
func (p *Port) sentRouteEntries(t *testing.T) []packet.RouteEntryV2 {
	t.Helper()
	fs, ok := p.sender.(*fakeSender)
	if !ok {
		t.Fatal("sender is not a fakeSender")
	}
	var out []packet.RouteEntryV2
	for _, d := range fs.sent {
		pkt, err := packet.DecodeV2(d.Data)
		if err != nil {
			continue
		}
		out = append(out, pkt.Entries...)
	}
	return out
}

func TestSecondPortAdvertisesLearnedRouteUnpoisoned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cost = 1
	cfg.Horizon = HorizonSplitPoisonReverse

	portA, _, stack, clock, rt := newTestPort(t, "eth0", cfg)
	portA.Enable()
	portA.IOUp()

	buf := encodeResponse(t, packet.RouteEntryV2{
		AFI: packet.AFIInet, Addr: v4("10.0.0.0"), Mask: 8, Nexthop: ipaddr.V4Zero(), Metric: 3,
	})
	portA.HandleDatagram(v4("10.0.0.2"), RipPort, buf)

	sender := &fakeSender{}
	portB := New(rt, zaptest.NewLogger(t), "eth1", cfg, auth.None{}, sender, stack, "224.0.0.9", nil, netip.Prefix{})
	portB.Enable()
	portB.IOUp()

	clock.Advance(cfg.UnsolicitedMax)
	rt.RunPending()

	found := false
	for _, d := range sender.sent {
		pkt, err := packet.DecodeV2(d.Data)
		if err != nil {
			continue
		}
		for _, e := range pkt.Entries {
			if e.Addr == v4("10.0.0.0") && e.Mask == 8 {
				found = true
				if e.Metric != 4 {
					t.Fatalf("expected port B to advertise cost 4 unpoisoned, got %d", e.Metric)
				}
			}
		}
	}
	if !found {
		t.Fatal("expected port B's dump to include the route learned via port A")
	}
}

func TestStateTransitionsKillRoutesOnDisable(t *testing.T) {
	cfg := DefaultConfig()
	p, _, stack, _, _ := newTestPort(t, "eth0", cfg)
	p.Enable()
	p.IOUp()
	if p.State() != StateActive {
		t.Fatalf("expected Active after enable+io_up, got %s", p.State())
	}

	buf := encodeResponse(t, packet.RouteEntryV2{
		AFI: packet.AFIInet, Addr: v4("10.0.0.0"), Mask: 8, Nexthop: ipaddr.V4Zero(), Metric: 2,
	})
	p.HandleDatagram(v4("10.0.0.2"), RipPort, buf)

	net := ipaddr.PrefixV4(v4("10.0.0.0"), 8)
	if _, ok := stack.LookupRoute(net); !ok {
		t.Fatal("expected route learned before disable")
	}

	p.Disable()
	if p.State() != StateDisabled {
		t.Fatalf("expected Disabled, got %s", p.State())
	}
	if _, ok := stack.LookupRoute(net); ok {
		t.Fatal("expected route withdrawn from routedb after disable kills peer routes")
	}
}

func TestWholeTableRequestFromPeerTriggersDump(t *testing.T) {
	cfg := DefaultConfig()
	p, sender, _, _, _ := newTestPort(t, "eth0", cfg)
	p.Enable()
	p.IOUp()
	sender.sent = nil // drop the initial request-table datagram

	buf := encodeResponse(t, packet.RouteEntryV2{AFI: packet.AFIInet, Addr: v4("10.0.0.0"), Mask: 8, Nexthop: ipaddr.V4Zero(), Metric: 2})
	p.HandleDatagram(v4("10.0.0.2"), RipPort, buf)
	sender.sent = nil

	reqPkt := packet.PacketV2{
		Header:  packet.Header{Command: packet.CmdRequest, Version: packet.RIPv2Version},
		Entries: []packet.RouteEntryV2{{AFI: 0, Metric: 16}},
	}
	req := packet.EncodeV2(reqPkt)
	if err := p.HandleDatagram(v4("10.0.0.2"), RipPort, req); err != nil {
		t.Fatalf("HandleDatagram request: %v", err)
	}
	if len(sender.sent) == 0 {
		t.Fatal("expected whole-table request to trigger an immediate dump")
	}
}

func TestAuthFailureCountsBadAuthPackets(t *testing.T) {
	cfg := DefaultConfig()
	clock := runtime.NewFakeClock(time.Unix(0, 0))
	rt := runtime.New(clock, 16)
	eng := fib.New[ipaddr.V4](nil, nil)
	stack := routedb.NewStack[ipaddr.V4]("v4", eng, func(routedb.Entry[ipaddr.V4]) (string, string) { return "", "" }, nil)
	sender := &fakeSender{}
	p := New(rt, zaptest.NewLogger(t), "eth0", cfg, auth.Plaintext{Key: "secret"}, sender, stack, "224.0.0.9", nil, netip.Prefix{})
	p.Enable()
	p.IOUp()

	buf := encodeResponse(t, packet.RouteEntryV2{AFI: packet.AFIInet, Addr: v4("10.0.0.0"), Mask: 8, Metric: 2})
	if err := p.HandleDatagram(v4("10.0.0.2"), RipPort, buf); err == nil {
		t.Fatal("expected unauthenticated packet to be rejected by a plaintext-auth port")
	}
	if p.BadAuthPackets != 1 {
		t.Fatalf("expected BadAuthPackets=1, got %d", p.BadAuthPackets)
	}
}
