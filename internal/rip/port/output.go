package port

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
	"github.com/xorproute/xorpcore/internal/rip/peer"
	"github.com/xorproute/xorpcore/internal/rip/queue"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
)

// jitter picks a uniformly random duration in [min, max), falling back to
// min if the window is empty.
func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

func (p *Port) startOutputTimers() {
	if !p.cfg.Advertise {
		return
	}
	p.armUnsolicited()
	p.armTriggered()
}

func (p *Port) stopOutputTimers() {
	if p.unsolicitedTimer != nil {
		p.unsolicitedTimer.Stop()
		p.unsolicitedTimer = nil
	}
	if p.triggeredTimer != nil {
		p.triggeredTimer.Stop()
		p.triggeredTimer = nil
	}
}

func (p *Port) armUnsolicited() {
	d := jitter(p.cfg.UnsolicitedMin, p.cfg.UnsolicitedMax)
	p.unsolicitedTimer = p.rt.AfterFunc(d, p.onUnsolicitedFire)
}

func (p *Port) armTriggered() {
	d := jitter(p.cfg.TriggeredMin, p.cfg.TriggeredMax)
	p.triggeredTimer = p.rt.AfterFunc(d, p.onTriggeredFire)
}

// onUnsolicitedFire fast-forwards any pending triggered update, then
// starts a new full-table dump (spec §4.9 "UnsolicitedResponse timer").
func (p *Port) onUnsolicitedFire() {
	if p.state != StateActive {
		return
	}
	for _, pr := range p.peers {
		pr.ClearTriggered()
	}
	p.dumpFull()
	p.armUnsolicited()
}

// onTriggeredFire dumps only the routes flagged triggered since the last
// dump, when there are any (spec §4.9 "TriggeredUpdate timer").
func (p *Port) onTriggeredFire() {
	if p.state != StateActive {
		return
	}
	triggered := p.collectTriggered()
	if len(triggered) > 0 {
		p.dumpEntries(triggered)
		for _, pr := range p.peers {
			pr.ClearTriggered()
		}
	}
	p.armTriggered()
}

func (p *Port) collectTriggered() []routedb.Entry[ipaddr.V4] {
	var out []routedb.Entry[ipaddr.V4]
	for key, pr := range p.peers {
		for _, r := range pr.Routes() {
			if !r.Triggered {
				continue
			}
			out = append(out, routedb.Entry[ipaddr.V4]{
				Net: r.Net, Nexthop: r.Nexthop, Cost: r.Cost, Tag: r.Tag,
				Origin: routedb.OriginRIP, Source: p.originName(key),
			})
		}
	}
	return out
}

func (p *Port) dumpFull() {
	p.dumpEntries(p.stack.AllRoutes())
}

// dumpEntries applies horizon and default-route rules to entries, chunks
// them into packets respecting the AuthHandler's per-packet entry limit,
// authenticates each, and enqueues the resulting datagrams for the
// multicast group.
func (p *Port) dumpEntries(entries []routedb.Entry[ipaddr.V4]) {
	if !p.cfg.Advertise || len(entries) == 0 {
		return
	}
	outbound := make([]packet.RouteEntryV2, 0, len(entries))
	for _, e := range entries {
		outbound = append(outbound, p.outboundEntry(e))
	}

	max := p.auth.MaxRoutingEntries()
	if max <= 0 {
		max = len(outbound)
	}
	for i := 0; i < len(outbound); i += max {
		end := i + max
		if end > len(outbound) {
			end = len(outbound)
		}
		pkt := packet.PacketV2{
			Header:  packet.Header{Command: packet.CmdResponse, Version: packet.RIPv2Version},
			Entries: outbound[i:end],
		}
		bufs, err := p.auth.AuthenticateOutbound(pkt)
		if err != nil {
			p.log.Error("failed to authenticate outbound packet", zap.Error(err))
			continue
		}
		for _, buf := range bufs {
			p.enqueue(queue.Datagram{Addr: p.groupAddr, Port: RipPort, Data: buf})
		}
	}
}

// outboundEntry applies the default-route and split-horizon rules to one
// winning RouteDB entry (spec §4.9 "Horizon application").
func (p *Port) outboundEntry(e routedb.Entry[ipaddr.V4]) packet.RouteEntryV2 {
	cost := e.Cost

	switch {
	case e.Net.IsDefault() && !p.cfg.AdvertiseDefault:
		cost = peer.Infinity
	case p.isOwnOrigin(e.Source):
		switch p.cfg.Horizon {
		case HorizonSplit, HorizonSplitPoisonReverse:
			cost = peer.Infinity
		}
	}
	if cost > peer.Infinity {
		cost = peer.Infinity
	}

	nh := e.Nexthop
	if !(p.rxSubnet.IsValid() && p.rxSubnet.Contains(nh.Addr())) {
		nh = ipaddr.V4Zero()
	}

	return packet.RouteEntryV2{
		AFI:     packet.AFIInet,
		Tag:     e.Tag,
		Addr:    e.Net.Addr,
		Mask:    e.Net.Len,
		Nexthop: nh,
		Metric:  uint32(cost),
	}
}

// isOwnOrigin reports whether source names an origin table owned by one
// of this Port's own Peers (spec §4.9 "r.origin is a Peer of this Port").
func (p *Port) isOwnOrigin(source string) bool {
	for key := range p.peers {
		if p.originName(key) == source {
			return true
		}
	}
	return false
}
