package port

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
	"github.com/xorproute/xorpcore/internal/rip/peer"
	"github.com/xorproute/xorpcore/internal/rip/queue"
	"github.com/xorproute/xorpcore/internal/xerr"
)

// HandleDatagram processes one inbound UDP datagram (spec §4.9 "Input
// handling"). srcPort distinguishes genuine RIP peers (RipPort) from
// diagnostic queriers.
func (p *Port) HandleDatagram(src ipaddr.V4, srcPort uint16, data []byte) error {
	if p.state != StateActive && p.state != StatePassiveIn {
		return nil
	}

	isRipPeer := srcPort == RipPort
	if !isRipPeer && !p.cfg.AcceptNonRipRequests {
		return nil
	}

	pkt, err := packet.DecodeV2(data)
	if err != nil {
		return xerr.New(xerr.Validation, "port.input", err)
	}

	newPeer := isRipPeer && p.peers[src.String()] == nil
	entries, err := p.auth.AuthenticateInbound(data, pkt, src, newPeer)
	if err != nil {
		p.BadAuthPackets++
		p.log.Info("dropping packet that failed authentication", zap.String("src", src.String()), zap.Error(err))
		return xerr.New(xerr.Auth, "port.input", err)
	}

	switch pkt.Header.Command {
	case packet.CmdResponse:
		return p.handleResponse(src, isRipPeer, entries)
	case packet.CmdRequest:
		return p.handleRequest(src, srcPort, isRipPeer, pkt.Entries)
	default:
		return xerr.New(xerr.Validation, "port.input", fmt.Errorf("unsupported command %d", pkt.Header.Command))
	}
}

func (p *Port) handleResponse(src ipaddr.V4, isRipPeer bool, entries []packet.RouteEntryV2) error {
	if !isRipPeer {
		return xerr.New(xerr.Validation, "port.input", fmt.Errorf("response from non-RIP port rejected"))
	}
	pr := p.getOrCreatePeer(src)
	now := p.rt.Clock().Now()
	for _, e := range entries {
		norm, err := packet.Normalize(e, src, p.rxSubnet, p.ownAddrs)
		if err != nil {
			p.log.Debug("rejecting route entry", zap.String("src", src.String()), zap.Error(err))
			continue
		}
		cost := int(norm.Metric) + p.cfg.Cost
		if cost > peer.Infinity {
			cost = peer.Infinity
		}
		pr.UpdateRoute(norm.Net, norm.Nexthop, cost, norm.Tag, now)
	}
	return nil
}

func (p *Port) handleRequest(src ipaddr.V4, srcPort uint16, isRipPeer bool, entries []packet.RouteEntryV2) error {
	if len(entries) == 1 && isWholeTableRequest(entries[0]) {
		if isRipPeer {
			p.onUnsolicitedFire()
			return nil
		}
		return p.replyWholeTable(src, srcPort)
	}

	out := make([]packet.RouteEntryV2, 0, len(entries))
	for _, e := range entries {
		cost := peer.Infinity
		if w, ok := p.stack.LookupRoute(ipaddr.PrefixV4(e.Addr, e.Mask)); ok {
			cost = w.Cost
		}
		out = append(out, packet.RouteEntryV2{AFI: packet.AFIInet, Tag: e.Tag, Addr: e.Addr, Mask: e.Mask, Metric: uint32(cost)})
	}
	return p.replyDirect(src, srcPort, out)
}

// replyWholeTable answers a diagnostic (non-RIP-port) whole-table request,
// rate-limited per source by InterqueryDelay (spec §4.9 "anti-storm
// timer").
func (p *Port) replyWholeTable(src ipaddr.V4, srcPort uint16) error {
	key := src.String()
	if _, pending := p.interquery[key]; pending {
		return nil
	}
	p.interquery[key] = p.rt.AfterFunc(p.cfg.InterqueryDelay, func() {
		delete(p.interquery, key)
	})

	out := make([]packet.RouteEntryV2, 0)
	for _, e := range p.stack.AllRoutes() {
		out = append(out, p.outboundEntry(e))
	}
	return p.replyDirect(src, srcPort, out)
}

func (p *Port) replyDirect(dst ipaddr.V4, dstPort uint16, entries []packet.RouteEntryV2) error {
	max := p.auth.MaxRoutingEntries()
	if max <= 0 {
		max = 1
	}
	for i := 0; i < len(entries); i += max {
		end := i + max
		if end > len(entries) {
			end = len(entries)
		}
		pkt := packet.PacketV2{
			Header:  packet.Header{Command: packet.CmdResponse, Version: packet.RIPv2Version},
			Entries: entries[i:end],
		}
		bufs, err := p.auth.AuthenticateOutbound(pkt)
		if err != nil {
			return xerr.New(xerr.Auth, "port.reply", err)
		}
		for _, buf := range bufs {
			p.enqueue(queue.Datagram{Addr: dst.String(), Port: dstPort, Data: buf})
		}
	}
	return nil
}
