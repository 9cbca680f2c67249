package port

import (
	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/rip/packet"
	"github.com/xorproute/xorpcore/internal/rip/queue"
)

// enqueue appends d to the PacketQueue and pumps the send loop.
func (p *Port) enqueue(d queue.Datagram) {
	p.queue.Enqueue(d)
	p.pump()
}

// pump drains the queue while the sender reports readiness (spec §4.7:
// "transmission proceeds only while the underlying I/O reports not
// pending; on send completion, the head is popped and the next packet is
// pushed").
func (p *Port) pump() {
	if p.sending || p.sender == nil {
		return
	}
	for {
		d, ok := p.queue.Head()
		if !ok {
			return
		}
		sent, err := p.sender.Send(d)
		if err != nil {
			p.log.Warn("send failed, dropping datagram", zap.Error(err))
			p.queue.PopHead()
			continue
		}
		if !sent {
			p.sending = true
			return
		}
		p.queue.PopHead()
	}
}

// Complete notifies the Port that an in-flight send finished, so the next
// queued datagram (if any) can be pushed. err non-nil flushes the queue
// rather than retrying (spec §4.7 "on overflow it flushes all buffered
// packets").
func (p *Port) Complete(err error) {
	p.sending = false
	if err != nil {
		p.log.Warn("send completion reported failure, flushing queue", zap.Error(err))
		p.queue.Flush()
		return
	}
	p.pump()
}

func (p *Port) requestTableNow() {
	req := packet.PacketV2{
		Header: packet.Header{Command: packet.CmdRequest, Version: packet.RIPv2Version},
		Entries: []packet.RouteEntryV2{
			{AFI: 0, Metric: 16},
		},
	}
	p.enqueue(queue.Datagram{Addr: p.groupAddr, Port: RipPort, Data: packet.EncodeV2(req)})
	p.armRequestTableTimer()
}

// armRequestTableTimer re-sends a whole-table request every
// TableRequestPeriod while this Port has no Peers (spec §4.9
// "Request-table timer ... cancelled as soon as the first Peer is
// learned").
func (p *Port) armRequestTableTimer() {
	if p.cfg.TableRequestPeriod <= 0 || len(p.peers) > 0 {
		return
	}
	p.requestTableTimer = p.rt.AfterFunc(p.cfg.TableRequestPeriod, func() {
		if p.state != StateActive || len(p.peers) > 0 {
			return
		}
		p.requestTableNow()
	})
}

func (p *Port) stopRequestTableTimer() {
	if p.requestTableTimer != nil {
		p.requestTableTimer.Stop()
		p.requestTableTimer = nil
	}
}

// isWholeTableRequest reports whether e is RFC 2453 §3.9.1's sentinel
// "whole table" request entry: AFI 0, metric infinity.
func isWholeTableRequest(e packet.RouteEntryV2) bool {
	return e.AFI == 0 && e.Metric == 16
}
