// Package port implements the Port state machine (spec §4.9, C10): the
// RIPv2 core that owns a set of Peers on one interface, two output
// timers, a PacketQueue, and an AuthHandler. RIPng's Port is structurally
// identical but unauthenticated (RFC 2080 defines no auth trailer) and is
// not built here — see DESIGN.md.
package port

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/auth"
	"github.com/xorproute/xorpcore/internal/rip/peer"
	"github.com/xorproute/xorpcore/internal/rip/queue"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
	"github.com/xorproute/xorpcore/internal/runtime"
)

// RipPort is the well-known UDP port RIPv2 speakers listen and advertise
// on (spec §6).
const RipPort = 520

// State is one of the Port's four operating states (spec §4.9 transition
// table).
type State int

const (
	StateDisabled State = iota
	StateActive
	StateReadyQuiescent
	StatePassiveIn
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateActive:
		return "active"
	case StateReadyQuiescent:
		return "ready-quiescent"
	case StatePassiveIn:
		return "passive-in"
	default:
		return "unknown"
	}
}

// Sender abstracts the Port's I/O so tests can substitute a fake socket.
// Send attempts to transmit d; ok=false means the socket is currently
// busy (a send is in flight) and d was not written — the Port retries
// once Complete() is called (spec §4.7 "proceeds only while the
// underlying I/O reports not pending").
type Sender interface {
	Send(d queue.Datagram) (ok bool, err error)
}

// Port is the RIPv2 core for one interface (spec §4.9).
type Port struct {
	rt     *runtime.Runtime
	log    *zap.Logger
	name   string
	cfg    Config
	auth   auth.Handler
	sender Sender
	queue  *queue.Queue
	stack  *routedb.Stack[ipaddr.V4]

	groupAddr string
	ownAddrs  []ipaddr.V4
	rxSubnet  netip.Prefix

	peers map[string]*peer.Peer[ipaddr.V4]

	state   State
	enabled bool
	ioUp    bool
	passive bool
	sending bool

	unsolicitedTimer  runtime.Timer
	triggeredTimer    runtime.Timer
	requestTableTimer runtime.Timer
	interquery        map[string]runtime.Timer

	BadAuthPackets uint64
}

// New constructs a Port named name (the interface/vif it is bound to).
// stack is the RouteDB stack entries are learned into and looked up
// from; sender is the Port's socket abstraction; groupAddr is the
// destination for unsolicited/triggered dumps (e.g. "224.0.0.9").
func New(rt *runtime.Runtime, log *zap.Logger, name string, cfg Config, authHandler auth.Handler, sender Sender, stack *routedb.Stack[ipaddr.V4], groupAddr string, ownAddrs []ipaddr.V4, rxSubnet netip.Prefix) *Port {
	if authHandler == nil {
		authHandler = auth.None{}
	}
	p := &Port{
		rt:         rt,
		log:        log.Named("rip.port").With(zap.String("port", name)),
		name:       name,
		cfg:        cfg,
		auth:       authHandler,
		sender:     sender,
		queue:      queue.New(queue.DefaultCapacity),
		stack:      stack,
		groupAddr:  groupAddr,
		ownAddrs:   ownAddrs,
		rxSubnet:   rxSubnet,
		peers:      make(map[string]*peer.Peer[ipaddr.V4]),
		interquery: make(map[string]runtime.Timer),
	}
	p.queue.OnFlush(func(dropped int) {
		p.log.Warn("packet queue overflow, flushing", zap.Int("dropped", dropped))
	})
	p.enabled = cfg.Enabled
	return p
}

func (p *Port) State() State { return p.state }
func (p *Port) Name() string { return p.name }

// Peers returns the addresses of every Peer currently known on this Port.
func (p *Port) Peers() []string {
	out := make([]string, 0, len(p.peers))
	for k := range p.peers {
		out = append(out, k)
	}
	return out
}

// --- state machine -------------------------------------------------

// Enable marks the Port administratively up (spec §4.9 "enable" event).
func (p *Port) Enable() {
	p.enabled = true
	p.recompute()
}

// Disable marks the Port administratively down.
func (p *Port) Disable() {
	p.enabled = false
	p.recompute()
}

// IOUp reports that the underlying socket became usable.
func (p *Port) IOUp() {
	p.ioUp = true
	p.recompute()
}

// IODown reports that the underlying socket stopped being usable.
func (p *Port) IODown() {
	p.ioUp = false
	p.recompute()
}

// SetPassive toggles passive-in mode: output stops, input keeps flowing.
func (p *Port) SetPassive(passive bool) {
	p.passive = passive
	p.recompute()
}

func (p *Port) recompute() {
	prev := p.state

	switch {
	case p.passive:
		p.state = StatePassiveIn
	case !p.enabled:
		p.state = StateDisabled
	case !p.ioUp:
		if prev == StateActive {
			p.state = StateReadyQuiescent
		} else {
			p.state = StateDisabled
		}
	default:
		p.state = StateActive
	}

	if prev == p.state {
		return
	}
	p.log.Info("state transition", zap.String("from", prev.String()), zap.String("to", p.state.String()))

	switch p.state {
	case StateActive:
		p.requestTableNow()
		p.startOutputTimers()
	case StateDisabled:
		if prev == StateActive || prev == StatePassiveIn {
			p.killAllPeerRoutes()
		}
		p.stopOutputTimers()
		p.stopRequestTableTimer()
	case StateReadyQuiescent:
		p.killAllPeerRoutes()
		p.stopOutputTimers()
	case StatePassiveIn:
		p.stopOutputTimers()
	}
}

func (p *Port) killAllPeerRoutes() {
	for _, pr := range p.peers {
		pr.KillRoutes()
	}
}

// --- peer management -------------------------------------------------

func (p *Port) getOrCreatePeer(addr ipaddr.V4) *peer.Peer[ipaddr.V4] {
	key := addr.String()
	if pr, ok := p.peers[key]; ok {
		return pr
	}
	pr := peer.New[ipaddr.V4](p.rt, addr, RipPort, p.cfg.Expiry, p.cfg.Deletion, p.rt.Clock().Now())
	origin := p.stack.Origin(p.originName(key))
	pr.OnTriggered = func(e peer.RouteEntry[ipaddr.V4]) {
		if e.Cost >= peer.Infinity {
			origin.DeleteRoute(e.Net, nil)
		} else {
			origin.AddRoute(routedb.Entry[ipaddr.V4]{
				Net: e.Net, Nexthop: e.Nexthop, Cost: e.Cost, Tag: e.Tag,
				Origin: routedb.OriginRIP, Source: p.originName(key),
			}, nil)
		}
	}
	pr.OnWithdraw = func(net ipaddr.Prefix[ipaddr.V4]) {
		origin.DeleteRoute(net, nil)
	}
	p.peers[key] = pr
	p.stopRequestTableTimer()
	return pr
}

func (p *Port) originName(peerKey string) string {
	return fmt.Sprintf("rip:%s:%s", p.name, peerKey)
}

// GCPeers removes every Peer that has been routeless for at least grace,
// withdrawing its origin table (spec §4.8 "periodic GC sweep").
func (p *Port) GCPeers(grace time.Duration) {
	now := p.rt.Clock().Now()
	for key, pr := range p.peers {
		if pr.IsGCCandidate(now, grace) {
			p.stack.RemoveOrigin(p.originName(key))
			delete(p.peers, key)
			p.log.Info("peer garbage collected", zap.String("peer", key))
		}
	}
}
