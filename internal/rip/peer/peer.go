// Package peer implements the Peer (spec §4.8, C9): per-remote-speaker
// route learning, expiry/deletion timers, and peer garbage collection.
// Timer semantics are grounded on port.cc's use of EventLoop one-shot
// timers for route aging and on spec §4.8's expiry/deletion model.
package peer

import (
	"time"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/runtime"
)

// Infinity is the RIP metric representing an unreachable route.
const Infinity = 16

// RouteEntry is one route learned from a Peer (spec §3 "RouteEntry").
type RouteEntry[A ipaddr.Family] struct {
	Net       ipaddr.Prefix[A]
	Nexthop   A
	Cost      int
	Tag       uint16
	Triggered bool

	expiryTimer   runtime.Timer
	deletionTimer runtime.Timer
}

// Peer owns the routes learned from one remote RIP speaker (spec §4.8).
type Peer[A ipaddr.Family] struct {
	rt   *runtime.Runtime
	Addr A
	Port uint16

	LastActive time.Time
	routes     map[string]*RouteEntry[A]

	expiry   time.Duration
	deletion time.Duration

	// OnTriggered fires when a route is inserted, when its cost, next hop
	// or tag changes, and when it becomes unreachable (expiry, withdrawal
	// or KillRoutes), so the owning Port can fast-forward a triggered update.
	OnTriggered func(RouteEntry[A])
	// OnWithdraw fires when a route is finally removed (deletion timer
	// fired), so the owning RouteDB layer can retract it.
	OnWithdraw func(ipaddr.Prefix[A])

	becameEmptyAt time.Time
	isEmpty       bool

	BadAuthPackets   uint64
	UnresponsiveScan uint64
}

// New constructs a Peer, created empty so that a peer which never learns
// a route (unauthenticated or unresponsive) is GC-eligible starting now.
// expiry and deletion are the two per-route timer durations (spec
// defaults: 180s and 120s).
func New[A ipaddr.Family](rt *runtime.Runtime, addr A, port uint16, expiry, deletion time.Duration, now time.Time) *Peer[A] {
	return &Peer[A]{
		rt:            rt,
		Addr:          addr,
		Port:          port,
		routes:        make(map[string]*RouteEntry[A]),
		expiry:        expiry,
		deletion:      deletion,
		LastActive:    now,
		isEmpty:       true,
		becameEmptyAt: now,
	}
}

// Routes returns a snapshot of the currently held routes.
func (p *Peer[A]) Routes() []RouteEntry[A] {
	out := make([]RouteEntry[A], 0, len(p.routes))
	for _, r := range p.routes {
		out = append(out, *r)
	}
	return out
}

// RouteCount reports how many routes this peer currently holds.
func (p *Peer[A]) RouteCount() int { return len(p.routes) }

// UpdateRoute inserts, refreshes, or invalidates the entry for net,
// mirroring RIP's "advertise metric 16 to withdraw" convention. cost is
// clamped to [0, Infinity]. now stamps LastActive.
func (p *Peer[A]) UpdateRoute(net ipaddr.Prefix[A], nexthop A, cost int, tag uint16, now time.Time) {
	p.LastActive = now
	if cost < 0 {
		cost = 0
	}
	if cost > Infinity {
		cost = Infinity
	}

	key := net.String()
	existing, ok := p.routes[key]

	if cost >= Infinity {
		if !ok {
			return // nothing to withdraw
		}
		p.stopExpiry(existing)
		existing.Cost = Infinity
		existing.Triggered = true
		p.armDeletion(net, existing)
		p.fireTriggered(*existing)
		return
	}

	if ok {
		changed := existing.Cost != cost || existing.Nexthop != nexthop || existing.Tag != tag
		existing.Nexthop = nexthop
		existing.Cost = cost
		existing.Tag = tag
		if changed {
			existing.Triggered = true
		}
		p.stopDeletion(existing)
		p.armExpiry(net, existing)
		if changed {
			p.fireTriggered(*existing)
		}
		return
	}

	entry := &RouteEntry[A]{Net: net, Nexthop: nexthop, Cost: cost, Tag: tag, Triggered: true}
	p.routes[key] = entry
	p.markNonEmpty()
	p.armExpiry(net, entry)
	p.fireTriggered(*entry)
}

// ClearTriggered resets the triggered flag on every route, called after a
// triggered-update dump has included them.
func (p *Peer[A]) ClearTriggered() {
	for _, r := range p.routes {
		r.Triggered = false
	}
}

// KillRoutes sets every route's cost to Infinity without waiting for the
// expiry timer (spec §4.9 Active→Disabled/ReadyQuiescent transitions:
// "kill all peer routes").
func (p *Peer[A]) KillRoutes() {
	for _, r := range p.routes {
		if r.Cost == Infinity {
			continue
		}
		p.stopExpiry(r)
		r.Cost = Infinity
		r.Triggered = true
		p.armDeletion(r.Net, r)
		p.fireTriggered(*r)
	}
}

func (p *Peer[A]) armExpiry(net ipaddr.Prefix[A], r *RouteEntry[A]) {
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
	}
	r.expiryTimer = p.rt.AfterFunc(p.expiry, func() { p.onExpire(net, r) })
}

func (p *Peer[A]) stopExpiry(r *RouteEntry[A]) {
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
		r.expiryTimer = nil
	}
}

func (p *Peer[A]) armDeletion(net ipaddr.Prefix[A], r *RouteEntry[A]) {
	if r.deletionTimer != nil {
		r.deletionTimer.Stop()
	}
	r.deletionTimer = p.rt.AfterFunc(p.deletion, func() { p.onDelete(net, r) })
}

func (p *Peer[A]) stopDeletion(r *RouteEntry[A]) {
	if r.deletionTimer != nil {
		r.deletionTimer.Stop()
		r.deletionTimer = nil
	}
}

func (p *Peer[A]) onExpire(net ipaddr.Prefix[A], r *RouteEntry[A]) {
	if _, ok := p.routes[net.String()]; !ok {
		return
	}
	r.Cost = Infinity
	r.Triggered = true
	p.armDeletion(net, r)
	p.fireTriggered(*r)
}

func (p *Peer[A]) onDelete(net ipaddr.Prefix[A], r *RouteEntry[A]) {
	key := net.String()
	if cur, ok := p.routes[key]; !ok || cur != r {
		return
	}
	delete(p.routes, key)
	if len(p.routes) == 0 {
		p.markEmpty()
	}
	if p.OnWithdraw != nil {
		p.OnWithdraw(net)
	}
}

func (p *Peer[A]) fireTriggered(r RouteEntry[A]) {
	if p.OnTriggered != nil {
		p.OnTriggered(r)
	}
}

func (p *Peer[A]) markEmpty() {
	if !p.isEmpty {
		p.isEmpty = true
		p.becameEmptyAt = p.rt.Clock().Now()
	}
}

func (p *Peer[A]) markNonEmpty() { p.isEmpty = false }

// IsGCCandidate reports whether the peer has been empty for at least
// grace since it last held a route (spec §4.8 "GC sweep ... after a
// grace period").
func (p *Peer[A]) IsGCCandidate(now time.Time, grace time.Duration) bool {
	return len(p.routes) == 0 && p.isEmpty && now.Sub(p.becameEmptyAt) >= grace
}
