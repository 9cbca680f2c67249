package routedb

import "github.com/xorproute/xorpcore/internal/ipaddr"

// OriginTable holds the routes contributed by one origin (one Peer, or one
// administrative source such as "connected" or "static") and forwards
// every add/delete to the next table in the stack, tagging itself as the
// caller so a downstream MergeTable can track per-origin candidates.
type OriginTable[A ipaddr.Family] struct {
	baseTable[A]
	routes map[string]Entry[A]
}

// NewOriginTable constructs an OriginTable named name (e.g. a Peer's
// address, or "connected").
func NewOriginTable[A ipaddr.Family](name string) *OriginTable[A] {
	return &OriginTable[A]{
		baseTable: baseTable[A]{name: name},
		routes:    make(map[string]Entry[A]),
	}
}

func (o *OriginTable[A]) AddRoute(e Entry[A], _ RouteTable[A]) error {
	e.Source = o.name
	o.routes[e.Net.String()] = e
	if o.next != nil {
		return o.next.AddRoute(e, o)
	}
	return nil
}

func (o *OriginTable[A]) DeleteRoute(net ipaddr.Prefix[A], _ RouteTable[A]) error {
	delete(o.routes, net.String())
	if o.next != nil {
		return o.next.DeleteRoute(net, o)
	}
	return nil
}

func (o *OriginTable[A]) LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool) {
	e, ok := o.routes[net.String()]
	return e, ok
}

// RouteCount reports how many routes this origin currently contributes.
func (o *OriginTable[A]) RouteCount() int { return len(o.routes) }
