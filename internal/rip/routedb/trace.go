package routedb

import (
	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// TraceTable forwards every add/delete unchanged and logs it (an add
// before forwarding, a delete after, with the downstream error), grounded on rt_tab_log.cc's XLogTraceTable (this is the zap-logging
// sibling of the audit package's Postgres-backed RouteHistory sink — the
// two are independent optional layers, per SPEC_FULL.md §"SUPPLEMENTED
// FEATURES").
type TraceTable[A ipaddr.Family] struct {
	baseTable[A]
	log     *zap.Logger
	updates uint64
}

func NewTraceTable[A ipaddr.Family](name string, log *zap.Logger) *TraceTable[A] {
	return &TraceTable[A]{baseTable: baseTable[A]{name: name}, log: log}
}

// UpdateNumber reports how many add/delete calls have passed through,
// mirroring LogTable::update_number().
func (t *TraceTable[A]) UpdateNumber() uint64 { return t.updates }

func (t *TraceTable[A]) AddRoute(e Entry[A], caller RouteTable[A]) error {
	t.updates++
	t.log.Debug("route add",
		zap.Uint64("update", t.updates),
		zap.String("net", e.Net.String()),
		zap.String("nexthop", e.Nexthop.String()),
		zap.Int("cost", e.Cost),
		zap.String("origin", e.Origin.String()),
	)
	if t.next != nil {
		return t.next.AddRoute(e, t)
	}
	return nil
}

func (t *TraceTable[A]) DeleteRoute(net ipaddr.Prefix[A], caller RouteTable[A]) error {
	var err error
	if t.next != nil {
		err = t.next.DeleteRoute(net, t)
	}
	t.updates++
	t.log.Debug("route delete",
		zap.Uint64("update", t.updates),
		zap.String("net", net.String()),
		zap.Error(err),
	)
	return err
}

func (t *TraceTable[A]) LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool) {
	if t.next != nil {
		return t.next.LookupRoute(net)
	}
	var zero Entry[A]
	return zero, false
}
