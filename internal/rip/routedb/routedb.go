// Package routedb implements the RouteDB + RouteTable stack (spec §4.10,
// C11): a chain of RouteTable layers, each forwarding add/delete/lookup to
// its successor. Concrete layers here are OriginTable (one per Peer or
// administrative source), MergeTable (best-route selection by admin
// distance then metric), TraceTable (adds/deletes logged as they pass
// through, grounded on rt_tab_log.cc's LogTable/XLogTraceTable), and
// SinkTable (drives the FibEngine and an external ChurnSink).
package routedb

import (
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// Origin tags where a RouteEntry came from (spec §3 Fte.protocol_origin,
// carried here on the RouteDB-level entry rather than the Fte).
type Origin int

const (
	OriginRIP Origin = iota
	OriginConnected
	OriginStatic
	OriginRedist
)

func (o Origin) String() string {
	switch o {
	case OriginRIP:
		return "rip"
	case OriginConnected:
		return "connected"
	case OriginStatic:
		return "static"
	case OriginRedist:
		return "redist"
	default:
		return "unknown"
	}
}

// AdminDistance orders origins when the merge table must pick a winner
// for the same prefix (lower wins, matching common RIB convention).
func (o Origin) AdminDistance() int {
	switch o {
	case OriginConnected:
		return 0
	case OriginStatic:
		return 1
	case OriginRedist:
		return 5
	case OriginRIP:
		return 120
	default:
		return 255
	}
}

// Entry is one route as carried through the RouteDB stack.
type Entry[A ipaddr.Family] struct {
	Net     ipaddr.Prefix[A]
	Nexthop A
	Cost    int
	Tag     uint16
	Origin  Origin
	// Source names the origin table that produced this entry; OriginTable
	// sets it to its own name, and a Port compares it with its Peers'
	// origin names to apply the horizon rules.
	Source string
}

// RouteTable is one layer in the stack (spec §4.10).
type RouteTable[A ipaddr.Family] interface {
	AddRoute(e Entry[A], caller RouteTable[A]) error
	DeleteRoute(net ipaddr.Prefix[A], caller RouteTable[A]) error
	LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool)
	SetNext(next RouteTable[A])
	Name() string
}

// baseTable is embedded by every concrete layer to hold the successor
// pointer and name, mirroring RouteTable<A>'s tablename()/next_table().
type baseTable[A ipaddr.Family] struct {
	name string
	next RouteTable[A]
}

func (b *baseTable[A]) SetNext(next RouteTable[A]) { b.next = next }
func (b *baseTable[A]) Name() string               { return b.name }
