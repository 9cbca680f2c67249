package routedb

import (
	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/fea/fib"
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// Stack wires up one RouteTable chain for an address family: a MergeTable
// feeding an optional TraceTable feeding the SinkTable, with one
// OriginTable per Peer or administrative source attached upstream of the
// merge table (spec §4.10: "the stack is set up once at startup; updates
// propagate synchronously").
type Stack[A ipaddr.Family] struct {
	merge   *MergeTable[A]
	sink    *SinkTable[A]
	origins map[string]*OriginTable[A]
}

// NewStack builds a Stack driving fibEngine, optionally tracing every
// update through log (nil disables tracing).
func NewStack[A ipaddr.Family](family string, fibEngine *fib.Engine[A], resolveIf func(Entry[A]) (string, string), log *zap.Logger) *Stack[A] {
	merge := NewMergeTable[A]("merge")
	sink := NewSinkTable[A]("sink", family, fibEngine, resolveIf)

	var tail RouteTable[A] = sink
	if log != nil {
		trace := NewTraceTable[A]("trace", log)
		trace.SetNext(sink)
		tail = trace
	}
	merge.SetNext(tail)

	return &Stack[A]{merge: merge, sink: sink, origins: make(map[string]*OriginTable[A])}
}

// Origin returns (creating if necessary) the OriginTable for name, wired
// upstream of the merge table.
func (s *Stack[A]) Origin(name string) *OriginTable[A] {
	if o, ok := s.origins[name]; ok {
		return o
	}
	o := NewOriginTable[A](name)
	o.SetNext(s.merge)
	s.origins[name] = o
	return o
}

// RemoveOrigin withdraws every route the named origin still holds (used
// when a Peer is garbage-collected) and detaches its table.
func (s *Stack[A]) RemoveOrigin(name string) {
	o, ok := s.origins[name]
	if !ok {
		return
	}
	nets := make([]ipaddr.Prefix[A], 0, len(o.routes))
	for _, e := range o.routes {
		nets = append(nets, e.Net)
	}
	for _, net := range nets {
		_ = o.DeleteRoute(net, nil)
	}
	delete(s.origins, name)
}

// AddSink registers an external FIB-client channel on the terminal layer.
func (s *Stack[A]) AddSink(sink ChurnSink) { s.sink.AddSink(sink) }

// LookupRoute answers a Port's "Request with specific prefixes" query
// (spec §4.9) by walking to the merge table's current winner.
func (s *Stack[A]) LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool) {
	return s.merge.LookupRoute(net)
}

// AllRoutes returns every currently-winning entry, for a Port's
// unsolicited full-table dump.
func (s *Stack[A]) AllRoutes() []Entry[A] {
	return s.merge.AllRoutes()
}
