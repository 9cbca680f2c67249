package routedb

import (
	"github.com/xorproute/xorpcore/internal/fea/fib"
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// ChurnKind classifies one ChurnEvent.
type ChurnKind int

const (
	ChurnAdd ChurnKind = iota
	ChurnReplace
	ChurnDelete
)

func (k ChurnKind) String() string {
	switch k {
	case ChurnAdd:
		return "add"
	case ChurnReplace:
		return "replace"
	case ChurnDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChurnEvent is the family-erased record handed to external FIB-client
// channels (spec §6): route history (Postgres) and churn publishing
// (Kafka) both consume these rather than the generic Entry[A], since
// neither backend needs the address family as a type parameter.
type ChurnEvent struct {
	Kind    ChurnKind
	Family  string
	Net     string
	Nexthop string
	Cost    int
	Tag     uint16
	Origin  string
	Source  string
}

// ChurnSink is implemented by audit.RouteHistory and publish.ChurnPublisher.
type ChurnSink interface {
	Publish(ChurnEvent) error
}

// SinkTable is the terminal layer in the stack: it drives the FibEngine
// and fans out every add/delete to zero or more ChurnSinks.
type SinkTable[A ipaddr.Family] struct {
	baseTable[A]
	fib     *fib.Engine[A]
	family  string
	origin  fib.Origin
	ifName  func(Entry[A]) (ifname, vifname string)
	sinks   []ChurnSink
	current map[string]Entry[A]
}

// NewSinkTable constructs a SinkTable driving fibEngine. family is "v4" or
// "v6" for ChurnEvent tagging. resolveIf maps a winning Entry to the
// outgoing interface/vif the FibEngine needs (looked up via the
// NexthopPortMapper by the caller wiring the stack together).
func NewSinkTable[A ipaddr.Family](name, family string, fibEngine *fib.Engine[A], resolveIf func(Entry[A]) (string, string)) *SinkTable[A] {
	return &SinkTable[A]{
		baseTable: baseTable[A]{name: name},
		fib:       fibEngine,
		family:    family,
		ifName:    resolveIf,
		current:   make(map[string]Entry[A]),
	}
}

// AddSink registers an external FIB-client channel.
func (s *SinkTable[A]) AddSink(sink ChurnSink) { s.sinks = append(s.sinks, sink) }

func (s *SinkTable[A]) AddRoute(e Entry[A], _ RouteTable[A]) error {
	key := e.Net.String()
	_, replacing := s.current[key]
	s.current[key] = e

	ifname, vifname := "", ""
	if s.ifName != nil {
		ifname, vifname = s.ifName(e)
	}
	fte := fib.Fte[A]{
		Net:           e.Net,
		Nexthop:       e.Nexthop,
		IfName:        ifname,
		VifName:       vifname,
		Metric:        uint32(e.Cost),
		AdminDistance: uint32(e.Origin.AdminDistance()),
		Protocol:      toFibOrigin(e.Origin),
	}
	if err := s.fib.AddEntry(fte); err != nil {
		return err
	}
	kind := ChurnAdd
	if replacing {
		kind = ChurnReplace
	}
	s.publish(kind, e)
	return nil
}

func (s *SinkTable[A]) DeleteRoute(net ipaddr.Prefix[A], _ RouteTable[A]) error {
	key := net.String()
	e, ok := s.current[key]
	delete(s.current, key)
	if err := s.fib.DeleteEntry(net); err != nil {
		return err
	}
	if ok {
		s.publish(ChurnDelete, e)
	}
	return nil
}

func (s *SinkTable[A]) LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool) {
	e, ok := s.current[net.String()]
	return e, ok
}

func (s *SinkTable[A]) publish(kind ChurnKind, e Entry[A]) {
	if len(s.sinks) == 0 {
		return
	}
	ev := ChurnEvent{
		Kind:    kind,
		Family:  s.family,
		Net:     e.Net.String(),
		Nexthop: e.Nexthop.String(),
		Cost:    e.Cost,
		Tag:     e.Tag,
		Origin:  e.Origin.String(),
		Source:  e.Source,
	}
	for _, sink := range s.sinks {
		// Best-effort: a history/publish backend outage must not block
		// route installation. Errors are the sink's own responsibility
		// to log/count.
		_ = sink.Publish(ev)
	}
}

func toFibOrigin(o Origin) fib.Origin {
	switch o {
	case OriginConnected:
		return fib.OriginConnected
	case OriginStatic:
		return fib.OriginStatic
	case OriginRedist:
		return fib.OriginRedist
	default:
		return fib.OriginXorp
	}
}
