package routedb

import "github.com/xorproute/xorpcore/internal/ipaddr"

// MergeTable picks, per prefix, the best candidate among every upstream
// OriginTable's contribution (lowest admin distance, then lowest metric)
// and forwards only the winner downstream — spec §4.10 "merging table
// (picks the best entry by admin-distance then metric)".
type MergeTable[A ipaddr.Family] struct {
	baseTable[A]
	// candidates[netKey][callerName] is every upstream entry currently
	// offered for that prefix.
	candidates map[string]map[string]Entry[A]
	// winner[netKey] is the entry last forwarded downstream, so a
	// non-changing re-add or a losing withdrawal need not propagate.
	winner map[string]Entry[A]
}

func NewMergeTable[A ipaddr.Family](name string) *MergeTable[A] {
	return &MergeTable[A]{
		baseTable:  baseTable[A]{name: name},
		candidates: make(map[string]map[string]Entry[A]),
		winner:     make(map[string]Entry[A]),
	}
}

func better[A ipaddr.Family](a, b Entry[A]) bool {
	if a.Origin.AdminDistance() != b.Origin.AdminDistance() {
		return a.Origin.AdminDistance() < b.Origin.AdminDistance()
	}
	return a.Cost < b.Cost
}

func (m *MergeTable[A]) best(key string) (Entry[A], bool) {
	var (
		out   Entry[A]
		found bool
	)
	for _, e := range m.candidates[key] {
		if !found || better(e, out) {
			out, found = e, true
		}
	}
	return out, found
}

func (m *MergeTable[A]) AddRoute(e Entry[A], caller RouteTable[A]) error {
	key := e.Net.String()
	if m.candidates[key] == nil {
		m.candidates[key] = make(map[string]Entry[A])
	}
	m.candidates[key][callerKey(caller)] = e

	best, ok := m.best(key)
	if !ok {
		return nil
	}
	prev, hadPrev := m.winner[key]
	if hadPrev && prev == best {
		return nil
	}
	m.winner[key] = best
	if m.next == nil {
		return nil
	}
	if hadPrev {
		if err := m.next.DeleteRoute(e.Net, m); err != nil {
			return err
		}
	}
	return m.next.AddRoute(best, m)
}

func (m *MergeTable[A]) DeleteRoute(net ipaddr.Prefix[A], caller RouteTable[A]) error {
	key := net.String()
	delete(m.candidates[key], callerKey(caller))
	if len(m.candidates[key]) == 0 {
		delete(m.candidates, key)
	}

	best, ok := m.best(key)
	prev, hadPrev := m.winner[key]
	if !hadPrev {
		return nil
	}
	if !ok {
		delete(m.winner, key)
		if m.next != nil {
			return m.next.DeleteRoute(net, m)
		}
		return nil
	}
	if best == prev {
		return nil
	}
	m.winner[key] = best
	if m.next == nil {
		return nil
	}
	if err := m.next.DeleteRoute(net, m); err != nil {
		return err
	}
	return m.next.AddRoute(best, m)
}

func (m *MergeTable[A]) LookupRoute(net ipaddr.Prefix[A]) (Entry[A], bool) {
	e, ok := m.winner[net.String()]
	return e, ok
}

// AllRoutes returns a snapshot of every currently-winning entry, used by
// a Port's unsolicited full-table dump.
func (m *MergeTable[A]) AllRoutes() []Entry[A] {
	out := make([]Entry[A], 0, len(m.winner))
	for _, e := range m.winner {
		out = append(out, e)
	}
	return out
}

// callerKey identifies the upstream table contributing a candidate. Named
// tables (OriginTable, MergeTable) are keyed by Name(); this is stable
// across calls since the stack is wired once at startup.
func callerKey[A ipaddr.Family](caller RouteTable[A]) string {
	if caller == nil {
		return ""
	}
	return caller.Name()
}
