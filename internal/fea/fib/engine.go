package fib

import (
	"fmt"
	"sync"

	"github.com/xorproute/xorpcore/internal/fea/fib/trie"
	"github.com/xorproute/xorpcore/internal/iftree"
	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/xerr"
)

// EventKind tags one entry-observe notification (spec §4.3 "Entry observe").
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventChanged
)

// Event is delivered to observers in kernel/apply order.
type Event[A ipaddr.Family] struct {
	Kind EventKind
	Fte  Fte[A]
}

// Engine is the FibEngine for one address family. It enforces: connected
// routes are never added by XORP (skipped silently); multicast/broadcast
// prefixes are refused; the outgoing interface must resolve to a live
// ifindex unless the route is a discard route.
type Engine[A ipaddr.Family] struct {
	mu          sync.Mutex
	t           trie.Trie
	tree        *iftree.Tree // for ifname → ifindex resolution
	discardIfs  map[string]bool
	observers   []func(Event[A])
	txDepth     int
	txBacklog   []Event[A]
	pagingTable bool
}

// New constructs an Engine. tree supplies the live interface set used to
// validate outgoing interfaces; discardIfs names the interfaces configured
// as discard/blackhole targets (spec §8 scenario 6).
func New[A ipaddr.Family](tree *iftree.Tree, discardIfs map[string]bool) *Engine[A] {
	if discardIfs == nil {
		discardIfs = make(map[string]bool)
	}
	return &Engine[A]{tree: tree, discardIfs: discardIfs}
}

// Observe registers a callback invoked for every committed add/remove/
// change, in commit order.
func (e *Engine[A]) Observe(f func(Event[A])) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, f)
}

func (e *Engine[A]) notify(ev Event[A]) {
	if e.txDepth > 0 {
		e.txBacklog = append(e.txBacklog, ev)
		return
	}
	for _, f := range e.observers {
		f(ev)
	}
}

// LookupByDest finds the Fte via longest-prefix match against addr.
func (e *Engine[A]) LookupByDest(addr A) (Fte[A], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.t.LookupLPM(addr.Bytes())
	if !ok {
		return Fte[A]{}, false
	}
	return v.(Fte[A]), true
}

// LookupByNet finds the Fte at exactly net.
func (e *Engine[A]) LookupByNet(net ipaddr.Prefix[A]) (Fte[A], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.t.LookupExact(net.Addr.Bytes(), net.Len)
	if !ok {
		return Fte[A]{}, false
	}
	return v.(Fte[A]), true
}

// AddEntry installs fte. Connected routes are silently skipped (never
// added by XORP); multicast/broadcast prefixes are refused; the outgoing
// interface must resolve to a live ifindex unless the route is a discard
// route.
func (e *Engine[A]) AddEntry(fte Fte[A]) error {
	if fte.IsConnected {
		return nil // silently skipped, per spec §4.3(a)
	}
	if fte.Net.Addr.IsMulticast() {
		return xerr.New(xerr.Validation, "fib.add_entry", fmt.Errorf("multicast prefix %s refused", fte.Net))
	}
	if isBroadcastPrefix(fte.Net) {
		return xerr.New(xerr.Validation, "fib.add_entry", fmt.Errorf("broadcast prefix %s refused", fte.Net))
	}
	if fte.IsDiscard {
		fte.IfName = ""
		fte.VifName = ""
	} else if fte.IfName != "" {
		if e.tree != nil && e.tree.GetIf(fte.IfName) == nil {
			return xerr.New(xerr.Policy, "fib.add_entry", fmt.Errorf("ifname %s does not resolve to a live ifindex", fte.IfName))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := fte.Net.Addr.Bytes()
	_, existed := e.t.LookupExact(key, fte.Net.Len)
	fte.IsXorpInstalled = true
	e.t.Insert(key, fte.Net.Len, fte)

	kind := EventAdded
	if existed {
		kind = EventChanged
	}
	e.notify(Event[A]{Kind: kind, Fte: fte})
	return nil
}

// DeleteEntry removes the entry at fte.Net. A delete of an absent prefix
// is a success (spec §8 FIB idempotence). ESRCH-equivalent (interface
// already gone) on a discard or admin-down target is likewise success,
// grounded on original_source's fticonfig_entry_set.cc.
func (e *Engine[A]) DeleteEntry(net ipaddr.Prefix[A]) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := net.Addr.Bytes()
	v, ok := e.t.LookupExact(key, net.Len)
	if !ok {
		return nil
	}
	fte := v.(Fte[A])
	e.t.Delete(key, net.Len)
	e.notify(Event[A]{Kind: EventRemoved, Fte: fte})
	return nil
}

// GetTable returns a consistent snapshot of every XORP-visible entry.
// pagingInProgress mirrors spec §4.3's "multipart in progress" flag.
func (e *Engine[A]) GetTable() (entries []Fte[A], pagingInProgress bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.t.Walk(func(_ []byte, _ int, value any) {
		entries = append(entries, value.(Fte[A]))
	})
	return entries, e.pagingTable
}

// SetTable deletes every XORP-owned entry not present in want, then adds
// whatever is missing (spec §4.3 "Table set").
func (e *Engine[A]) SetTable(want []Fte[A]) error {
	e.mu.Lock()
	wantKeys := make(map[string]Fte[A], len(want))
	for _, f := range want {
		wantKeys[f.Key()] = f
	}
	var toDelete []ipaddr.Prefix[A]
	e.t.Walk(func(_ []byte, _ int, value any) {
		cur := value.(Fte[A])
		if !cur.IsXorpInstalled {
			return
		}
		if _, ok := wantKeys[cur.Key()]; !ok {
			toDelete = append(toDelete, cur.Net)
		}
	})
	e.mu.Unlock()

	for _, net := range toDelete {
		if err := e.DeleteEntry(net); err != nil {
			return err
		}
	}
	for _, f := range want {
		if err := e.AddEntry(f); err != nil {
			return err
		}
	}
	return nil
}

// StartTransaction begins a batch whose set-ops appear atomically to
// observers: no notification escapes until Commit.
func (e *Engine[A]) StartTransaction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txDepth++
}

// Commit flushes the accumulated transaction events to observers. May
// reorder relative to submission order (spec §4.3).
func (e *Engine[A]) Commit() {
	e.mu.Lock()
	e.txDepth--
	var backlog []Event[A]
	if e.txDepth == 0 {
		backlog = e.txBacklog
		e.txBacklog = nil
	}
	observers := append([]func(Event[A]){}, e.observers...)
	e.mu.Unlock()

	for _, ev := range backlog {
		for _, f := range observers {
			f(ev)
		}
	}
}

// Abort discards the accumulated transaction events without delivering
// them (the mutations already applied to the table are NOT rolled back;
// callers needing rollback should snapshot GetTable before starting).
func (e *Engine[A]) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txDepth--
	if e.txDepth == 0 {
		e.txBacklog = nil
	}
}

func isBroadcastPrefix[A ipaddr.Family](net ipaddr.Prefix[A]) bool {
	if v4, ok := any(net.Addr).(ipaddr.V4); ok {
		return v4.IsBroadcast()
	}
	return false
}
