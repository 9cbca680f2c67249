package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/xorproute/xorpcore/internal/iftree"
)

// Dummy is the always-available, never-fails backend used by tests (spec
// §4.2 "A dummy backend is always available for tests"), grounded on
// original_source's ifconfig_get_dummy.cc / fticonfig_table_observer_dummy.cc:
// it holds an in-memory tree that test code mutates directly and replays
// through OnAsyncEvent as JSON-encoded tree-update events.
type Dummy struct {
	seed *iftree.Tree
}

// NewDummy seeds the backend with the tree a test wants PullConfig to
// return.
func NewDummy(seed *iftree.Tree) *Dummy {
	if seed == nil {
		seed = iftree.New()
	}
	return &Dummy{seed: seed}
}

func (d *Dummy) Kind() BackendKind { return BackendDummy }
func (d *Dummy) Probe() bool       { return true }
func (d *Dummy) Start(ctx context.Context) error { return nil }
func (d *Dummy) Stop() error                     { return nil }

func (d *Dummy) PullConfig(tree *iftree.Tree) error {
	diff := iftree.ComputeDiff(tree, d.seed)
	diff.Apply(tree)
	return nil
}

// DummyEvent is the buffer format OnAsyncEvent expects: a JSON-encoded
// description of a single interface/vif/address mutation, used by tests
// to simulate an asynchronous kernel notification without a real socket.
type DummyEvent struct {
	Op      string // "add_if", "remove_if", "add_vif", "add_addr4", "remove_addr4", "set_up"
	IfName  string
	VifName string
	IfIndex uint32
	Addr    string
	PrefixLen int
	Up      bool
}

// Events returns nil: tests drive Dummy directly via OnAsyncEvent rather
// than through a background channel.
func (d *Dummy) Events() <-chan []byte { return nil }

func (d *Dummy) OnAsyncEvent(tree *iftree.Tree, buf []byte) error {
	var ev DummyEvent
	if err := json.Unmarshal(buf, &ev); err != nil {
		return fmt.Errorf("observer/dummy: decode event: %w", err)
	}
	switch ev.Op {
	case "add_if":
		tree.AddIf(ev.IfName, ev.IfIndex)
	case "remove_if":
		tree.RemoveIf(ev.IfName)
	case "add_vif":
		tree.AddVif(ev.IfName, ev.VifName)
	case "add_addr4":
		addr, err := netip.ParseAddr(ev.Addr)
		if err != nil {
			return fmt.Errorf("observer/dummy: bad address %q: %w", ev.Addr, err)
		}
		tree.AddAddr(ev.IfName, ev.VifName, iftree.V4Addr{Addr: addr, PrefixLen: ev.PrefixLen, Enabled: true})
	case "remove_addr4":
		tree.RemoveAddr(ev.IfName, ev.VifName, ev.Addr)
	case "set_up":
		if ifc := tree.GetIf(ev.IfName); ifc != nil {
			ifc.Flags.Up = ev.Up
		}
	default:
		return fmt.Errorf("observer/dummy: unknown op %q", ev.Op)
	}
	return nil
}
