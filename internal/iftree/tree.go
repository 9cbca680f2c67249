// Package iftree is the canonical in-memory model of interfaces, vifs, and
// addresses (spec §3, §4.1). It is a pure value type with structural
// equality; the tree is single-writer, and readers take a snapshot that is
// an independent deep copy (nodes are not shared copy-on-write).
package iftree

import (
	"net/netip"
)

// InterfaceFlags are the operational flags carried by an Interface or Vif.
type InterfaceFlags struct {
	Up        bool
	Broadcast bool
	Loopback  bool
	PointToPoint bool
	Multicast bool
}

// V4Addr is one IPv4 address configured on a Vif.
type V4Addr struct {
	Addr      netip.Addr
	PrefixLen int
	Broadcast netip.Addr // valid iff Flags.Broadcast
	Peer      netip.Addr // valid iff Flags.PointToPoint
	Enabled   bool
	Flags     InterfaceFlags
	State     State
}

// V6Addr is one IPv6 address configured on a Vif.
type V6Addr struct {
	Addr      netip.Addr
	PrefixLen int
	Peer      netip.Addr
	Enabled   bool
	Flags     InterfaceFlags
	State     State
}

// Vif is one virtual interface (a sub-interface of an Interface) and the
// addresses configured on it.
type Vif struct {
	Name    string
	IfIndex uint32
	Flags   InterfaceFlags
	V4Addrs map[string]*V4Addr // keyed by Addr.String()
	V6Addrs map[string]*V6Addr
	State   State
}

func newVif(name string, ifindex uint32) *Vif {
	return &Vif{
		Name:    name,
		IfIndex: ifindex,
		V4Addrs: make(map[string]*V4Addr),
		V6Addrs: make(map[string]*V6Addr),
		State:   Created,
	}
}

func (v *Vif) clone() *Vif {
	nv := *v
	nv.V4Addrs = make(map[string]*V4Addr, len(v.V4Addrs))
	for k, a := range v.V4Addrs {
		cp := *a
		nv.V4Addrs[k] = &cp
	}
	nv.V6Addrs = make(map[string]*V6Addr, len(v.V6Addrs))
	for k, a := range v.V6Addrs {
		cp := *a
		nv.V6Addrs[k] = &cp
	}
	return &nv
}

// Interface is one physical or virtual network device.
type Interface struct {
	Name      string
	IfIndex   uint32
	MAC       [6]byte
	MTU       uint32
	Flags     InterfaceFlags
	NoCarrier bool
	Vifs      map[string]*Vif
	State     State
}

func newInterface(name string, ifindex uint32) *Interface {
	return &Interface{
		Name:    name,
		IfIndex: ifindex,
		Vifs:    make(map[string]*Vif),
		State:   Created,
	}
}

func (i *Interface) clone() *Interface {
	ni := *i
	ni.Vifs = make(map[string]*Vif, len(i.Vifs))
	for k, v := range i.Vifs {
		ni.Vifs[k] = v.clone()
	}
	return &ni
}

// Tree is the mapping ifname → Interface (spec §3). Construct one with
// New; the zero value has nil maps and cannot be written to.
type Tree struct {
	ifs       map[string]*Interface
	ifindexOf map[uint32]string // ifindex ↔ ifname, maintained atomically with ifs
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		ifs:       make(map[string]*Interface),
		ifindexOf: make(map[uint32]string),
	}
}

// Snapshot returns an independent copy of the tree. Every interface, vif
// and address is cloned eagerly; no node is shared with the original, and
// the cost grows with the size of the tree.
func (t *Tree) Snapshot() *Tree {
	nt := New()
	for name, ifc := range t.ifs {
		nt.ifs[name] = ifc.clone()
	}
	for idx, name := range t.ifindexOf {
		nt.ifindexOf[idx] = name
	}
	return nt
}

// AddIf inserts or returns the existing Interface named name.
func (t *Tree) AddIf(name string, ifindex uint32) *Interface {
	if ifc, ok := t.ifs[name]; ok {
		return ifc
	}
	ifc := newInterface(name, ifindex)
	t.ifs[name] = ifc
	if ifindex != 0 {
		t.ifindexOf[ifindex] = name
	}
	return ifc
}

// RemoveIf marks the interface (and, cascading, all its vifs/addresses)
// Deleted. FinalizeState later drops it from the map.
func (t *Tree) RemoveIf(name string) bool {
	ifc, ok := t.ifs[name]
	if !ok {
		return false
	}
	ifc.State = Deleted
	for _, v := range ifc.Vifs {
		v.State = Deleted
		for _, a := range v.V4Addrs {
			a.State = Deleted
		}
		for _, a := range v.V6Addrs {
			a.State = Deleted
		}
	}
	return true
}

// GetIf returns the named interface, or nil.
func (t *Tree) GetIf(name string) *Interface { return t.ifs[name] }

// IfByIndex resolves ifindex to the live interface name.
func (t *Tree) IfByIndex(ifindex uint32) (string, bool) {
	name, ok := t.ifindexOf[ifindex]
	return name, ok
}

// GetVif returns the named vif under ifname, or nil.
func (t *Tree) GetVif(ifname, vifname string) *Vif {
	ifc := t.ifs[ifname]
	if ifc == nil {
		return nil
	}
	return ifc.Vifs[vifname]
}

// AddVif inserts or returns the existing vif (ifname,vifname). The parent
// interface must already exist.
func (t *Tree) AddVif(ifname, vifname string) *Vif {
	ifc := t.ifs[ifname]
	if ifc == nil {
		return nil
	}
	if v, ok := ifc.Vifs[vifname]; ok {
		return v
	}
	v := newVif(vifname, ifc.IfIndex)
	ifc.Vifs[vifname] = v
	return v
}

// AddAddr installs or updates a v4 address on (ifname,vifname).
func (t *Tree) AddAddr(ifname, vifname string, a V4Addr) bool {
	v := t.GetVif(ifname, vifname)
	if v == nil {
		return false
	}
	key := a.Addr.String()
	if existing, ok := v.V4Addrs[key]; ok {
		if addrEqualV4(*existing, a) {
			existing.State = NoChange
		} else {
			a.State = Changed
			v.V4Addrs[key] = &a
		}
		return true
	}
	a.State = Created
	v.V4Addrs[key] = &a
	return true
}

// AddAddr6 installs or updates a v6 address on (ifname,vifname).
func (t *Tree) AddAddr6(ifname, vifname string, a V6Addr) bool {
	v := t.GetVif(ifname, vifname)
	if v == nil {
		return false
	}
	key := a.Addr.String()
	if existing, ok := v.V6Addrs[key]; ok {
		if addrEqualV6(*existing, a) {
			existing.State = NoChange
		} else {
			a.State = Changed
			v.V6Addrs[key] = &a
		}
		return true
	}
	a.State = Created
	v.V6Addrs[key] = &a
	return true
}

// RemoveAddr marks a v4 address Deleted.
func (t *Tree) RemoveAddr(ifname, vifname, addr string) bool {
	v := t.GetVif(ifname, vifname)
	if v == nil {
		return false
	}
	a, ok := v.V4Addrs[addr]
	if !ok {
		return false
	}
	a.State = Deleted
	return true
}

// RemoveAddr6 marks a v6 address Deleted.
func (t *Tree) RemoveAddr6(ifname, vifname, addr string) bool {
	v := t.GetVif(ifname, vifname)
	if v == nil {
		return false
	}
	a, ok := v.V6Addrs[addr]
	if !ok {
		return false
	}
	a.State = Deleted
	return true
}

func addrEqualV4(a, b V4Addr) bool {
	return a.Addr == b.Addr && a.PrefixLen == b.PrefixLen &&
		a.Broadcast == b.Broadcast && a.Peer == b.Peer &&
		a.Enabled == b.Enabled && a.Flags == b.Flags
}

func addrEqualV6(a, b V6Addr) bool {
	return a.Addr == b.Addr && a.PrefixLen == b.PrefixLen &&
		a.Peer == b.Peer && a.Enabled == b.Enabled && a.Flags == b.Flags
}

// FinalizeState collapses NoChange children and drops cascading deletes:
// any address/vif/interface still tagged Deleted is removed from the map
// entirely, and any node untouched this pass keeps NoChange (rather than
// lingering as Created/Changed) so the next pull starts from a clean
// baseline.
func (t *Tree) FinalizeState() {
	for ifname, ifc := range t.ifs {
		for vifname, v := range ifc.Vifs {
			for addr, a := range v.V4Addrs {
				if a.State == Deleted {
					delete(v.V4Addrs, addr)
					continue
				}
				a.State = NoChange
			}
			for addr, a := range v.V6Addrs {
				if a.State == Deleted {
					delete(v.V6Addrs, addr)
					continue
				}
				a.State = NoChange
			}
			if v.State == Deleted {
				delete(ifc.Vifs, vifname)
				continue
			}
			v.State = NoChange
		}
		if ifc.State == Deleted {
			delete(t.ifs, ifname)
			delete(t.ifindexOf, ifc.IfIndex)
			continue
		}
		ifc.State = NoChange
	}
}

// Sink receives report_updates callbacks in topological order: interfaces
// before their vifs before their addresses, terminated by UpdatesCompleted
// so consumers can batch the wave of changes (spec §5).
type Sink interface {
	InterfaceUpdate(ifname string, ifc *Interface)
	VifUpdate(ifname, vifname string, v *Vif)
	VifAddrUpdate(ifname, vifname, addr string, a any)
	UpdatesCompleted()
}

// ReportUpdates walks every changed node (anything not NoChange) and
// invokes the matching Sink callback, interfaces-then-vifs-then-addresses,
// then a single UpdatesCompleted.
func (t *Tree) ReportUpdates(sink Sink) {
	// Sorted walk keeps output order deterministic for tests, though the
	// spec only requires the topological ordering between levels.
	for _, ifname := range t.sortedIfNames() {
		ifc := t.ifs[ifname]
		if ifc.State != NoChange {
			sink.InterfaceUpdate(ifname, ifc)
		}
		for _, vifname := range sortedVifNames(ifc) {
			v := ifc.Vifs[vifname]
			if v.State != NoChange {
				sink.VifUpdate(ifname, vifname, v)
			}
			for _, addr := range sortedKeys(v.V4Addrs) {
				a := v.V4Addrs[addr]
				if a.State != NoChange {
					sink.VifAddrUpdate(ifname, vifname, addr, a)
				}
			}
			for _, addr := range sortedKeys(v.V6Addrs) {
				a := v.V6Addrs[addr]
				if a.State != NoChange {
					sink.VifAddrUpdate(ifname, vifname, addr, a)
				}
			}
		}
	}
	sink.UpdatesCompleted()
}

func (t *Tree) sortedIfNames() []string {
	out := make([]string, 0, len(t.ifs))
	for name := range t.ifs {
		out = append(out, name)
	}
	sortStrings(out)
	return out
}

func sortedVifNames(ifc *Interface) []string {
	out := make([]string, 0, len(ifc.Vifs))
	for name := range ifc.Vifs {
		out = append(out, name)
	}
	sortStrings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

// sortStrings is a tiny insertion sort; node counts per tree are small.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Interfaces returns the names of every interface currently in the tree
// (excluding anything pending deletion).
func (t *Tree) Interfaces() []string {
	var out []string
	for _, name := range t.sortedIfNames() {
		if t.ifs[name].State != Deleted {
			out = append(out, name)
		}
	}
	return out
}
