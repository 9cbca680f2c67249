package iftree

// Diff is the set of mutations that would turn `from` into `to`: the basis
// for PlatformMutator.Apply (spec §4.2) and for testing that
// apply(diff(T0,T1)); apply(diff(T1,T0)) round-trips to T0 (spec §8).
type Diff struct {
	AddIfs    []string
	AddIfIndex map[string]uint32 // ifindex of each interface in AddIfs
	RemoveIfs []string
	SetMTU    map[string]uint32
	SetMAC    map[string][6]byte
	SetUp     map[string]bool
	AddVifs   []VifRef
	RemoveVifs []VifRef
	AddV4Addrs []AddrOpV4
	RemoveV4Addrs []AddrOpV4
	AddV6Addrs []AddrOpV6
	RemoveV6Addrs []AddrOpV6
}

type VifRef struct{ IfName, VifName string }

type AddrOpV4 struct {
	IfName, VifName string
	Addr            V4Addr
}

type AddrOpV6 struct {
	IfName, VifName string
	Addr            V6Addr
}

// ComputeDiff returns the mutations needed to bring `from` to match `to`.
func ComputeDiff(from, to *Tree) *Diff {
	d := &Diff{
		SetMTU: make(map[string]uint32),
		SetMAC: make(map[string][6]byte),
		SetUp:  make(map[string]bool),
		AddIfIndex: make(map[string]uint32),
	}

	for _, name := range to.sortedIfNames() {
		toIf := to.ifs[name]
		fromIf, ok := from.ifs[name]
		if !ok {
			d.AddIfs = append(d.AddIfs, name)
			d.AddIfIndex[name] = toIf.IfIndex
			fromIf = newInterface(name, toIf.IfIndex)
		}
		if fromIf.MTU != toIf.MTU {
			d.SetMTU[name] = toIf.MTU
		}
		if fromIf.MAC != toIf.MAC {
			d.SetMAC[name] = toIf.MAC
		}
		if fromIf.Flags.Up != toIf.Flags.Up {
			d.SetUp[name] = toIf.Flags.Up
		}
		diffVifs(d, name, fromIf, toIf)
	}

	for _, name := range from.sortedIfNames() {
		if _, ok := to.ifs[name]; !ok {
			d.RemoveIfs = append(d.RemoveIfs, name)
		}
	}

	return d
}

func diffVifs(d *Diff, ifname string, fromIf, toIf *Interface) {
	for _, vifname := range sortedVifNames(toIf) {
		toVif := toIf.Vifs[vifname]
		fromVif, ok := fromIf.Vifs[vifname]
		if !ok {
			d.AddVifs = append(d.AddVifs, VifRef{ifname, vifname})
			fromVif = newVif(vifname, toIf.IfIndex)
		}
		diffAddrs(d, ifname, vifname, fromVif, toVif)
	}
	for _, vifname := range sortedVifNames(fromIf) {
		if _, ok := toIf.Vifs[vifname]; !ok {
			d.RemoveVifs = append(d.RemoveVifs, VifRef{ifname, vifname})
		}
	}
}

func diffAddrs(d *Diff, ifname, vifname string, fromVif, toVif *Vif) {
	for _, addr := range sortedKeys(toVif.V4Addrs) {
		toA := *toVif.V4Addrs[addr]
		fromA, ok := fromVif.V4Addrs[addr]
		if !ok || !addrEqualV4(*fromA, toA) {
			d.AddV4Addrs = append(d.AddV4Addrs, AddrOpV4{ifname, vifname, toA})
		}
	}
	for _, addr := range sortedKeys(fromVif.V4Addrs) {
		if _, ok := toVif.V4Addrs[addr]; !ok {
			d.RemoveV4Addrs = append(d.RemoveV4Addrs, AddrOpV4{ifname, vifname, *fromVif.V4Addrs[addr]})
		}
	}
	for _, addr := range sortedKeys(toVif.V6Addrs) {
		toA := *toVif.V6Addrs[addr]
		fromA, ok := fromVif.V6Addrs[addr]
		if !ok || !addrEqualV6(*fromA, toA) {
			d.AddV6Addrs = append(d.AddV6Addrs, AddrOpV6{ifname, vifname, toA})
		}
	}
	for _, addr := range sortedKeys(fromVif.V6Addrs) {
		if _, ok := toVif.V6Addrs[addr]; !ok {
			d.RemoveV6Addrs = append(d.RemoveV6Addrs, AddrOpV6{ifname, vifname, *fromVif.V6Addrs[addr]})
		}
	}
}

// Apply mutates t in place per d, as a local/dummy mutator would; real
// kernel-backed mutators instead translate Diff into netlink/ioctl calls
// (see internal/fea/mutator).
func (d *Diff) Apply(t *Tree) {
	for _, name := range d.AddIfs {
		t.AddIf(name, d.AddIfIndex[name])
	}
	for name, mtu := range d.SetMTU {
		if ifc := t.GetIf(name); ifc != nil {
			ifc.MTU = mtu
		}
	}
	for name, mac := range d.SetMAC {
		if ifc := t.GetIf(name); ifc != nil {
			ifc.MAC = mac
		}
	}
	for name, up := range d.SetUp {
		if ifc := t.GetIf(name); ifc != nil {
			ifc.Flags.Up = up
		}
	}
	for _, ref := range d.AddVifs {
		t.AddVif(ref.IfName, ref.VifName)
	}
	for _, op := range d.AddV4Addrs {
		t.AddAddr(op.IfName, op.VifName, op.Addr)
	}
	for _, op := range d.AddV6Addrs {
		t.AddAddr6(op.IfName, op.VifName, op.Addr)
	}
	for _, op := range d.RemoveV4Addrs {
		t.RemoveAddr(op.IfName, op.VifName, op.Addr.Addr.String())
	}
	for _, op := range d.RemoveV6Addrs {
		t.RemoveAddr6(op.IfName, op.VifName, op.Addr.Addr.String())
	}
	for _, ref := range d.RemoveVifs {
		if ifc := t.GetIf(ref.IfName); ifc != nil {
			delete(ifc.Vifs, ref.VifName)
		}
	}
	for _, name := range d.RemoveIfs {
		if ifc := t.GetIf(name); ifc != nil {
			delete(t.ifindexOf, ifc.IfIndex)
		}
		delete(t.ifs, name)
	}
	t.FinalizeState()
}

// Equal reports whether a and b are structurally equal: same interfaces,
// vifs, and addresses, ignoring lifecycle State tags (which are a diffing
// aid, not part of the configuration's identity).
func Equal(a, b *Tree) bool {
	if len(a.ifs) != len(b.ifs) {
		return false
	}
	for name, ai := range a.ifs {
		bi, ok := b.ifs[name]
		if !ok || !ifEqual(ai, bi) {
			return false
		}
	}
	return true
}

func ifEqual(a, b *Interface) bool {
	if a.IfIndex != b.IfIndex || a.MAC != b.MAC || a.MTU != b.MTU ||
		a.Flags != b.Flags || a.NoCarrier != b.NoCarrier || len(a.Vifs) != len(b.Vifs) {
		return false
	}
	for name, av := range a.Vifs {
		bv, ok := b.Vifs[name]
		if !ok || !vifEqual(av, bv) {
			return false
		}
	}
	return true
}

func vifEqual(a, b *Vif) bool {
	if a.Flags != b.Flags || len(a.V4Addrs) != len(b.V4Addrs) || len(a.V6Addrs) != len(b.V6Addrs) {
		return false
	}
	for k, av := range a.V4Addrs {
		bv, ok := b.V4Addrs[k]
		if !ok || !addrEqualV4(*av, *bv) {
			return false
		}
	}
	for k, av := range a.V6Addrs {
		bv, ok := b.V6Addrs[k]
		if !ok || !addrEqualV6(*av, *bv) {
			return false
		}
	}
	return true
}
