package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"runtime"

	"github.com/vishvananda/netlink"
	"github.com/xorproute/xorpcore/internal/iftree"
)

// Netlink is the Linux AF_NETLINK backend (spec §4.2, §6 "a platform
// appropriate control channel"), grounded on original_source's
// netlink_socket.cc and fticonfig_table_observer_netlink_socket.cc: a full
// pull uses netlink.LinkList/AddrList, and subscriptions to
// RTM_NEWLINK/RTM_NEWADDR/RTM_DELADDR are fanned out as JSON-encoded
// NetlinkEvent buffers so OnAsyncEvent stays buffer-in/tree-out like every
// other backend.
type Netlink struct {
	events  chan []byte
	linkCh  chan netlink.LinkUpdate
	addrCh  chan netlink.AddrUpdate
	done    chan struct{}
}

func NewNetlink() *Netlink {
	return &Netlink{
		events: make(chan []byte, 256),
		linkCh: make(chan netlink.LinkUpdate, 64),
		addrCh: make(chan netlink.AddrUpdate, 64),
		done:   make(chan struct{}),
	}
}

func (n *Netlink) Kind() BackendKind { return BackendNetlink }

// Probe reports whether this host's kernel exposes AF_NETLINK in a way the
// library can use; only meaningful on Linux.
func (n *Netlink) Probe() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := netlink.LinkList()
	return err == nil
}

func (n *Netlink) Start(ctx context.Context) error {
	if err := netlink.LinkSubscribe(n.linkCh, n.done); err != nil {
		return fmt.Errorf("observer/netlink: link subscribe: %w", err)
	}
	if err := netlink.AddrSubscribe(n.addrCh, n.done); err != nil {
		return fmt.Errorf("observer/netlink: addr subscribe: %w", err)
	}
	go n.pump(ctx)
	return nil
}

func (n *Netlink) pump(ctx context.Context) {
	defer close(n.events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case u, ok := <-n.linkCh:
			if !ok {
				return
			}
			n.emitLink(u)
		case u, ok := <-n.addrCh:
			if !ok {
				return
			}
			n.emitAddr(u)
		}
	}
}

func (n *Netlink) emitLink(u netlink.LinkUpdate) {
	attrs := u.Link.Attrs()
	ev := netlinkEvent{
		Op:      "link",
		IfName:  attrs.Name,
		IfIndex: uint32(attrs.Index),
		MTU:     uint32(attrs.MTU),
		Up:      attrs.Flags&net.FlagUp != 0,
		Removed: u.Header.Type == 17, // RTM_DELLINK
	}
	if attrs.HardwareAddr != nil && len(attrs.HardwareAddr) == 6 {
		copy(ev.MAC[:], attrs.HardwareAddr)
	}
	buf, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case n.events <- buf:
	default:
	}
}

func (n *Netlink) emitAddr(u netlink.AddrUpdate) {
	ones, _ := u.LinkAddress.Mask.Size()
	ev := netlinkEvent{
		Op:        "addr",
		IfIndex:   uint32(u.LinkIndex),
		Addr:      u.LinkAddress.IP.String(),
		PrefixLen: ones,
		Removed:   !u.NewAddr,
	}
	buf, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case n.events <- buf:
	default:
	}
}

func (n *Netlink) Stop() error {
	close(n.done)
	return nil
}

func (n *Netlink) Events() <-chan []byte { return n.events }

// netlinkEvent is the wire shape handed to OnAsyncEvent: deliberately
// platform-free (plain strings/ints), so the tree never sees a
// vishvananda/netlink type.
type netlinkEvent struct {
	Op        string
	IfName    string
	IfIndex   uint32
	MTU       uint32
	MAC       [6]byte
	Up        bool
	Removed   bool
	Addr      string
	PrefixLen int
}

func (n *Netlink) PullConfig(tree *iftree.Tree) error {
	links, err := netlink.LinkList()
	if err != nil {
		return fmt.Errorf("observer/netlink: list links: %w", err)
	}
	for _, l := range links {
		a := l.Attrs()
		ifc := tree.AddIf(a.Name, uint32(a.Index))
		ifc.MTU = uint32(a.MTU)
		ifc.Flags.Up = a.Flags&net.FlagUp != 0
		ifc.Flags.Broadcast = a.Flags&net.FlagBroadcast != 0
		ifc.Flags.Loopback = a.Flags&net.FlagLoopback != 0
		ifc.Flags.Multicast = a.Flags&net.FlagMulticast != 0
		ifc.Flags.PointToPoint = a.Flags&net.FlagPointToPoint != 0
		if len(a.HardwareAddr) == 6 {
			copy(ifc.MAC[:], a.HardwareAddr)
		}
		tree.AddVif(a.Name, a.Name) // one default vif per interface

		addrs, err := netlink.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			return fmt.Errorf("observer/netlink: list addrs for %s: %w", a.Name, err)
		}
		for _, ad := range addrs {
			ip, ok := netip.AddrFromSlice(ad.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			ones, _ := ad.Mask.Size()
			if ip.Is4() {
				tree.AddAddr(a.Name, a.Name, iftree.V4Addr{
					Addr:      ip,
					PrefixLen: ones,
					Enabled:   true,
				})
			} else {
				tree.AddAddr6(a.Name, a.Name, iftree.V6Addr{
					Addr:      ip,
					PrefixLen: ones,
					Enabled:   true,
				})
			}
		}
	}
	return nil
}

func (n *Netlink) OnAsyncEvent(tree *iftree.Tree, buf []byte) error {
	var ev netlinkEvent
	if err := json.Unmarshal(buf, &ev); err != nil {
		return fmt.Errorf("observer/netlink: decode event: %w", err)
	}
	switch ev.Op {
	case "link":
		if ev.Removed {
			tree.RemoveIf(ev.IfName)
			return nil
		}
		ifc := tree.AddIf(ev.IfName, ev.IfIndex)
		ifc.MTU = ev.MTU
		ifc.MAC = ev.MAC
		ifc.Flags.Up = ev.Up
		tree.AddVif(ev.IfName, ev.IfName)
	case "addr":
		ifname, ok := tree.IfByIndex(ev.IfIndex)
		if !ok {
			return fmt.Errorf("observer/netlink: unknown ifindex %d for address event", ev.IfIndex)
		}
		addr, err := netip.ParseAddr(ev.Addr)
		if err != nil {
			return fmt.Errorf("observer/netlink: bad address %q: %w", ev.Addr, err)
		}
		if ev.Removed {
			if addr.Is4() {
				tree.RemoveAddr(ifname, ifname, addr.String())
			} else {
				tree.RemoveAddr6(ifname, ifname, addr.String())
			}
			return nil
		}
		if addr.Is4() {
			tree.AddAddr(ifname, ifname, iftree.V4Addr{Addr: addr, PrefixLen: ev.PrefixLen, Enabled: true})
		} else {
			tree.AddAddr6(ifname, ifname, iftree.V6Addr{Addr: addr, PrefixLen: ev.PrefixLen, Enabled: true})
		}
	default:
		return fmt.Errorf("observer/netlink: unknown event op %q", ev.Op)
	}
	return nil
}
