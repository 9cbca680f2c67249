package mutator

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/vishvananda/netlink"
	"github.com/xorproute/xorpcore/internal/iftree"
)

// Netlink pushes an iftree.Diff into the kernel via rtnetlink calls,
// grounded on original_source's fticonfig_entry_set_netlink.cc /
// ifconfig_set_click.cc's style of "one syscall per leaf operation,
// errors accumulated rather than aborting the whole apply".
type Netlink struct{}

func (Netlink) Apply(pulled, desired *iftree.Tree, rep *ErrorReporter) {
	diff := iftree.ComputeDiff(pulled, desired)

	for name, mtu := range diff.SetMTU {
		link, err := netlink.LinkByName(name)
		if err != nil {
			rep.Report(fmt.Errorf("mutator/netlink: lookup %s for MTU: %w", name, err))
			continue
		}
		if err := netlink.LinkSetMTU(link, int(mtu)); err != nil {
			rep.Report(fmt.Errorf("mutator/netlink: set MTU on %s: %w", name, err))
		}
	}

	for name, up := range diff.SetUp {
		link, err := netlink.LinkByName(name)
		if err != nil {
			rep.Report(fmt.Errorf("mutator/netlink: lookup %s for up/down: %w", name, err))
			continue
		}
		var opErr error
		if up {
			opErr = netlink.LinkSetUp(link)
		} else {
			opErr = netlink.LinkSetDown(link)
		}
		if opErr != nil {
			rep.Report(fmt.Errorf("mutator/netlink: set up=%v on %s: %w", up, name, opErr))
		}
	}

	for name, mac := range diff.SetMAC {
		link, err := netlink.LinkByName(name)
		if err != nil {
			rep.Report(fmt.Errorf("mutator/netlink: lookup %s for MAC: %w", name, err))
			continue
		}
		if err := netlink.LinkSetHardwareAddr(link, net.HardwareAddr(mac[:])); err != nil {
			rep.Report(fmt.Errorf("mutator/netlink: set MAC on %s: %w", name, err))
		}
	}

	for _, op := range diff.AddV4Addrs {
		applyAddr(rep, op.IfName, op.Addr.Addr, op.Addr.PrefixLen, false)
	}
	for _, op := range diff.RemoveV4Addrs {
		applyAddr(rep, op.IfName, op.Addr.Addr, op.Addr.PrefixLen, true)
	}
	for _, op := range diff.AddV6Addrs {
		applyAddr(rep, op.IfName, op.Addr.Addr, op.Addr.PrefixLen, false)
	}
	for _, op := range diff.RemoveV6Addrs {
		applyAddr(rep, op.IfName, op.Addr.Addr, op.Addr.PrefixLen, true)
	}
}

func applyAddr(rep *ErrorReporter, ifname string, addr netip.Addr, prefixLen int, remove bool) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		rep.Report(fmt.Errorf("mutator/netlink: lookup %s for address op: %w", ifname, err))
		return
	}
	ip := net.ParseIP(addr.String())
	if ip == nil {
		rep.Report(fmt.Errorf("mutator/netlink: bad address %q on %s", addr.String(), ifname))
		return
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: net.CIDRMask(prefixLen, bits)}}
	if remove {
		if err := netlink.AddrDel(link, nlAddr); err != nil {
			// ESRCH on an administratively-down interface is success, per
			// spec §7's PlatformError handling.
			if isESRCH(err) && !isLinkUp(link) {
				return
			}
			rep.Report(fmt.Errorf("mutator/netlink: delete address %s on %s: %w", addr.String(), ifname, err))
		}
		return
	}
	if err := netlink.AddrAdd(link, nlAddr); err != nil {
		rep.Report(fmt.Errorf("mutator/netlink: add address %s on %s: %w", addr.String(), ifname, err))
	}
}

func isLinkUp(link netlink.Link) bool {
	return link.Attrs().Flags&net.FlagUp != 0
}

func isESRCH(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
