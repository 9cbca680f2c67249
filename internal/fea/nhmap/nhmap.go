// Package nhmap implements the NexthopPortMapper (spec §4.4, C5): four
// disjoint mappings — by (ifname,vifname), by host v4 address, by host v6
// address, by prefix — each resolving to a dataplane port number, tried in
// that order with first-hit-wins.
package nhmap

import (
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

type vifKey struct{ IfName, VifName string }

// Mapper holds the four mappings and notifies on_mapping_changed whenever
// any of them is mutated.
type Mapper struct {
	byVif    map[vifKey]uint32
	byHostV4 map[ipaddr.V4]uint32
	byHostV6 map[ipaddr.V6]uint32
	byPrefix map[string]uint32 // keyed by Prefix.String(); family-agnostic
	onChange func(changed bool)
}

func New() *Mapper {
	return &Mapper{
		byVif:    make(map[vifKey]uint32),
		byHostV4: make(map[ipaddr.V4]uint32),
		byHostV6: make(map[ipaddr.V6]uint32),
		byPrefix: make(map[string]uint32),
	}
}

// OnMappingChanged registers the callback fired after any Set/Remove
// mutates the mapper. changed reports whether the mutation actually
// altered a resolved port (vs. e.g. removing an absent key).
func (m *Mapper) OnMappingChanged(f func(changed bool)) { m.onChange = f }

func (m *Mapper) fire(changed bool) {
	if m.onChange != nil {
		m.onChange(changed)
	}
}

func (m *Mapper) SetVifPort(ifname, vifname string, port uint32) {
	k := vifKey{ifname, vifname}
	old, existed := m.byVif[k]
	m.byVif[k] = port
	m.fire(!existed || old != port)
}

func (m *Mapper) RemoveVifPort(ifname, vifname string) {
	k := vifKey{ifname, vifname}
	_, existed := m.byVif[k]
	delete(m.byVif, k)
	m.fire(existed)
}

func (m *Mapper) SetHostV4Port(addr ipaddr.V4, port uint32) {
	old, existed := m.byHostV4[addr]
	m.byHostV4[addr] = port
	m.fire(!existed || old != port)
}

func (m *Mapper) RemoveHostV4Port(addr ipaddr.V4) {
	_, existed := m.byHostV4[addr]
	delete(m.byHostV4, addr)
	m.fire(existed)
}

func (m *Mapper) SetHostV6Port(addr ipaddr.V6, port uint32) {
	old, existed := m.byHostV6[addr]
	m.byHostV6[addr] = port
	m.fire(!existed || old != port)
}

func (m *Mapper) RemoveHostV6Port(addr ipaddr.V6) {
	_, existed := m.byHostV6[addr]
	delete(m.byHostV6, addr)
	m.fire(existed)
}

func (m *Mapper) SetPrefixPort(prefix string, port uint32) {
	old, existed := m.byPrefix[prefix]
	m.byPrefix[prefix] = port
	m.fire(!existed || old != port)
}

func (m *Mapper) RemovePrefixPort(prefix string) {
	_, existed := m.byPrefix[prefix]
	delete(m.byPrefix, prefix)
	m.fire(existed)
}

// LookupVif resolves by (ifname,vifname) — tried first.
func (m *Mapper) LookupVif(ifname, vifname string) (uint32, bool) {
	p, ok := m.byVif[vifKey{ifname, vifname}]
	return p, ok
}

// LookupHostV4 resolves by host v4 address — tried second.
func (m *Mapper) LookupHostV4(addr ipaddr.V4) (uint32, bool) {
	p, ok := m.byHostV4[addr]
	return p, ok
}

// LookupHostV6 resolves by host v6 address — tried third.
func (m *Mapper) LookupHostV6(addr ipaddr.V6) (uint32, bool) {
	p, ok := m.byHostV6[addr]
	return p, ok
}

// LookupPrefix resolves by prefix — tried last.
func (m *Mapper) LookupPrefix(prefix string) (uint32, bool) {
	p, ok := m.byPrefix[prefix]
	return p, ok
}

// Resolve tries all four mappings in the listed order — (ifname,vifname)
// if ifname is set, hostV4/hostV6 (if set), and prefix (if set) —
// returning the first hit.
func (m *Mapper) Resolve(ifname, vifname string, hostV4 *ipaddr.V4, hostV6 *ipaddr.V6, prefix string) (uint32, bool) {
	if ifname != "" {
		if p, ok := m.LookupVif(ifname, vifname); ok {
			return p, true
		}
	}
	if hostV4 != nil {
		if p, ok := m.LookupHostV4(*hostV4); ok {
			return p, true
		}
	}
	if hostV6 != nil {
		if p, ok := m.LookupHostV6(*hostV6); ok {
			return p, true
		}
	}
	if prefix != "" {
		if p, ok := m.LookupPrefix(prefix); ok {
			return p, true
		}
	}
	return 0, false
}
