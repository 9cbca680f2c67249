// Package fib implements the FibEngine (spec §4.3, C4): whole-table and
// per-entry FIB get/set/observe, transactional, generic over address
// family the way the reference implementation's Fte<IPv4>/Fte<IPv6>
// template pair collapses into one generic parameter (spec §9).
package fib

import (
	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// Origin identifies who installed a route.
type Origin int

const (
	OriginXorp Origin = iota
	OriginConnected
	OriginStatic
	OriginRedist
)

// Fte is one forwarding-table entry (spec §3).
type Fte[A ipaddr.Family] struct {
	Net             ipaddr.Prefix[A]
	Nexthop         A
	IfName          string
	VifName         string
	Metric          uint32
	AdminDistance   uint32
	Protocol        Origin
	IsXorpInstalled bool
	IsConnected     bool
	IsDiscard       bool
	IsUnresolved    bool
}

// Key identifies an Fte by its network alone — the FIB's entry key (spec
// §4.3 "Idempotent at the (prefix) key").
func (f Fte[A]) Key() string { return f.Net.String() }
