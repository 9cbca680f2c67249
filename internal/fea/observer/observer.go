// Package observer defines the PlatformObserver boundary (spec §4.2, C2):
// a polymorphic contract with one concrete implementation per platform
// backend, all producing InterfaceTree mutations from platform-specific
// buffers without ever leaking a platform type into the tree.
//
// The reference implementation's deep NetlinkSocketObserver /
// RoutingSocketObserver / SelectorListObserver inheritance chain (spec §9)
// collapses here to a single BackendKind enum plus one Observer
// implementation per kind, selected by a registry.
package observer

import (
	"context"

	"github.com/xorproute/xorpcore/internal/iftree"
)

// BackendKind tags which platform mechanism an Observer/Mutator pair uses.
type BackendKind int

const (
	BackendDummy BackendKind = iota
	BackendNetlink
	BackendRoutingSocket
	BackendGetifaddrs
	BackendIfreq
)

func (k BackendKind) String() string {
	switch k {
	case BackendDummy:
		return "dummy"
	case BackendNetlink:
		return "netlink"
	case BackendRoutingSocket:
		return "routing_socket"
	case BackendGetifaddrs:
		return "getifaddrs"
	case BackendIfreq:
		return "ifreq"
	default:
		return "unknown"
	}
}

// Role is whether a backend is the authoritative source (Primary) or a
// parallel applier such as a userland dataplane (Secondary).
type Role int

const (
	Primary Role = iota
	Secondary
)

// Observer is the PlatformObserver contract (spec §4.2).
type Observer interface {
	Kind() BackendKind
	// Start begins watching for asynchronous kernel events. It must be
	// idempotent to call once the observer is already started.
	Start(ctx context.Context) error
	Stop() error
	// PullConfig does a full re-read of the platform's interface/address
	// state into tree.
	PullConfig(tree *iftree.Tree) error
	// OnAsyncEvent parses a single platform event buffer and mutates tree.
	// Parsing is buffer-in / tree-out: no platform type ever appears on
	// tree.
	OnAsyncEvent(tree *iftree.Tree, buf []byte) error
	// Events yields raw platform event buffers pushed after Start; the
	// owning manager drains it and feeds each buffer to OnAsyncEvent
	// against its single-writer tree. Closed once Stop completes.
	Events() <-chan []byte
	// Probe reports whether this backend is usable on the current host.
	Probe() bool
}

// Registry maps BackendKind to its Observer instance and records which
// role (primary/secondary) each was assigned at startup.
type Registry struct {
	observers map[BackendKind]Observer
	roles     map[BackendKind]Role
	primary   BackendKind
}

func NewRegistry() *Registry {
	return &Registry{
		observers: make(map[BackendKind]Observer),
		roles:     make(map[BackendKind]Role),
	}
}

func (r *Registry) Register(o Observer) {
	r.observers[o.Kind()] = o
}

// SelectBackend probes every registered backend from lowest to highest
// priority (dummy, ifreq, getifaddrs, routing_socket, netlink, per
// original_source's fea_data_plane_manager.cc) and assigns the last
// successfully-probed backend, i.e. the highest-priority one, as primary;
// the rest become secondary. An explicit override skips probing and forces
// that kind to primary. The dummy backend always probes successfully, so
// it is chosen when it is registered and nothing else probes.
func (r *Registry) SelectBackend(override BackendKind, hasOverride bool) (BackendKind, error) {
	if hasOverride {
		if _, ok := r.observers[override]; !ok {
			return 0, errUnregisteredBackend(override)
		}
		r.primary = override
		for k := range r.observers {
			if k == override {
				r.roles[k] = Primary
			} else {
				r.roles[k] = Secondary
			}
		}
		return override, nil
	}

	priority := []BackendKind{BackendDummy, BackendIfreq, BackendGetifaddrs, BackendRoutingSocket, BackendNetlink}
	var chosen BackendKind
	found := false
	for _, kind := range priority {
		o, ok := r.observers[kind]
		if !ok {
			continue
		}
		if o.Probe() {
			chosen = kind
			found = true
		}
	}
	if !found {
		return 0, errNoBackend
	}
	r.primary = chosen
	for k := range r.observers {
		if k == chosen {
			r.roles[k] = Primary
		} else {
			r.roles[k] = Secondary
		}
	}
	return chosen, nil
}

func (r *Registry) Primary() (Observer, bool) {
	o, ok := r.observers[r.primary]
	return o, ok
}

func (r *Registry) RoleOf(kind BackendKind) (Role, bool) {
	role, ok := r.roles[kind]
	return role, ok
}

func (r *Registry) All() map[BackendKind]Observer { return r.observers }
