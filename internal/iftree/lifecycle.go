package iftree

// State is the lifecycle tag every tree node carries (spec §3), used by
// the diff/report passes to decide what changed between two pulls of the
// interface configuration.
type State int

const (
	Created State = iota
	NoChange
	Changed
	Deleted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case NoChange:
		return "no_change"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}
