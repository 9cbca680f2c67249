// Package mutator defines the PlatformMutator boundary (spec §4.2, C3):
// given a pulled tree and a desired tree, compute and apply the diff
// (add/remove interfaces, set MTU/MAC, add/remove addresses, bring
// up/down), accumulating errors on a typed reporter that preserves the
// first error and a count, per spec §7.
package mutator

import (
	"github.com/xorproute/xorpcore/internal/iftree"
)

// ErrorReporter accumulates mutator errors without aborting the rest of
// the diff application: first_error and count are preserved, matching
// spec §4.2 "Errors are accumulated on a typed error reporter with
// first-error and count preserved."
type ErrorReporter struct {
	first error
	count int
}

func (r *ErrorReporter) Report(err error) {
	if err == nil {
		return
	}
	if r.first == nil {
		r.first = err
	}
	r.count++
}

func (r *ErrorReporter) FirstError() error { return r.first }
func (r *ErrorReporter) Count() int        { return r.count }
func (r *ErrorReporter) HasErrors() bool   { return r.count > 0 }

// Mutator is the PlatformMutator contract.
type Mutator interface {
	// Apply computes the diff between pulled and desired and pushes it
	// into the kernel (or, for Dummy, into pulled in place), reporting any
	// per-operation failures on rep.
	Apply(pulled, desired *iftree.Tree, rep *ErrorReporter)
}

// Dummy applies the diff directly to the in-memory pulled tree — the
// always-available backend tests exercise, grounded on
// original_source's fticonfig_entry_set_dummy.cc.
type Dummy struct{}

func (Dummy) Apply(pulled, desired *iftree.Tree, rep *ErrorReporter) {
	diff := iftree.ComputeDiff(pulled, desired)
	diff.Apply(pulled)
	_ = rep // the dummy backend never fails an operation
}
