package ncword

import (
	"math"

	"github.com/aptpost/aptpost/core/invariant"
)

// Tolerance is the smallest difference between two register values that
// counts as a change.
const Tolerance = 1e-6

// Numeric is a formatted numeric word such as X12.5 or F250.
type Numeric struct {
	state
	value    float64
	previous float64
	initial  float64
	spec     FormatSpec
}

// NewNumeric returns a numeric word rendered with spec under address. A
// new word starts flagged as changed so its first value is always emitted.
func NewNumeric(address string, spec FormatSpec, initial float64, modal bool) *Numeric {
	invariant.Finite(initial, address)
	return &Numeric{
		state:    state{address: address, modal: modal, changed: true},
		value:    initial,
		previous: initial,
		initial:  initial,
		spec:     spec.WithAddress(address),
	}
}

// Value returns the current value.
func (n *Numeric) Value() float64 { return n.value }

// Previous returns the value held before the last assignment.
func (n *Numeric) Previous() float64 { return n.previous }

// Default returns the value Reset restores.
func (n *Numeric) Default() float64 { return n.initial }

// Spec returns the format used to render the word.
func (n *Numeric) Spec() FormatSpec { return n.spec }

// SetSpec changes the format, keeping the word's address.
func (n *Numeric) SetSpec(spec FormatSpec) { n.spec = spec.WithAddress(n.address) }

// SetModal changes the modality of the word.
func (n *Numeric) SetModal(modal bool) { n.modal = modal }

// Set assigns v and flags the word when v differs from the current value
// by more than Tolerance. A pending change is never cleared by Set.
func (n *Numeric) Set(v float64) *Numeric {
	invariant.Finite(v, n.address)
	if differs(v, n.value) {
		n.changed = true
	}
	n.previous = n.value
	n.value = v
	return n
}

// SetInitial assigns v without flagging a change.
func (n *Numeric) SetInitial(v float64) {
	invariant.Finite(v, n.address)
	n.value = v
	n.previous = v
	n.changed = false
}

// Show flags the word so the next block emits it.
func (n *Numeric) Show() { n.changed = true }

// ShowIf flags the word when v differs from the current value.
func (n *Numeric) ShowIf(v float64) {
	if differs(v, n.value) {
		n.changed = true
	}
}

// Hide clears the change flag.
func (n *Numeric) Hide() { n.changed = false }

// HideIf clears the change flag when v equals the current value.
func (n *Numeric) HideIf(v float64) {
	if !differs(v, n.value) {
		n.changed = false
	}
}

// Reset restores the default value.
func (n *Numeric) Reset(markChanged bool) { n.ResetTo(n.initial, markChanged) }

// ResetTo assigns v and sets the change flag to markChanged.
func (n *Numeric) ResetTo(v float64, markChanged bool) {
	invariant.Finite(v, n.address)
	n.previous = n.value
	n.value = v
	n.changed = markChanged
}

// ValuesDiffer reports whether the last assignment changed the value.
func (n *Numeric) ValuesDiffer() bool { return differs(n.value, n.previous) }

// ValuesSame reports whether the last assignment kept the value.
func (n *Numeric) ValuesSame() bool { return !n.ValuesDiffer() }

func (n *Numeric) String() string { return n.spec.Format(n.value) }

func differs(a, b float64) bool { return math.Abs(a-b) > Tolerance }
