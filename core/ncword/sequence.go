package ncword

import (
	"strconv"

	"github.com/aptpost/aptpost/core/invariant"
)

// Sequence is an integer counter word, typically the N block number. It
// advances by its step every time Token reads it.
type Sequence struct {
	state
	value  int
	start  int
	step   int
	suffix string
}

// NewSequence returns a non-modal counter rendered as address+value.
func NewSequence(address string, start, step int) *Sequence {
	invariant.Precondition(step != 0, "sequence step must not be zero")
	return &Sequence{
		state: state{address: address, changed: true},
		value: start,
		start: start,
		step:  step,
	}
}

// Value returns the number the next token will carry.
func (s *Sequence) Value() int { return s.value }

// Step returns the increment applied after each emission.
func (s *Sequence) Step() int { return s.step }

// SetSuffix sets text written after the number.
func (s *Sequence) SetSuffix(suffix string) *Sequence {
	s.suffix = suffix
	return s
}

// SetModal changes the modality of the counter.
func (s *Sequence) SetModal(modal bool) *Sequence {
	s.modal = modal
	return s
}

// SetValue jumps to v and flags the word when v differs.
func (s *Sequence) SetValue(v int) {
	if v != s.value {
		s.changed = true
	}
	s.value = v
}

// Increment advances the counter by its step.
func (s *Sequence) Increment() {
	s.value += s.step
	s.changed = true
}

// Reset returns the counter to its start value.
func (s *Sequence) Reset() {
	s.value = s.start
	s.changed = true
}

// ResetTo restarts the counter at v.
func (s *Sequence) ResetTo(v int) {
	s.value = v
	s.changed = true
}

func (s *Sequence) String() string {
	return s.address + strconv.Itoa(s.value) + s.suffix
}
