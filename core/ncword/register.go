package ncword

import (
	"iter"
	"strings"

	"github.com/aptpost/aptpost/core/invariant"
)

// Register is a named numeric word owned by a RegisterSet.
type Register = Numeric

// Default formats for well-known addresses.
var (
	CoordinateFormat = MustParseFormatSpec("{-0000!0##}")
	FeedFormat       = MustParseFormatSpec("{-###.0}")
	IntegerFormat    = MustParseFormatSpec("{-#####}")
)

type registerDefault struct {
	spec  FormatSpec
	modal bool
}

var wellKnown = map[string]registerDefault{
	"X": {CoordinateFormat, true},
	"Y": {CoordinateFormat, true},
	"Z": {CoordinateFormat, true},
	"A": {CoordinateFormat, true},
	"B": {CoordinateFormat, true},
	"C": {CoordinateFormat, true},
	"I": {CoordinateFormat, true},
	"J": {CoordinateFormat, true},
	"K": {CoordinateFormat, true},
	"R": {CoordinateFormat, true},
	"F": {FeedFormat, true},
	"S": {IntegerFormat, true},
	"T": {IntegerFormat, true},
}

// RegisterSet owns the registers of one post-processing run. Each name maps
// to exactly one *Register for the life of the set; registers are kept in
// creation order.
type RegisterSet struct {
	registers []*Register
	index     map[string]int
}

// NewRegisterSet returns an empty set. Registers are created on first use.
func NewRegisterSet() *RegisterSet {
	return &RegisterSet{index: make(map[string]int)}
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// GetOrAdd returns the register called name, creating it with the given
// initial value, modality and format if it does not exist yet. A new
// register holds initial without a pending change. Later calls ignore the
// supplied defaults.
func (rs *RegisterSet) GetOrAdd(name string, initial float64, modal bool, spec FormatSpec) *Register {
	key := normalizeName(name)
	invariant.Precondition(key != "", "register name must not be empty")
	if i, ok := rs.index[key]; ok {
		return rs.registers[i]
	}
	r := NewNumeric(key, spec, initial, modal)
	r.SetInitial(initial)
	rs.index[key] = len(rs.registers)
	rs.registers = append(rs.registers, r)
	return r
}

// Get returns the register called name, creating it with the built-in
// default for that address. Unknown addresses use the coordinate format.
func (rs *RegisterSet) Get(name string) *Register {
	key := normalizeName(name)
	d, ok := wellKnown[key]
	if !ok {
		d = registerDefault{CoordinateFormat, true}
	}
	return rs.GetOrAdd(key, 0, d.modal, d.spec)
}

// Lookup returns the register called name without creating it.
func (rs *RegisterSet) Lookup(name string) (*Register, bool) {
	i, ok := rs.index[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return rs.registers[i], true
}

// Configure sets the format and modality of name, creating it if needed.
func (rs *RegisterSet) Configure(name string, spec FormatSpec, modal bool) *Register {
	r := rs.Get(name)
	r.SetSpec(spec)
	r.SetModal(modal)
	return r
}

func (rs *RegisterSet) X() *Register { return rs.Get("X") }
func (rs *RegisterSet) Y() *Register { return rs.Get("Y") }
func (rs *RegisterSet) Z() *Register { return rs.Get("Z") }
func (rs *RegisterSet) A() *Register { return rs.Get("A") }
func (rs *RegisterSet) B() *Register { return rs.Get("B") }
func (rs *RegisterSet) C() *Register { return rs.Get("C") }
func (rs *RegisterSet) F() *Register { return rs.Get("F") }
func (rs *RegisterSet) S() *Register { return rs.Get("S") }
func (rs *RegisterSet) T() *Register { return rs.Get("T") }

// Len returns the number of registers created so far.
func (rs *RegisterSet) Len() int { return len(rs.registers) }

// Names returns register names in creation order.
func (rs *RegisterSet) Names() []string {
	names := make([]string, len(rs.registers))
	for i, r := range rs.registers {
		names[i] = r.Address()
	}
	return names
}

// All iterates over every register in creation order.
func (rs *RegisterSet) All() iter.Seq[*Register] {
	return func(yield func(*Register) bool) {
		for _, r := range rs.registers {
			if !yield(r) {
				return
			}
		}
	}
}

// Changed iterates over registers that are non-modal or flagged as changed.
func (rs *RegisterSet) Changed() iter.Seq[*Register] {
	return func(yield func(*Register) bool) {
		for _, r := range rs.registers {
			if r.ShouldOutput() && !yield(r) {
				return
			}
		}
	}
}

// ResetChangeFlags clears the change flag of every register.
func (rs *RegisterSet) ResetChangeFlags() {
	for _, r := range rs.registers {
		r.ResetChangeFlag()
	}
}
