// Package ncword models the addressable words of a G-code block: numeric
// registers such as X or F, free text such as comments, and auto-incrementing
// sequences such as block numbers.
//
// Every word tracks whether it is modal and whether it changed since it was
// last emitted. Token reads a word for output, returning "" for a modal word
// that has not changed.
package ncword

// Word is one addressable output field. The set of implementations is
// closed: *Numeric, *Text and *Sequence.
type Word interface {
	Address() string
	IsModal() bool
	HasChanged() bool
	// ShouldOutput reports whether Token would return a non-empty token.
	ShouldOutput() bool
	ForceChanged()
	ForceUnchanged()
	ResetChangeFlag()
	// String renders the word without side effects.
	String() string

	sealed()
}

// state is embedded by every word.
type state struct {
	address string
	modal   bool
	changed bool
}

func (s *state) Address() string    { return s.address }
func (s *state) IsModal() bool      { return s.modal }
func (s *state) HasChanged() bool   { return s.changed }
func (s *state) ShouldOutput() bool { return s.changed || !s.modal }
func (s *state) ForceChanged()      { s.changed = true }
func (s *state) ForceUnchanged()    { s.changed = false }
func (s *state) ResetChangeFlag()   { s.changed = false }
func (s *state) sealed()            {}

// Token reads w for output. It returns "" for a modal word that has not
// changed. Otherwise it returns the rendered token; modal numeric words clear
// their change flag and sequences advance their counter.
func Token(w Word) string {
	if !w.ShouldOutput() {
		return ""
	}
	switch w := w.(type) {
	case *Numeric:
		tok := w.String()
		if w.modal {
			w.changed = false
		}
		return tok
	case *Text:
		return w.String()
	case *Sequence:
		tok := w.String()
		w.Increment()
		return tok
	default:
		panic("ncword: unknown word type")
	}
}
