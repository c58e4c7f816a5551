package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aptpost/aptpost/core/invariant"
)

// LineWriter receives the lines a CycleCache emits.
type LineWriter interface {
	WriteLine(line string) error
}

// Param is one named cycle parameter. Value may be a float64, any integer
// type, a string, a bool or nil.
type Param struct {
	Name  string
	Value any
}

// Params is an ordered parameter list; the order is the output order.
type Params []Param

// P is shorthand for building a Param.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Get returns the value of name.
func (ps Params) Get(name string) (any, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// CycleStats counts how a cycle was written.
type CycleStats struct {
	Calls       int // total WriteIfDifferent calls
	Definitions int // calls that wrote the full parameter list
}

// CycleCache remembers the parameters last written for one canned cycle so
// repeated calls with identical parameters are written as a bare NAME().
//
// Parameters are compared by exact key set and strict value equality; unlike
// register updates there is no floating point tolerance.
type CycleCache struct {
	name  string
	last  map[string]any
	valid bool
	stats CycleStats
}

// NewCycleCache returns a cache for the cycle called name, such as "CYCLE81".
func NewCycleCache(name string) *CycleCache {
	invariant.Precondition(name != "", "cycle name must not be empty")
	return &CycleCache{name: name}
}

// Name returns the cycle name.
func (c *CycleCache) Name() string { return c.name }

// WriteIfDifferent writes NAME(k=v, ...) and returns true when params differ
// from the last definition, or NAME() and false when they are identical.
func (c *CycleCache) WriteIfDifferent(w LineWriter, params Params) (bool, error) {
	invariant.NotNil(w, "writer")
	c.stats.Calls++

	if c.valid && c.same(params) {
		return false, w.WriteLine(c.name + "()")
	}

	line := c.name + "(" + formatParams(params) + ")"
	if err := w.WriteLine(line); err != nil {
		return true, err
	}
	c.last = make(map[string]any, len(params))
	for _, p := range params {
		c.last[p.Name] = p.Value
	}
	c.valid = true
	c.stats.Definitions++
	return true, nil
}

func (c *CycleCache) same(params Params) bool {
	if len(params) != len(c.last) {
		return false
	}
	for _, p := range params {
		old, ok := c.last[p.Name]
		if !ok || !equalValue(old, p.Value) {
			return false
		}
	}
	return true
}

// equalValue compares without panicking on uncomparable dynamic types.
func equalValue(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// Reset forgets the last definition so the next call writes it in full.
func (c *CycleCache) Reset() {
	c.last = nil
	c.valid = false
}

// Stats returns call counters.
func (c *CycleCache) Stats() CycleStats { return c.stats }

func formatParams(params Params) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + "=" + FormatValue(p.Value)
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders a cycle parameter: floats with three decimals,
// integers in decimal, strings double quoted, booleans as 1 or 0.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', 3, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 3, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case string:
		return strconv.Quote(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}
