package cache_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptpost/aptpost/core/cache"
)

type lines []string

func (l *lines) WriteLine(s string) error {
	*l = append(*l, s)
	return nil
}

type failingWriter struct{}

func (failingWriter) WriteLine(string) error { return errors.New("disk full") }

func TestCycleCacheWriteIfDifferent(t *testing.T) {
	var out lines
	c := cache.NewCycleCache("CYCLE81")
	params := cache.Params{cache.P("RTP", 10.0), cache.P("DP", -20.0)}

	full, err := c.WriteIfDifferent(&out, params)
	require.NoError(t, err)
	assert.True(t, full)

	full, err = c.WriteIfDifferent(&out, cache.Params{cache.P("RTP", 10.0), cache.P("DP", -20.0)})
	require.NoError(t, err)
	assert.False(t, full)

	expected := lines{"CYCLE81(RTP=10.000, DP=-20.000)", "CYCLE81()"}
	if diff := cmp.Diff(expected, out); diff != "" {
		t.Errorf("output mismatch (-expected +actual):\n%s", diff)
	}
}

func TestCycleCacheIdempotentUntilChange(t *testing.T) {
	var out lines
	c := cache.NewCycleCache("CYCLE83")
	a := cache.Params{cache.P("RTP", 5.0), cache.P("Q", 2.0)}
	b := cache.Params{cache.P("RTP", 5.0), cache.P("Q", 2.5)}

	calls := []struct {
		params cache.Params
		full   bool
	}{
		{a, true}, {a, false}, {a, false}, {b, true}, {b, false}, {a, true},
	}
	for i, call := range calls {
		full, err := c.WriteIfDifferent(&out, call.params)
		require.NoError(t, err)
		assert.Equal(t, call.full, full, "call %d", i)
	}
	assert.Equal(t, cache.CycleStats{Calls: 6, Definitions: 3}, c.Stats())
}

func TestCycleCacheStrictEquality(t *testing.T) {
	var out lines
	c := cache.NewCycleCache("CYCLE81")
	_, err := c.WriteIfDifferent(&out, cache.Params{cache.P("DP", -20.0)})
	require.NoError(t, err)

	full, err := c.WriteIfDifferent(&out, cache.Params{cache.P("DP", -20.0000001)})
	require.NoError(t, err)
	assert.True(t, full, "no tolerance is applied to cycle parameters")

	full, err = c.WriteIfDifferent(&out, cache.Params{cache.P("DP", -20.0000001), cache.P("SDIS", 2.0)})
	require.NoError(t, err)
	assert.True(t, full, "a new key is a new definition")

	full, err = c.WriteIfDifferent(&out, cache.Params{cache.P("SDIS", 2.0), cache.P("DP", -20.0000001)})
	require.NoError(t, err)
	assert.False(t, full, "order does not matter for equality")

	full, err = c.WriteIfDifferent(&out, cache.Params{cache.P("SDIS", 2), cache.P("DP", -20.0000001)})
	require.NoError(t, err)
	assert.True(t, full, "int and float are different values")
}

func TestCycleCacheReset(t *testing.T) {
	var out lines
	c := cache.NewCycleCache("CYCLE81")
	p := cache.Params{cache.P("RTP", 1.0)}
	_, _ = c.WriteIfDifferent(&out, p)
	c.Reset()
	full, err := c.WriteIfDifferent(&out, p)
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, lines{"CYCLE81(RTP=1.000)", "CYCLE81(RTP=1.000)"}, out)
}

func TestCycleCacheWriteError(t *testing.T) {
	c := cache.NewCycleCache("CYCLE81")
	p := cache.Params{cache.P("RTP", 1.0)}
	_, err := c.WriteIfDifferent(failingWriter{}, p)
	require.Error(t, err)

	var out lines
	full, err := c.WriteIfDifferent(&out, p)
	require.NoError(t, err)
	assert.True(t, full, "a failed definition is not cached")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{10.0, "10.000"},
		{-0.12345, "-0.123"},
		{float32(1.5), "1.500"},
		{3, "3"},
		{int64(-7), "-7"},
		{"DRILL", `"DRILL"`},
		{true, "1"},
		{false, "0"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cache.FormatValue(tt.value))
	}

	var out lines
	c := cache.NewCycleCache("CYCLE")
	_, err := c.WriteIfDifferent(&out, cache.Params{cache.P("NAME", "PECK"), cache.P("ON", true), cache.P("N", 2), cache.P("X", nil)})
	require.NoError(t, err)
	assert.Equal(t, `CYCLE(NAME="PECK", ON=1, N=2, X=)`, out[0])
}
