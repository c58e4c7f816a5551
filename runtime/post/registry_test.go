package post_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/runtime/post"
)

func TestDefaultRegistry(t *testing.T) {
	reg := post.DefaultRegistry()
	for _, major := range []string{"goto", "rapid", "spindl", "coolnt", "loadtl", "fini", "continuation", "cycle81", "channel", "circle", "plane", "from", "gohome"} {
		_, ok := reg.Lookup(major)
		assert.True(t, ok, major)
	}
	names := reg.Names()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "fedrat")
}

func TestRegistryIsCaseInsensitive(t *testing.T) {
	reg := post.NewRegistry()
	reg.Register(" Origin ", func(*post.Context, apt.Command) error { return nil })

	_, ok := reg.Lookup("ORIGIN")
	assert.True(t, ok)
	assert.Equal(t, []string{"origin"}, reg.Names())
}

func TestRegistryRejectsBadHandlers(t *testing.T) {
	reg := post.NewRegistry()
	assert.Panics(t, func() { reg.Register("", func(*post.Context, apt.Command) error { return nil }) })
	assert.Panics(t, func() { reg.Register("goto", nil) })
}

func TestSuggest(t *testing.T) {
	reg := post.DefaultRegistry()
	tests := []struct {
		input    string
		expected string
	}{
		{"spindle", "spindl"},
		{"gotto", "goto"},
		{"cool", "coolnt"},
		{"xyzzyplugh", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, reg.Suggest(tt.input))
		})
	}
	assert.Empty(t, post.NewRegistry().Suggest("goto"))
}
