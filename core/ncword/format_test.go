package ncword_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptpost/aptpost/core/ncword"
)

func TestTryParseFormatSpec(t *testing.T) {
	tests := []struct {
		input string
		want  ncword.FormatSpec
	}{
		{
			input: "X{-0000!0##}",
			want: ncword.FormatSpec{
				Address: "X", Sign: ncword.SignMinusOnly, Point: ncword.PointAlways,
				DigitsBefore: 4, DigitsAfter: 3, LeadingZeros: true, Trailing: ncword.TrailingKeepOne,
			},
		},
		{
			input: "F{###.0}",
			want: ncword.FormatSpec{
				Address: "F", Sign: ncword.SignNone, Point: ncword.PointOptional,
				DigitsBefore: 3, DigitsAfter: 1, Trailing: ncword.TrailingKeepAll,
			},
		},
		{
			input: "S{+#####}",
			want: ncword.FormatSpec{
				Address: "S", Sign: ncword.SignPlusMinus, Point: ncword.PointNever,
				DigitsBefore: 5, Trailing: ncword.TrailingKeepOne,
			},
		},
		{
			input: "X{-0000^000}",
			want: ncword.FormatSpec{
				Address: "X", Sign: ncword.SignMinusOnly, Point: ncword.PointNever,
				DigitsBefore: 4, DigitsAfter: 3, LeadingZeros: true, Trailing: ncword.TrailingKeepAll,
			},
		},
		{
			input: "{-##!###}",
			want: ncword.FormatSpec{
				Sign: ncword.SignMinusOnly, Point: ncword.PointAlways,
				DigitsBefore: 2, DigitsAfter: 3, Trailing: ncword.TrailingStrip,
			},
		},
		{
			input: "  Z{-#0#!000}  ",
			want: ncword.FormatSpec{
				Address: "Z", Sign: ncword.SignMinusOnly, Point: ncword.PointAlways,
				DigitsBefore: 3, DigitsAfter: 3, LeadingZeros: true, Trailing: ncword.TrailingKeepAll,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ncword.TryParseFormatSpec(tt.input)
			require.True(t, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("spec mismatch (-expected +actual):\n%s", diff)
			}
		})
	}
}

func TestTryParseFormatSpecRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "X", "X{", "X{-0000!0##", "X{abc}", "X1{###}", "{}", "{-}", "X{##!##x}", "X{-####^}"} {
		_, ok := ncword.TryParseFormatSpec(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestParseFormatSpecFallsBackToDefault(t *testing.T) {
	got := ncword.ParseFormatSpec("Y{garbage}")
	if diff := cmp.Diff(ncword.DefaultFormatSpec("Y"), got); diff != "" {
		t.Errorf("fallback mismatch (-expected +actual):\n%s", diff)
	}
	assert.Equal(t, ncword.DefaultFormatSpec(""), ncword.ParseFormatSpec(""))
}

func TestFormatSpecStringRoundTrip(t *testing.T) {
	for _, input := range []string{"X{-0000!0##}", "F{-###.0}", "S{#####}", "Z{+##!###}", "I{-00!000}", "H{-0000}", "X{-####^###}", "X{-0000^000}"} {
		spec, ok := ncword.TryParseFormatSpec(input)
		require.True(t, ok, input)
		assert.Equal(t, input, spec.String())

		again, ok := ncword.TryParseFormatSpec(spec.String())
		require.True(t, ok)
		assert.Equal(t, spec, again)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		spec  string
		value float64
		want  string
	}{
		{"X{-0000!0##}", 100.5, "X0100.5"},
		{"X{-0000!0##}", 100, "X0100.0"},
		{"X{-0000!0##}", -5.25, "X-0005.25"},
		{"X{-0000!0##}", 1.23456, "X0001.235"},
		{"X{-0000!0##}", -0.0001, "X0000.0"},
		{"X{-##!###}", 100, "X100."},
		{"X{-##!###}", 12.340, "X12.34"},
		{"X{-##!000}", 12.3, "X12.300"},
		{"X{##!000}", -12.3, "X12.300"},
		{"X{+##!0##}", 12.3, "X+12.3"},
		{"X{+##!0##}", -12.3, "X-12.3"},
		{"X{+##!0##}", 0, "X+0.0"},
		{"F{-###.0}", 250, "F250"},
		{"F{-###.0}", 250.5, "F250.5"},
		{"F{-###.0}", 1500.04, "F1500"},
		{"S{-#####}", 1200, "S1200"},
		{"S{-#####}", 0, "S0"},
		{"T{-00}", 3, "T03"},
		{"S{-#####}", 1199.6, "S1200"},
		{"S{-#####}", -0.4, "S0"},
		{"H{-0000}", 12, "H0012"},
		{"X{-####^###}", 1.5, "X1500"},
		{"X{-0000^000}", 1.5, "X0001500"},
		{"X{-####^###}", -0.25, "X-250"},
		{"X{-####^###}", 12.34567, "X12346"},
		{"X{-####^###}", -0.0001, "X0"},
		{"X{+##^##}", 3, "X+300"},
	}

	for _, tt := range tests {
		t.Run(tt.spec+"/"+tt.want, func(t *testing.T) {
			spec := ncword.MustParseFormatSpec(tt.spec)
			assert.Equal(t, tt.want, spec.Format(tt.value))
		})
	}
}

func TestImpliedDecimalSpec(t *testing.T) {
	spec := ncword.FormatSpec{
		Address: "X", Sign: ncword.SignMinusOnly, Point: ncword.PointNever,
		DigitsBefore: 4, DigitsAfter: 3,
	}
	assert.Equal(t, "X1500", spec.Format(1.5))
	assert.Equal(t, "X{-####^###}", spec.String())

	again, ok := ncword.TryParseFormatSpec(spec.String())
	require.True(t, ok)
	if diff := cmp.Diff(spec, again); diff != "" {
		t.Errorf("spec mismatch (-expected +actual):\n%s", diff)
	}
	assert.Equal(t, "X1500", again.Format(1.5))

	v, err := spec.ParseValue("X1500")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestFormatDefaultSpec(t *testing.T) {
	spec := ncword.DefaultFormatSpec("X")
	assert.Equal(t, "X0100.5", spec.Format(100.5))
	assert.Equal(t, "X{-0000!0##}", spec.String())
}

func TestFormatPanicsOnNonFinite(t *testing.T) {
	spec := ncword.DefaultFormatSpec("X")
	assert.Panics(t, func() { spec.Format(math.NaN()) })
	assert.Panics(t, func() { spec.Format(math.Inf(1)) })
}

func TestParseValueRoundTrip(t *testing.T) {
	specs := []string{"X{-0000!0##}", "X{+##!000}", "F{-###.0}", "X{-##!###}", "X{-####^000}"}
	values := []float64{0, 1, -1, 0.5, 12.345, -250.125, 999.999, 1200}

	for _, s := range specs {
		spec := ncword.MustParseFormatSpec(s)
		precision := math.Pow10(-spec.DigitsAfter) / 2
		for _, v := range values {
			token := spec.Format(v)
			got, err := spec.ParseValue(token)
			require.NoError(t, err, "%s %q", s, token)
			assert.InDelta(t, v, got, precision+1e-9, "%s %q", s, token)
		}
	}
}

func TestParseValueErrors(t *testing.T) {
	spec := ncword.DefaultFormatSpec("X")
	_, err := spec.ParseValue("X")
	assert.Error(t, err)
	_, err = spec.ParseValue("Xabc")
	assert.Error(t, err)
	_, err = spec.ParseValue("XNaN")
	assert.Error(t, err)

	v, err := spec.ParseValue("x12.5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}
