package block_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptpost/aptpost/core/block"
	"github.com/aptpost/aptpost/core/ncword"
)

func newWriter(t *testing.T, opts ...block.Option) (*block.Writer, *block.MemorySink, *ncword.RegisterSet) {
	t.Helper()
	sink := &block.MemorySink{}
	w := block.NewWriter(sink, opts...)
	rs := ncword.NewRegisterSet()
	w.Track(rs.X(), rs.Y(), rs.Z(), rs.F())
	w.ResetAll()
	return w, sink, rs
}

func TestWriteBlockEmitsChangedWords(t *testing.T) {
	w, sink, rs := newWriter(t)

	rs.X().Set(10)
	rs.Y().Set(20)
	wrote, err := w.WriteBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote)

	rs.X().Set(10)
	rs.Z().Set(-5)
	rs.F().Set(300)
	wrote, err = w.WriteBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = w.WriteBlock(true)
	require.NoError(t, err)
	assert.False(t, wrote, "nothing changed")

	expected := []string{
		"N10 X0010.0 Y0020.0",
		"N20 Z-0005.0 F300",
	}
	if diff := cmp.Diff(expected, sink.Lines()); diff != "" {
		t.Errorf("blocks mismatch (-expected +actual):\n%s", diff)
	}
	assert.Equal(t, 2, w.Blocks())
	assert.Equal(t, 30, w.CurrentBlockNumber())
}

func TestWriteBlockWithoutNumber(t *testing.T) {
	w, sink, rs := newWriter(t, block.WithSeparator(""))
	rs.X().Set(1.5)
	rs.Y().Set(2)
	_, err := w.WriteBlock(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"X0001.5Y0002.0"}, sink.Lines())
	assert.Equal(t, 10, w.CurrentBlockNumber(), "unnumbered blocks do not consume numbers")
}

func TestNumberingDisabled(t *testing.T) {
	w, sink, rs := newWriter(t, block.WithNumbering(block.Numbering{Enabled: false}))
	rs.Z().Set(3)
	_, err := w.WriteBlock(true)
	require.NoError(t, err)
	require.NoError(t, w.WriteBlockNumberOnly())
	assert.Equal(t, []string{"Z0003.0"}, sink.Lines())
}

func TestCustomNumbering(t *testing.T) {
	w, sink, rs := newWriter(t, block.WithNumbering(block.Numbering{Enabled: true, Prefix: "N", Start: 1, Step: 1}))
	rs.X().Set(1)
	_, _ = w.WriteBlock(true)
	require.NoError(t, w.WriteBlockNumberOnly())
	rs.X().Set(2)
	_, _ = w.WriteBlock(true)
	assert.Equal(t, []string{"N1 X0001.0", "N2", "N3 X0002.0"}, sink.Lines())

	w.SetBlockNumber(100)
	rs.X().Set(3)
	_, _ = w.WriteBlock(true)
	assert.Equal(t, "N100 X0003.0", sink.Lines()[3])
}

func TestHideAndShow(t *testing.T) {
	w, sink, rs := newWriter(t)
	rs.X().Set(5)
	rs.Y().Set(6)
	w.Hide(rs.X())
	w.Show(rs.F())
	_, err := w.WriteBlock(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"N10 Y0006.0 F0"}, sink.Lines())

	assert.Empty(t, w.ChangedWords())
	assert.Len(t, w.UnchangedWords(), 4)
}

func TestPushWritesOneOffWordsFirst(t *testing.T) {
	w, sink, rs := newWriter(t)
	g := ncword.NewNumeric("G", ncword.IntegerFormat, 1, true)
	ncword.Token(g)

	rs.X().Set(7)
	w.Push(g)
	_, err := w.WriteBlock(true)
	require.NoError(t, err)

	w.Push(ncword.NewNumeric("M", ncword.IntegerFormat, 5, false))
	wrote, err := w.WriteBlock(true)
	require.NoError(t, err)
	assert.True(t, wrote, "pushed words alone make a block")

	wrote, err = w.WriteBlock(true)
	require.NoError(t, err)
	assert.False(t, wrote, "pushed words are consumed")

	assert.Equal(t, []string{"N10 G1 X0007.0", "N20 M5"}, sink.Lines())
}

func TestTrackDeduplicatesAndUntrack(t *testing.T) {
	w, _, rs := newWriter(t)
	w.Track(rs.X(), rs.X(), rs.Y())
	assert.Len(t, w.Words(), 4)

	w.Untrack(rs.Y())
	words := w.Words()
	require.Len(t, words, 3)
	assert.Equal(t, "X", words[0].Address())
	assert.Equal(t, "Z", words[1].Address())
}

func TestResetClearsFlags(t *testing.T) {
	w, sink, rs := newWriter(t)
	rs.X().Set(1)
	rs.Y().Set(2)
	w.Reset(rs.X())
	assert.Len(t, w.ChangedWords(), 1)
	w.Push(ncword.NewText("dropped"))
	w.ResetAll()
	wrote, err := w.WriteBlock(true)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Empty(t, sink.Lines())
}

func TestWriteLineAndComment(t *testing.T) {
	w, sink, _ := newWriter(t, block.WithCommentStyle(block.CommentStyle{Prefix: "; ", MaxLength: 10, Transliterate: true}))
	require.NoError(t, w.WriteLine("%"))
	require.NoError(t, w.WriteComment("Деталь номер один"))
	assert.Equal(t, []string{"%", "; Detal nome"}, sink.Lines())

	w2, sink2, _ := newWriter(t)
	require.NoError(t, w2.WriteComment("TOOL 1"))
	assert.Equal(t, []string{"(TOOL 1)"}, sink2.Lines())
}
