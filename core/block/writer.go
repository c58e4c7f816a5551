// Package block assembles G-code blocks from ncword words and writes them
// to a Sink.
//
// A Writer tracks a set of words. WriteBlock emits the ones that changed,
// optionally prefixed with an N block number, as one line.
package block

import (
	"slices"
	"strings"

	"github.com/aptpost/aptpost/core/invariant"
	"github.com/aptpost/aptpost/core/ncword"
)

// CommentStyle describes how WriteComment renders comment text.
type CommentStyle struct {
	Prefix        string
	Suffix        string
	MaxLength     int
	Transliterate bool
}

// Built-in comment styles.
var (
	ParenComments     = CommentStyle{Prefix: "(", Suffix: ")"}
	SemicolonComments = CommentStyle{Prefix: "; "}
)

// Numbering configures block numbers.
type Numbering struct {
	Enabled bool
	Prefix  string
	Start   int
	Step    int
}

// DefaultNumbering numbers blocks N10, N20, N30 and so on.
var DefaultNumbering = Numbering{Enabled: true, Prefix: "N", Start: 10, Step: 10}

// Option configures a Writer.
type Option func(*Writer)

// WithNumbering replaces the block numbering scheme.
func WithNumbering(n Numbering) Option {
	return func(w *Writer) {
		w.numbering = n
	}
}

// WithSeparator sets the text written between words. The default is a single space.
func WithSeparator(sep string) Option {
	return func(w *Writer) {
		w.separator = sep
	}
}

// WithCommentStyle sets how WriteComment renders text.
func WithCommentStyle(cs CommentStyle) Option {
	return func(w *Writer) {
		w.comments = cs
	}
}

// Writer assembles blocks from tracked words.
type Writer struct {
	sink      Sink
	words     []ncword.Word
	pending   []ncword.Word
	number    *ncword.Sequence
	numbering Numbering
	separator string
	comments  CommentStyle
	blocks    int
}

// NewWriter returns a Writer emitting to sink.
func NewWriter(sink Sink, opts ...Option) *Writer {
	invariant.NotNil(sink, "sink")
	w := &Writer{
		sink:      sink,
		numbering: DefaultNumbering,
		separator: " ",
		comments:  ParenComments,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.numbering.Step == 0 {
		w.numbering.Step = DefaultNumbering.Step
	}
	w.number = ncword.NewSequence(w.numbering.Prefix, w.numbering.Start, w.numbering.Step)
	return w
}

// Track adds words to the tracked set, in order, ignoring duplicates.
func (w *Writer) Track(words ...ncword.Word) {
	for _, word := range words {
		invariant.NotNil(word, "word")
		if !slices.Contains(w.words, word) {
			w.words = append(w.words, word)
		}
	}
}

// Untrack removes words from the tracked set.
func (w *Writer) Untrack(words ...ncword.Word) {
	w.words = slices.DeleteFunc(w.words, func(word ncword.Word) bool {
		return slices.Contains(words, word)
	})
}

// Push queues one-off words for the next block. They are written before
// the tracked words, whatever their change flags say.
func (w *Writer) Push(words ...ncword.Word) {
	for _, word := range words {
		invariant.NotNil(word, "word")
		w.pending = append(w.pending, word)
	}
}

// Hide clears the change flag of words so the next block skips them.
func (w *Writer) Hide(words ...ncword.Word) {
	for _, word := range words {
		word.ForceUnchanged()
	}
}

// Show flags words so the next block includes them.
func (w *Writer) Show(words ...ncword.Word) {
	for _, word := range words {
		word.ForceChanged()
	}
}

// Reset clears the change flag of words.
func (w *Writer) Reset(words ...ncword.Word) {
	for _, word := range words {
		word.ResetChangeFlag()
	}
}

// ResetAll clears the change flag of every tracked word and drops pushed words.
func (w *Writer) ResetAll() {
	for _, word := range w.words {
		word.ResetChangeFlag()
	}
	w.pending = w.pending[:0]
}

// WriteBlock writes pushed words and changed tracked words as one line.
// It writes nothing and returns false when there is nothing to emit.
func (w *Writer) WriteBlock(includeNumber bool) (bool, error) {
	parts := make([]string, 0, len(w.pending)+len(w.words)+1)
	for _, word := range w.pending {
		if tok := forceToken(word); tok != "" {
			parts = append(parts, tok)
		}
	}
	w.pending = w.pending[:0]

	for _, word := range w.words {
		if !word.HasChanged() {
			continue
		}
		if tok := ncword.Token(word); tok != "" {
			parts = append(parts, tok)
		}
	}

	if len(parts) == 0 {
		return false, nil
	}
	if includeNumber && w.numbering.Enabled {
		parts = slices.Insert(parts, 0, ncword.Token(w.number))
	}
	w.blocks++
	return true, w.sink.WriteLine(strings.Join(parts, w.separator))
}

// forceToken renders a pushed word even when it is modal and unchanged.
func forceToken(word ncword.Word) string {
	if !word.ShouldOutput() {
		word.ForceChanged()
	}
	return ncword.Token(word)
}

// WriteBlockNumberOnly writes a line holding just the next block number.
func (w *Writer) WriteBlockNumberOnly() error {
	if !w.numbering.Enabled {
		return nil
	}
	w.blocks++
	return w.sink.WriteLine(ncword.Token(w.number))
}

// WriteLine writes text verbatim, bypassing block assembly.
func (w *Writer) WriteLine(text string) error {
	return w.sink.WriteLine(text)
}

// WriteComment writes text in the configured comment style.
func (w *Writer) WriteComment(text string) error {
	c := ncword.NewText(text).
		SetStyle(w.comments.Prefix, w.comments.Suffix).
		SetMaxLength(w.comments.MaxLength).
		SetTransliterate(w.comments.Transliterate)
	return w.sink.WriteLine(ncword.Token(c))
}

// Words returns the tracked words in order.
func (w *Writer) Words() []ncword.Word {
	return slices.Clone(w.words)
}

// ChangedWords returns the tracked words flagged as changed.
func (w *Writer) ChangedWords() []ncword.Word {
	return w.filter(true)
}

// UnchangedWords returns the tracked words not flagged as changed.
func (w *Writer) UnchangedWords() []ncword.Word {
	return w.filter(false)
}

func (w *Writer) filter(changed bool) []ncword.Word {
	var out []ncword.Word
	for _, word := range w.words {
		if word.HasChanged() == changed {
			out = append(out, word)
		}
	}
	return out
}

// CurrentBlockNumber returns the number the next numbered block will carry.
func (w *Writer) CurrentBlockNumber() int { return w.number.Value() }

// SetBlockNumber makes the next numbered block carry n.
func (w *Writer) SetBlockNumber(n int) { w.number.ResetTo(n) }

// Blocks returns the number of blocks written.
func (w *Writer) Blocks() int { return w.blocks }

// Sink returns the sink the writer emits to.
func (w *Writer) Sink() Sink { return w.sink }
