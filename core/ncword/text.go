package ncword

import (
	"strings"
	"unicode/utf8"
)

// Text is a free-text word, usually a comment. Text words are never modal.
type Text struct {
	state
	text          string
	prefix        string
	suffix        string
	transliterate bool
	maxLength     int
}

// NewText returns a parenthesised comment word holding text.
func NewText(text string) *Text {
	return &Text{
		state:  state{changed: true},
		text:   text,
		prefix: "(",
		suffix: ")",
	}
}

// Text returns the raw payload.
func (t *Text) Text() string { return t.text }

// SetText replaces the payload and flags the word when it differs.
func (t *Text) SetText(text string) *Text {
	if text != t.text {
		t.changed = true
	}
	t.text = text
	return t
}

// SetStyle sets the delimiters written around the payload.
func (t *Text) SetStyle(prefix, suffix string) *Text {
	t.prefix = prefix
	t.suffix = suffix
	return t
}

// SetTransliterate enables Cyrillic to Latin transliteration on output.
func (t *Text) SetTransliterate(on bool) *Text {
	t.transliterate = on
	return t
}

// SetMaxLength truncates the payload to n runes on output; n <= 0 disables it.
func (t *Text) SetMaxLength(n int) *Text {
	t.maxLength = n
	return t
}

func (t *Text) String() string {
	text := t.text
	if t.transliterate {
		text = Transliterate(text)
	}
	if t.maxLength > 0 && utf8.RuneCountInString(text) > t.maxLength {
		text = string([]rune(text)[:t.maxLength])
	}
	return t.prefix + text + t.suffix
}

var cyrillicToLatin = strings.NewReplacer(
	"А", "A", "а", "a", "Б", "B", "б", "b", "В", "V", "в", "v",
	"Г", "G", "г", "g", "Д", "D", "д", "d", "Е", "E", "е", "e",
	"Ё", "Yo", "ё", "yo", "Ж", "Zh", "ж", "zh", "З", "Z", "з", "z",
	"И", "I", "и", "i", "Й", "Y", "й", "y", "К", "K", "к", "k",
	"Л", "L", "л", "l", "М", "M", "м", "m", "Н", "N", "н", "n",
	"О", "O", "о", "o", "П", "P", "п", "p", "Р", "R", "р", "r",
	"С", "S", "с", "s", "Т", "T", "т", "t", "У", "U", "у", "u",
	"Ф", "F", "ф", "f", "Х", "Kh", "х", "kh", "Ц", "Ts", "ц", "ts",
	"Ч", "Ch", "ч", "ch", "Ш", "Sh", "ш", "sh", "Щ", "Sch", "щ", "sch",
	"Ъ", "", "ъ", "", "Ы", "Y", "ы", "y", "Ь", "", "ь", "",
	"Э", "E", "э", "e", "Ю", "Yu", "ю", "yu", "Я", "Ya", "я", "ya",
)

// Transliterate maps Russian Cyrillic letters to Latin. Controllers that
// only accept ASCII comments need it.
func Transliterate(s string) string {
	return cyrillicToLatin.Replace(s)
}
