package codewriter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apparentlymart/go-textseg/v13/textseg"
)

const (
	// MaxLineLength is the number of UTF-16 units after which an escaped
	// literal is continued on a new line.
	MaxLineLength = 120

	verbatimMinLength = 256
	verbatimMaxLength = 1500
)

// QuoteString renders value as a C# string literal. Short, very long and
// NUL-bearing values are escaped; the rest use a verbatim literal. multiline
// reports whether the literal spans more than one line.
func (w *Writer) QuoteString(value string) (text string, multiline bool) {
	n := utf16Len(value)
	if n < verbatimMinLength || n > verbatimMaxLength || strings.ContainsRune(value, 0) {
		return quoteEscaped(value, n, w.currentIndent, w.newline)
	}
	return quoteVerbatim(value)
}

// QuoteEscaped always uses the escaped strategy.
func (w *Writer) QuoteEscaped(value string) (string, bool) {
	return quoteEscaped(value, utf16Len(value), w.currentIndent, w.newline)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// quoteEscaped breaks the literal after each grapheme cluster that reaches a
// multiple of MaxLineLength, so no cluster (and no surrogate pair) is split.
func quoteEscaped(value string, units int, indent, newline string) (string, bool) {
	var b strings.Builder
	b.Grow(len(value) + 5)
	b.WriteByte('"')

	multiline := false
	unit := 0
	data := []byte(value)
	for len(data) > 0 {
		advance, cluster, err := textseg.ScanGraphemeClusters(data, true)
		if err != nil || advance <= 0 {
			_, size := utf8.DecodeRune(data)
			advance, cluster = size, data[:size]
		}
		data = data[advance:]

		start := unit
		for len(cluster) > 0 {
			r, size := utf8.DecodeRune(cluster)
			if r == utf8.RuneError && size == 1 {
				b.WriteByte(cluster[0])
			} else {
				writeEscapedRune(&b, r)
			}
			cluster = cluster[size:]
			if r >= 0x10000 {
				unit += 2
			} else {
				unit++
			}
		}
		last := unit - 1

		if crossesBreak(start, last) && last != units-1 {
			b.WriteString(`" +`)
			b.WriteString(newline)
			b.WriteString(indent)
			b.WriteByte('"')
			multiline = true
		}
	}

	b.WriteByte('"')

	if multiline {
		return "(" + b.String() + ")", true
	}
	return b.String(), false
}

// crossesBreak reports whether a positive multiple of MaxLineLength lies in
// the unit range [first, last].
func crossesBreak(first, last int) bool {
	if last < MaxLineLength {
		return false
	}
	lo := first
	if lo < 1 {
		lo = 1
	}
	k := (lo + MaxLineLength - 1) / MaxLineLength
	return k*MaxLineLength <= last
}

func writeEscapedRune(b *strings.Builder, r rune) {
	switch r {
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	case '"':
		b.WriteString(`\"`)
	case '\'':
		b.WriteString(`\'`)
	case '\\':
		b.WriteString(`\\`)
	case 0:
		b.WriteString(`\0`)
	case '\n':
		b.WriteString(`\n`)
	case '\u2028', '\u2029', '\u0085':
		fmt.Fprintf(b, `\u%04X`, r)
	default:
		b.WriteRune(r)
	}
}

func quoteVerbatim(value string) (string, bool) {
	multiline := strings.ContainsAny(value, "\r\n")
	return `@"` + strings.ReplaceAll(value, `"`, `""`) + `"`, multiline
}
