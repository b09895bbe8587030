// Package codewriter emits indented C# source text.
package codewriter

import (
	"fmt"
	"strings"
)

const (
	DefaultIndentUnit = "    "
	DefaultNewline    = "\n"
)

type Option func(*Writer)

// WithIndentUnit sets the text pushed by each scope.
func WithIndentUnit(unit string) Option {
	return func(w *Writer) {
		w.indentUnit = unit
	}
}

// WithNewline sets the line terminator written by WriteLine and BlankLine.
func WithNewline(nl string) Option {
	return func(w *Writer) {
		if nl != "" {
			w.newline = nl
		}
	}
}

// WithRelativePragmas makes LinePragma rewrite file names relative to base.
func WithRelativePragmas(base string) Option {
	return func(w *Writer) {
		w.relativePragmas = true
		w.pragmaBase = base
	}
}

// Writer is not safe for concurrent use.
type Writer struct {
	buf             strings.Builder
	indentLengths   []int
	currentIndent   string
	endsWithNewline bool

	indentUnit string
	newline    string

	// LineDirectiveFile is the file used by LinePragma when none is given.
	LineDirectiveFile string

	relativePragmas bool
	pragmaBase      string
	lastPragma      *pragmaKey

	usingCount int
}

func New(opts ...Option) *Writer {
	w := &Writer{
		indentUnit: DefaultIndentUnit,
		newline:    DefaultNewline,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Nested returns an empty writer sharing this writer's layout settings and
// starting at its current indent.
func (w *Writer) Nested() *Writer {
	n := &Writer{
		indentUnit:        w.indentUnit,
		newline:           w.newline,
		LineDirectiveFile: w.LineDirectiveFile,
		relativePragmas:   w.relativePragmas,
		pragmaBase:        w.pragmaBase,
	}
	n.Reset(w.currentIndent)
	return n
}

// Reset discards all output. A non-empty startingIndent becomes a single
// indent level that PopIndent can remove.
func (w *Writer) Reset(startingIndent string) {
	w.buf.Reset()
	w.endsWithNewline = false
	w.indentLengths = w.indentLengths[:0]
	w.currentIndent = ""
	w.lastPragma = nil
	w.usingCount = 0

	if startingIndent == "" {
		return
	}
	w.currentIndent = startingIndent
	w.indentLengths = append(w.indentLengths, len(startingIndent))
}

func (w *Writer) String() string        { return w.buf.String() }
func (w *Writer) Len() int              { return w.buf.Len() }
func (w *Writer) CurrentIndent() string { return w.currentIndent }
func (w *Writer) IndentDepth() int      { return len(w.indentLengths) }
func (w *Writer) IndentUnit() string    { return w.indentUnit }
func (w *Writer) Newline() string       { return w.newline }
func (w *Writer) UsingCount() int       { return w.usingCount }

// EndsWithNewline reports whether the next Write starts a fresh line.
func (w *Writer) EndsWithNewline() bool { return w.endsWithNewline }

// Write appends text at the current indent. Every embedded newline is
// followed by the indent, except a trailing one: the indent for the next line
// is written by the next Write.
func (w *Writer) Write(text string) {
	if text == "" {
		return
	}

	if w.buf.Len() == 0 || w.endsWithNewline {
		w.buf.WriteString(w.currentIndent)
		w.endsWithNewline = false
	}

	endsWithNewline := strings.HasSuffix(text, "\n")

	if w.currentIndent != "" {
		text = strings.ReplaceAll(text, "\n", "\n"+w.currentIndent)
		if endsWithNewline {
			text = text[:len(text)-len(w.currentIndent)]
		}
	}

	w.buf.WriteString(text)
	w.endsWithNewline = endsWithNewline
}

func (w *Writer) Writef(format string, args ...any) {
	w.Write(fmt.Sprintf(format, args...))
}

// WriteLine writes text, if any, followed by a line terminator.
func (w *Writer) WriteLine(text string) {
	w.Write(text)
	w.buf.WriteString(w.newline)
	w.endsWithNewline = true
}

func (w *Writer) WriteLinef(format string, args ...any) {
	w.WriteLine(fmt.Sprintf(format, args...))
}

// RawWrite appends text without indenting it.
func (w *Writer) RawWrite(text string) {
	if text == "" {
		return
	}
	w.buf.WriteString(text)
	w.endsWithNewline = strings.HasSuffix(text, "\n")
}

func (w *Writer) RawWriteLine(text string) {
	w.buf.WriteString(text)
	w.buf.WriteString(w.newline)
	w.endsWithNewline = true
}

// WriteLiteral writes text at the current indent without indenting its
// embedded lines, so multi-line literals keep their exact content.
func (w *Writer) WriteLiteral(text string) {
	if text == "" {
		return
	}
	if w.buf.Len() == 0 || w.endsWithNewline {
		w.buf.WriteString(w.currentIndent)
	}
	w.RawWrite(text)
}

// EnsureNewline terminates the current line unless it is already terminated.
func (w *Writer) EnsureNewline() {
	if w.buf.Len() > 0 && !w.endsWithNewline {
		w.RawWriteLine("")
	}
}

func (w *Writer) BlankLine(count int) {
	for i := 0; i < count; i++ {
		w.buf.WriteString(w.newline)
	}
	w.endsWithNewline = true
}

// WriteBlock writes each line of block at the current indent. Whitespace-only
// lines become empty lines.
func (w *Writer) WriteBlock(block string) {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	block = strings.TrimSuffix(block, "\n")
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			w.RawWriteLine("")
			continue
		}
		w.WriteLine(line)
	}
}

func (w *Writer) PushIndent(indent string) {
	w.currentIndent += indent
	w.indentLengths = append(w.indentLengths, len(indent))
}

// Indent pushes one indent unit.
func (w *Writer) Indent() {
	w.PushIndent(w.indentUnit)
}

// PopIndent removes the most recent indent level. It does nothing when no
// level is pushed.
func (w *Writer) PopIndent() {
	if len(w.indentLengths) == 0 {
		return
	}
	n := w.indentLengths[len(w.indentLengths)-1]
	w.indentLengths = w.indentLengths[:len(w.indentLengths)-1]
	w.currentIndent = w.currentIndent[:len(w.currentIndent)-n]
}

func (w *Writer) ClearIndent() {
	w.indentLengths = w.indentLengths[:0]
	w.currentIndent = ""
}

// OpenScope writes tag on its own line and indents what follows.
func (w *Writer) OpenScope(tag string) {
	w.WriteLine(tag)
	w.Indent()
}

func (w *Writer) CloseScope(tag string) {
	w.PopIndent()
	w.WriteLine(tag)
}

// Scope closes a structure opened by one of the builders. Close may be
// called more than once; only the first call writes.
type Scope struct {
	w            *Writer
	closeTag     string
	trailingLine bool
	closed       bool
}

func (w *Writer) newScope(closeTag string, trailingLine bool) *Scope {
	return &Scope{w: w, closeTag: closeTag, trailingLine: trailingLine}
}

// Block opens a "{" scope.
func (w *Writer) Block() *Scope {
	w.OpenScope("{")
	return w.newScope("}", false)
}

func (s *Scope) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	s.w.CloseScope(s.closeTag)
	if s.trailingLine {
		s.w.RawWriteLine("")
	}
}
