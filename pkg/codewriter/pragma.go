package codewriter

import (
	"path/filepath"
	"strconv"
)

type pragmaKey struct {
	line int
	file string
}

// LinePragma maps the following lines to line of file. An empty file means
// LineDirectiveFile. Nothing is written when the previous pragma named the
// same line and file.
func (w *Writer) LinePragma(line int, file string) {
	if file == "" {
		file = w.LineDirectiveFile
	}
	file = w.PragmaFileName(file)

	key := pragmaKey{line: line, file: file}
	if w.lastPragma != nil && *w.lastPragma == key {
		return
	}
	w.lastPragma = &key

	w.EnsureNewline()
	w.RawWriteLine(formatLinePragma(line, file))
}

// LineDefault ends the mapped region.
func (w *Writer) LineDefault() {
	w.lastPragma = nil
	w.EnsureNewline()
	w.RawWriteLine("#line default")
}

func (w *Writer) LineHidden() {
	w.lastPragma = nil
	w.EnsureNewline()
	w.RawWriteLine("#line hidden")
}

// PragmaFileName rewrites file the way LinePragma writes it: relative to the
// pragma base with forward slashes, or as its simple name.
func (w *Writer) PragmaFileName(file string) string {
	if file == "" {
		return ""
	}
	if !w.relativePragmas {
		return filepath.Base(file)
	}
	base := w.pragmaBase
	if base == "" {
		base = filepath.Dir(file)
	}
	if filepath.IsAbs(base) != filepath.IsAbs(file) {
		base, file = absPath(base), absPath(file)
	}
	rel, err := filepath.Rel(base, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func formatLinePragma(line int, file string) string {
	if file == "" {
		return "#line " + strconv.Itoa(line)
	}
	return "#line " + strconv.Itoa(line) + ` "` + file + `"`
}
