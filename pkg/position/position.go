package position

import (
	"fmt"
	"unicode/utf8"
)

// Location is a point in a template source file. Lines and columns are 1-based.
type Location struct {
	// File is the name of the file the location belongs to, empty when unknown
	File   string
	Line   int
	Column int
}

// Empty is the location used when nothing better is known.
var Empty = Location{File: "", Line: -1, Column: -1}

// New creates a location in file at line and column.
func New(file string, line, column int) Location {
	return Location{File: file, Line: line, Column: column}
}

// Start returns the first location of a file.
func Start(file string) Location {
	return Location{File: file, Line: 1, Column: 1}
}

func (l Location) IsEmpty() bool {
	return l == Empty
}

func (l Location) HasFile() bool {
	return l.File != ""
}

// AddLine moves to the first column of the next line.
func (l Location) AddLine() Location {
	return Location{File: l.File, Line: l.Line + 1, Column: 1}
}

func (l Location) AddCol() Location {
	return l.AddCols(1)
}

func (l Location) AddCols(n int) Location {
	return Location{File: l.File, Line: l.Line, Column: l.Column + n}
}

// Advance returns the location reached after reading text starting at l.
// A "\r\n" pair counts as a single line break.
func (l Location) Advance(text string) Location {
	for i := 0; i < len(text); {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			l = l.AddLine()
			i++
		case '\n':
			l = l.AddLine()
			i++
		default:
			_, size := utf8.DecodeRuneInString(text[i:])
			l = l.AddCol()
			i += size
		}
	}
	return l
}

// WithFile returns a copy of l that belongs to file.
func (l Location) WithFile(file string) Location {
	l.File = file
	return l
}

func (l Location) String() string {
	return fmt.Sprintf("[%s (%d,%d)]", l.File, l.Line, l.Column)
}
