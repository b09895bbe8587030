// Package diagnostic collects the located errors and warnings produced while
// a template is parsed, resolved and generated.
package diagnostic

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/walteh/t4gen/pkg/position"
)

// Severity represents the severity level of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is a single located template diagnostic
type Error struct {
	File      string
	Line      int
	Column    int
	Code      string
	Text      string
	IsWarning bool
}

// NewError creates an error diagnostic at loc. When loc has no file the
// fallback file is used and the line and column are left at zero.
func NewError(text string, loc position.Location, fallbackFile string) Error {
	err := Error{Text: text}
	if loc.HasFile() {
		err.File = loc.File
		err.Line = loc.Line
		err.Column = loc.Column
	} else {
		err.File = fallbackFile
	}
	return err
}

func (e Error) Severity() Severity {
	if e.IsWarning {
		return SeverityWarning
	}
	return SeverityError
}

func (e Error) Location() position.Location {
	return position.New(e.File, e.Line, e.Column)
}

// String renders the diagnostic as "file(line,col) : severity code: text".
// The code is left out when empty.
func (e Error) String() string {
	kind := string(e.Severity())
	if e.Code != "" {
		kind += " " + e.Code
	}
	if e.File != "" {
		return fmt.Sprintf("%s(%d,%d) : %s: %s", e.File, e.Line, e.Column, kind, e.Text)
	}
	return fmt.Sprintf("%s: %s", kind, e.Text)
}

// Error implements the error interface so a diagnostic can travel as a Go error.
func (e Error) Error() string {
	return e.String()
}

// Collection is an ordered list of diagnostics. It is owned by a single run
// and is not safe for concurrent use.
type Collection struct {
	items []Error
}

func NewCollection() *Collection {
	return &Collection{}
}

func (c *Collection) Add(err Error) {
	c.items = append(c.items, err)
}

func (c *Collection) AddAll(other *Collection) {
	if other == nil {
		return
	}
	c.items = append(c.items, other.items...)
}

// All returns a copy of the collected diagnostics in the order they were added.
func (c *Collection) All() []Error {
	out := make([]Error, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int {
	return len(c.items)
}

func (c *Collection) Clear() {
	c.items = nil
}

// HasErrors reports whether any non-warning diagnostic was collected.
func (c *Collection) HasErrors() bool {
	for _, e := range c.items {
		if !e.IsWarning {
			return true
		}
	}
	return false
}

func (c *Collection) HasWarnings() bool {
	for _, e := range c.items {
		if e.IsWarning {
			return true
		}
	}
	return false
}

// Warnings returns only the warning diagnostics.
func (c *Collection) Warnings() []Error {
	var out []Error
	for _, e := range c.items {
		if e.IsWarning {
			out = append(out, e)
		}
	}
	return out
}

// Err combines every non-warning diagnostic into a single error, or returns
// nil when there are none.
func (c *Collection) Err() error {
	var combined error
	for _, e := range c.items {
		if e.IsWarning {
			continue
		}
		combined = multierr.Append(combined, e)
	}
	return combined
}
