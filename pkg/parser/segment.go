package parser

import (
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/position"
)

// SegmentType classifies the non-directive segments of a template.
type SegmentType int

const (
	SegmentContent SegmentType = iota
	SegmentExpression
	SegmentBlock
	SegmentHelper
)

func (t SegmentType) String() string {
	switch t {
	case SegmentContent:
		return "content"
	case SegmentExpression:
		return "expression"
	case SegmentBlock:
		return "block"
	case SegmentHelper:
		return "helper"
	default:
		return "unknown"
	}
}

// Segment is a located slice of parsed template input. It is implemented by
// *Directive and *TemplateSegment only.
type Segment interface {
	StartLocation() position.Location
	EndLocation() position.Location
	TagStartLocation() position.Location

	setEndLocation(position.Location)
	setTagStartLocation(position.Location)
}

type segmentBounds struct {
	start    position.Location
	end      position.Location
	tagStart position.Location
}

func (b *segmentBounds) StartLocation() position.Location    { return b.start }
func (b *segmentBounds) EndLocation() position.Location      { return b.end }
func (b *segmentBounds) TagStartLocation() position.Location { return b.tagStart }

func (b *segmentBounds) setEndLocation(l position.Location)      { b.end = l }
func (b *segmentBounds) setTagStartLocation(l position.Location) { b.tagStart = l }

// TemplateSegment is a content, expression, block or helper region.
type TemplateSegment struct {
	segmentBounds
	Type SegmentType
	Text string
}

func NewTemplateSegment(typ SegmentType, text string, start position.Location) *TemplateSegment {
	return &TemplateSegment{
		segmentBounds: segmentBounds{start: start, end: start, tagStart: start},
		Type:          typ,
		Text:          text,
	}
}

// Attribute keeps the spelling an attribute was written with.
type Attribute struct {
	Name  string
	Value string
}

// Attributes maps case-insensitive attribute names to values.
type Attributes map[string]Attribute

func attributeKey(name string) string {
	return strings.ToLower(name)
}

func (a Attributes) Get(name string) (string, bool) {
	attr, ok := a[attributeKey(name)]
	return attr.Value, ok
}

func (a Attributes) Set(name, value string) {
	a[attributeKey(name)] = Attribute{Name: name, Value: value}
}

func (a Attributes) Delete(name string) {
	delete(a, attributeKey(name))
}

// Names returns the attribute names as written, sorted case-insensitively.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for _, attr := range a {
		names = append(names, attr.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Directive is a <#@ name attr="value" #> tag.
type Directive struct {
	segmentBounds
	Name       string
	Attributes Attributes
}

func NewDirective(name string, start position.Location) *Directive {
	return &Directive{
		segmentBounds: segmentBounds{start: start, end: start, tagStart: start},
		Name:          name,
		Attributes:    Attributes{},
	}
}

// Is compares the directive name case-insensitively.
func (d *Directive) Is(name string) bool {
	return strings.EqualFold(d.Name, name)
}

// Extract removes the attribute and returns its value.
func (d *Directive) Extract(name string) (string, bool) {
	value, ok := d.Attributes.Get(name)
	if ok {
		d.Attributes.Delete(name)
	}
	return value, ok
}

// ExtractOr removes the attribute, returning def when it is absent.
func (d *Directive) ExtractOr(name, def string) string {
	if value, ok := d.Extract(name); ok {
		return value
	}
	return def
}

// ErrInvalidBool is returned by ExtractBool for values other than true/false.
var ErrInvalidBool = errors.Base("invalid boolean value")

// ExtractBool removes the attribute and parses it as "true" or "false"
// (case-insensitive). Absent attributes yield def; unparsable ones yield def
// and ErrInvalidBool.
func (d *Directive) ExtractBool(name string, def bool) (bool, error) {
	value, ok := d.Extract(name)
	if !ok {
		return def, nil
	}
	b, err := ParseBool(value)
	if err != nil {
		return def, errors.Errorf("attribute '%s' of directive '%s': %w", name, d.Name, err)
	}
	return b, nil
}

// ParseBool accepts "true" and "false" in any case, ignoring surrounding space.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errors.WithDetails(ErrInvalidBool, "value", value)
	}
}
