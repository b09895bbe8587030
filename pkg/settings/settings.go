// Package settings turns the directives of a parsed template into the
// configuration used for code generation.
package settings

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/parser"
)

const (
	DefaultLanguage  = "C#"
	DefaultClassName = "GeneratedTextTransformation"
	DefaultNamespace = "N42"
)

// PragmaBaseFallback picks the base directory for relative line pragmas when
// none is configured.
type PragmaBaseFallback int

const (
	// FallbackRootTemplate uses the directory of the root template.
	FallbackRootTemplate PragmaBaseFallback = iota
	// FallbackSegmentFile uses the directory of the file each segment came from.
	FallbackSegmentFile
)

func (f PragmaBaseFallback) String() string {
	switch f {
	case FallbackRootTemplate:
		return "root"
	case FallbackSegmentFile:
		return "segment"
	default:
		return "unknown"
	}
}

// ParsePragmaBaseFallback accepts the names returned by String.
func ParsePragmaBaseFallback(s string) (PragmaBaseFallback, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "root":
		return FallbackRootTemplate, true
	case "segment":
		return FallbackSegmentFile, true
	default:
		return FallbackRootTemplate, false
	}
}

type LinePragmaMode int

const (
	LinePragmasOff LinePragmaMode = iota
	LinePragmasAbsolute
	LinePragmasRelative
)

// CustomDirective is a directive queued for the processor that owns it.
type CustomDirective struct {
	ProcessorName string
	Directive     *parser.Directive
}

// NamedProcessor is an active processor and the name it was resolved under.
type NamedProcessor struct {
	Name      string
	Processor directives.Processor
}

// TemplateSettings is the configuration of one generation run. Only Imports
// and References change after Resolve returns, when processors contribute to
// them.
type TemplateSettings struct {
	Language           string
	LangVersion        string
	Debug              bool
	Inherits           string
	InternalVisibility bool

	LinePragmas                      bool
	RelativeLinePragmas              bool
	RelativeLinePragmasBaseDirectory string
	PragmaBaseFallback               PragmaBaseFallback

	Name      string
	Namespace string

	Extension    string
	EncodingName string
	Encoding     encoding.Encoding

	Imports    *OrderedSet
	References *OrderedSet

	CustomDirectives []CustomDirective
	Processors       []NamedProcessor
}

func newTemplateSettings() *TemplateSettings {
	return &TemplateSettings{
		Language:    DefaultLanguage,
		LinePragmas: true,
		Imports:     NewOrderedSet("System"),
		References:  NewOrderedSet(),
	}
}

// Processor returns the active processor registered as name.
func (s *TemplateSettings) Processor(name string) (directives.Processor, bool) {
	for _, np := range s.Processors {
		if np.Name == name {
			return np.Processor, true
		}
	}
	return nil, false
}

// FullName is the namespace-qualified class name.
func (s *TemplateSettings) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

func (s *TemplateSettings) PragmaMode() LinePragmaMode {
	switch {
	case !s.LinePragmas:
		return LinePragmasOff
	case s.RelativeLinePragmas:
		return LinePragmasRelative
	default:
		return LinePragmasAbsolute
	}
}

// FileScopedNamespace reports whether the language version supports
// "namespace X;" declarations. Unset and symbolic versions do.
func (s *TemplateSettings) FileScopedNamespace() bool {
	v := strings.TrimSpace(s.LangVersion)
	if v == "" {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return true
	}
	return f >= 10
}

// IsCSharp reports whether language names a C# dialect.
func IsCSharp(language string) bool {
	l := strings.ToLower(strings.TrimSpace(language))
	return strings.HasPrefix(l, "c#") || l == "csharp" || l == "cs"
}

// OrderedSet keeps the first-insertion order of unique strings.
type OrderedSet struct {
	items []string
	seen  map[string]struct{}
}

func NewOrderedSet(items ...string) *OrderedSet {
	s := &OrderedSet{seen: map[string]struct{}{}}
	s.Add(items...)
	return s
}

func (s *OrderedSet) Add(items ...string) {
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := s.seen[item]; ok {
			continue
		}
		s.seen[item] = struct{}{}
		s.items = append(s.items, item)
	}
}

func (s *OrderedSet) Contains(item string) bool {
	_, ok := s.seen[item]
	return ok
}

func (s *OrderedSet) Len() int {
	return len(s.items)
}

// Values returns a copy in insertion order.
func (s *OrderedSet) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
