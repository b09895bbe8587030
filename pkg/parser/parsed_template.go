package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/diagnostic"
	"github.com/walteh/t4gen/pkg/position"
)

// IncludeResolver loads the text of an included template. fromFile is the
// file that contains the include directive. The returned resolvedName is the
// canonical name used to detect repeated includes.
type IncludeResolver interface {
	LoadIncludeText(ctx context.Context, requested, fromFile string) (content string, resolvedName string, err error)
}

// IncludeResolverFunc adapts a function to IncludeResolver.
type IncludeResolverFunc func(ctx context.Context, requested, fromFile string) (string, string, error)

func (f IncludeResolverFunc) LoadIncludeText(ctx context.Context, requested, fromFile string) (string, string, error) {
	return f(ctx, requested, fromFile)
}

// ParsedTemplate is the ordered segment list of a template and everything it
// includes, plus the diagnostics collected while building it.
type ParsedTemplate struct {
	RootFileName string
	RawSegments  []Segment
	Errors       *diagnostic.Collection

	// Source is the unparsed text of the root template.
	Source string

	importedHelpers []Segment
}

func NewParsedTemplate(rootFileName string) *ParsedTemplate {
	return &ParsedTemplate{
		RootFileName: rootFileName,
		Errors:       diagnostic.NewCollection(),
	}
}

// Directives returns the directive segments in source order.
func (p *ParsedTemplate) Directives() []*Directive {
	var out []*Directive
	for _, seg := range p.RawSegments {
		if d, ok := seg.(*Directive); ok {
			out = append(out, d)
		}
	}
	return out
}

// Content returns every non-directive segment in order.
func (p *ParsedTemplate) Content() []*TemplateSegment {
	var out []*TemplateSegment
	for _, seg := range p.RawSegments {
		if ts, ok := seg.(*TemplateSegment); ok {
			out = append(out, ts)
		}
	}
	return out
}

func (p *ParsedTemplate) LogError(message string, loc position.Location) {
	p.log(message, loc, false)
}

func (p *ParsedTemplate) LogWarning(message string, loc position.Location) {
	p.log(message, loc, true)
}

func (p *ParsedTemplate) log(message string, loc position.Location, warning bool) {
	err := diagnostic.NewError(message, loc, p.RootFileName)
	err.IsWarning = warning
	p.Errors.Add(err)
}

// Parse builds a ParsedTemplate from the root template text. Problems are
// recorded on the returned template's Errors; a lexical failure stops the
// parse at the failing location.
func Parse(ctx context.Context, fileName, content string, resolver IncludeResolver) *ParsedTemplate {
	tmpl := NewParsedTemplate(fileName)
	tmpl.Source = content

	tok, err := NewTokenizer(fileName, content)
	if err == nil {
		err = tmpl.parse(ctx, resolver, newIncludeSet(fileName), tok, false)
	}
	if err != nil {
		tmpl.recordFailure(err)
		tmpl.appendImportedHelpers()
	}

	zerolog.Ctx(ctx).Debug().
		Str("file", fileName).
		Int("segments", len(tmpl.RawSegments)).
		Int("diagnostics", tmpl.Errors.Len()).
		Msg("parsed template")

	return tmpl
}

func (p *ParsedTemplate) recordFailure(err error) {
	var perr *ParseError
	if errors.As(err, &perr) {
		p.LogError(perr.Message, perr.Location)
		return
	}
	p.LogError(err.Error(), position.Empty)
}

// includeSet holds the resolved names of every file included during one
// top-level parse, plus the files currently being parsed. Names compare
// case-insensitively.
type includeSet struct {
	visited map[string]struct{}
	active  map[string]int
}

func newIncludeSet(root string) *includeSet {
	s := &includeSet{visited: map[string]struct{}{}, active: map[string]int{}}
	s.push(root)
	return s
}

// add reports whether name was not yet present.
func (s *includeSet) add(name string) bool {
	key := strings.ToLower(name)
	if _, ok := s.visited[key]; ok {
		return false
	}
	s.visited[key] = struct{}{}
	return true
}

// inProgress reports whether name is being parsed further up the include chain.
func (s *includeSet) inProgress(name string) bool {
	return s.active[strings.ToLower(name)] > 0
}

func (s *includeSet) push(name string) {
	s.active[strings.ToLower(name)]++
}

func (s *includeSet) pop(name string) {
	key := strings.ToLower(name)
	if s.active[key]--; s.active[key] <= 0 {
		delete(s.active, key)
	}
}

func (p *ParsedTemplate) parse(ctx context.Context, resolver IncludeResolver, included *includeSet, tok *Tokenizer, isImport bool) error {
	skip := false
	deferToHelpers := false

	for {
		if !skip {
			if _, err := tok.Advance(); err != nil {
				return err
			}
		}
		skip = false

		if tok.State() == StateEOF {
			break
		}

		var seg *TemplateSegment
		switch tok.State() {
		case StateContent:
			seg = p.segmentFor(tok, SegmentContent)
		case StateExpression:
			seg = p.segmentFor(tok, SegmentExpression)
		case StateBlock:
			seg = p.segmentFor(tok, SegmentBlock)
		case StateHelper:
			// everything after the first helper of an included file trails the template
			deferToHelpers = isImport
			seg = p.segmentFor(tok, SegmentHelper)
		case StateDirective:
			directive, err := p.drainDirective(tok)
			if err != nil {
				return err
			}
			// the state that ended the directive has not been consumed yet
			skip = tok.State() != StateDirective && tok.State() != StateEOF
			if directive == nil {
				continue
			}
			if directive.Is("include") {
				if err := p.include(ctx, resolver, included, directive); err != nil {
					return err
				}
				continue
			}
			p.RawSegments = append(p.RawSegments, directive)
		default:
			return errors.Errorf("unexpected tokenizer state %s", tok.State())
		}

		if seg == nil {
			continue
		}
		if deferToHelpers {
			p.importedHelpers = append(p.importedHelpers, seg)
		} else {
			p.RawSegments = append(p.RawSegments, seg)
		}
	}

	if !isImport {
		p.appendImportedHelpers()
	}
	return nil
}

func (p *ParsedTemplate) segmentFor(tok *Tokenizer, typ SegmentType) *TemplateSegment {
	if tok.Value() == "" {
		return nil
	}
	seg := NewTemplateSegment(typ, tok.Value(), tok.Location())
	seg.setTagStartLocation(tok.TagStartLocation())
	seg.setEndLocation(tok.TagEndLocation())
	return seg
}

// drainDirective reads name/value pairs until the directive tag closes. It
// returns nil when the tag carried no name.
func (p *ParsedTemplate) drainDirective(tok *Tokenizer) (*Directive, error) {
	opened := tok.TagStartLocation()

	var directive *Directive
	var attName string
	var attLoc position.Location
	pending := false

	flushPending := func() {
		if pending {
			p.LogError(fmt.Sprintf("Attribute '%s' has no value", attName), attLoc)
			pending = false
		}
	}

	for {
		state, err := tok.Advance()
		if err != nil {
			return nil, err
		}

		switch state {
		case StateDirectiveName:
			if directive == nil {
				directive = NewDirective(tok.Value(), tok.Location())
				directive.setTagStartLocation(tok.TagStartLocation())
				continue
			}
			flushPending()
			attName = tok.Value()
			attLoc = tok.Location()
			pending = true

		case StateDirectiveValue:
			if !pending || directive == nil {
				p.LogError("Directive value without name", tok.Location())
				continue
			}
			directive.Attributes.Set(attName, tok.Value())
			pending = false

		case StateDirective:
			flushPending()
			if directive == nil {
				p.LogError("Directive has no name", opened)
				return nil, nil
			}
			directive.setEndLocation(tok.TagEndLocation())
			return directive, nil

		default:
			// the tag closed without a terminating directive state
			flushPending()
			if directive == nil {
				p.LogError("Directive has no name", opened)
			}
			return directive, nil
		}
	}
}

func (p *ParsedTemplate) include(ctx context.Context, resolver IncludeResolver, included *includeSet, directive *Directive) error {
	rawName, ok := directive.Attributes.Get("file")
	if !ok {
		p.LogError("Include directive has no file attribute", directive.StartLocation())
		return nil
	}

	fileName := fixWindowsPath(rawName)

	once := false
	if onceStr, ok := directive.Attributes.Get("once"); ok {
		parsed, err := ParseBool(onceStr)
		if err != nil {
			p.LogError(fmt.Sprintf("Include once attribute has unknown value '%s'", onceStr), directive.StartLocation())
		} else {
			once = parsed
		}
	}

	logger := zerolog.Ctx(ctx).With().Str("include", fileName).Logger()

	if resolver == nil {
		p.LogError(fmt.Sprintf("Could not resolve include file '%s'.", rawName), directive.StartLocation())
		return nil
	}

	content, resolvedName, err := resolver.LoadIncludeText(ctx, fileName, directive.StartLocation().File)
	if err != nil {
		logger.Debug().Err(err).Msg("include not resolved")
		p.LogError(fmt.Sprintf("Could not resolve include file '%s'.", rawName), directive.StartLocation())
		return nil
	}

	if !included.add(resolvedName) && once {
		logger.Debug().Str("resolved", resolvedName).Msg("skipping include already visited")
		return nil
	}

	if included.inProgress(resolvedName) {
		logger.Debug().Str("resolved", resolvedName).Msg("skipping recursive include")
		p.LogError(fmt.Sprintf("Recursive include of '%s'", rawName), directive.StartLocation())
		return nil
	}

	tok, err := NewTokenizer(resolvedName, content)
	if err != nil {
		return err
	}

	logger.Trace().Str("resolved", resolvedName).Msg("parsing include")
	included.push(resolvedName)
	defer included.pop(resolvedName)
	return p.parse(ctx, resolver, included, tok, true)
}

func (p *ParsedTemplate) appendImportedHelpers() {
	p.RawSegments = append(p.RawSegments, p.importedHelpers...)
	p.importedHelpers = nil
}

func fixWindowsPath(path string) string {
	if filepath.Separator == '/' {
		return strings.ReplaceAll(path, `\`, "/")
	}
	return path
}
