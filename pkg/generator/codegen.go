package generator

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/parser"
	"github.com/walteh/t4gen/pkg/settings"
)

// Imports every generated class needs.
var requiredImports = []string{"System.Collections.Generic", "System.Text"}

const (
	transformMethodName = "TransformText"
	formatMethodName    = "FormatObject"
	outputField         = "_output"
)

type helper struct {
	segment *parser.TemplateSegment
	file    string
}

// run holds the state of one generation.
type run struct {
	parsed   *parser.ParsedTemplate
	settings *settings.TemplateSettings
	opts     []codewriter.Option
}

func newRun(parsed *parser.ParsedTemplate, s *settings.TemplateSettings, opts []codewriter.Option) *run {
	all := make([]codewriter.Option, 0, len(opts)+1)
	all = append(all, opts...)
	if s.PragmaMode() == settings.LinePragmasRelative {
		all = append(all, codewriter.WithRelativePragmas(pragmaBase(parsed, s)))
	}
	return &run{parsed: parsed, settings: s, opts: all}
}

func pragmaBase(parsed *parser.ParsedTemplate, s *settings.TemplateSettings) string {
	if s.RelativeLinePragmasBaseDirectory != "" {
		return s.RelativeLinePragmasBaseDirectory
	}
	if s.PragmaBaseFallback == settings.FallbackRootTemplate && parsed.RootFileName != "" {
		return filepath.Dir(parsed.RootFileName)
	}
	return ""
}

// generate writes the class members first so processors can still add
// imports, then composes the header around them.
func (r *run) generate(ctx context.Context) (string, error) {
	s := r.settings
	fileScoped := s.FileScopedNamespace()

	members := codewriter.New(r.opts...)
	depth := 1
	if !fileScoped {
		depth = 2
	}
	members.Reset(strings.Repeat(members.IndentUnit(), depth))

	members.WriteLinef("private readonly StringBuilder %s = new StringBuilder(1024);", outputField)
	members.BlankLine(1)
	members.AutoProperty("IFormatProvider", "FormatProvider", "System.Globalization.CultureInfo.InvariantCulture",
		codewriter.AccessPublic, codewriter.AccessPublic, codewriter.ModNone)
	members.BlankLine(1)

	if err := r.processDirectives(ctx, members); err != nil {
		return "", err
	}

	helpers, err := r.transformMethod(members)
	if err != nil {
		return "", err
	}
	r.helperMembers(members, helpers)
	formatObject(members)

	return r.compose(members, fileScoped), nil
}

func (r *run) processDirectives(ctx context.Context, members *codewriter.Writer) error {
	log := zerolog.Ctx(ctx)
	s := r.settings

	for _, np := range s.Processors {
		nested := members.Nested()
		if err := np.Processor.StartProcessingRun(ctx, nested, r.parsed.Source, r.parsed.Errors); err != nil {
			return errors.Errorf("%w: starting '%s': %s", ErrProcessorFailed, np.Name, err.Error())
		}
		members.RawWrite(nested.String())
	}

	for _, cd := range s.CustomDirectives {
		processor, ok := s.Processor(cd.ProcessorName)
		if !ok {
			return errors.Errorf("%w: '%s' is not active", ErrProcessorFailed, cd.ProcessorName)
		}
		nested := members.Nested()
		if err := processor.ProcessDirective(ctx, nested, cd.Directive.Name, cd.Directive.Attributes); err != nil {
			r.parsed.LogError(err.Error(), cd.Directive.StartLocation())
			continue
		}
		members.RawWrite(nested.String())
	}

	for _, np := range s.Processors {
		if err := np.Processor.FinishProcessingRun(ctx); err != nil {
			return errors.Errorf("%w: finishing '%s': %s", ErrProcessorFailed, np.Name, err.Error())
		}
		s.Imports.Add(np.Processor.ImportsForProcessingRun()...)
		s.References.Add(np.Processor.ReferencesForProcessingRun()...)
	}

	if len(s.CustomDirectives) > 0 {
		members.EnsureNewline()
		members.BlankLine(1)
	}

	log.Debug().
		Int("processors", len(s.Processors)).
		Int("directives", len(s.CustomDirectives)).
		Msg("processed custom directives")
	return nil
}

func (r *run) segmentFile(seg *parser.TemplateSegment) string {
	if f := seg.StartLocation().File; f != "" {
		return f
	}
	return r.parsed.RootFileName
}

func (r *run) transformMethod(w *codewriter.Writer) ([]helper, error) {
	pragmas := r.settings.PragmaMode() != settings.LinePragmasOff
	mapped := false

	var helpers []helper

	scope := w.Method(transformMethodName, "string", codewriter.AccessPublic, codewriter.ModNone)
	defer scope.Close()

	w.WriteLinef("%s.Clear();", outputField)

	for _, seg := range r.parsed.Content() {
		if seg.Type == parser.SegmentHelper {
			if seg.Text != "" {
				helpers = append(helpers, helper{segment: seg, file: r.segmentFile(seg)})
			}
			continue
		}

		if pragmas {
			w.LinePragma(seg.StartLocation().Line, r.segmentFile(seg))
			mapped = true
		}

		switch seg.Type {
		case parser.SegmentBlock:
			w.WriteBlock(seg.Text)
		case parser.SegmentExpression:
			w.WriteLinef("%s.Append(%s(%s));", outputField, formatMethodName, strings.TrimSpace(seg.Text))
		case parser.SegmentContent:
			writeContent(w, seg.Text)
		default:
			return nil, errors.WithDetails(ErrUnknownSegment, "type", seg.Type.String(), "location", seg.StartLocation().String())
		}
	}

	if mapped {
		w.LineDefault()
	}
	w.WriteLinef("return %s.ToString();", outputField)
	return helpers, nil
}

func writeContent(w *codewriter.Writer, text string) {
	quoted, multiline := w.QuoteString(text)
	if !multiline {
		w.WriteLinef("%s.Append(%s);", outputField, quoted)
		return
	}

	w.WriteLinef("%s.Append(", outputField)
	w.Indent()
	quoted, _ = w.QuoteString(text)
	w.WriteLiteral(quoted)
	w.RawWriteLine("")
	w.PopIndent()
	w.WriteLine(");")
}

func (r *run) helperMembers(w *codewriter.Writer, helpers []helper) {
	pragmas := r.settings.PragmaMode() != settings.LinePragmasOff
	for _, h := range helpers {
		if pragmas {
			w.LinePragma(h.segment.StartLocation().Line, h.file)
		}
		w.WriteBlock(h.segment.Text)
		if pragmas {
			w.LineDefault()
		}
		w.BlankLine(1)
	}
}

// formatObject writes the culture-aware formatter used by expression
// segments. Formatters resolved by reflection are cached per runtime type.
func formatObject(w *codewriter.Writer) {
	w.WriteLine("private readonly Dictionary<Type, Func<object, string>> _formatterCache = new Dictionary<Type, Func<object, string>>();")
	w.BlankLine(1)

	scope := w.Method(formatMethodName, "string", codewriter.AccessPrivate, codewriter.ModNone, codewriter.Param{Type: "object", Name: "value"})
	defer scope.Close()

	w.If("value == null", func() {
		w.WriteLine("throw new ArgumentNullException(nameof(value));")
	}, nil)
	w.If("value is IConvertible convertible", func() {
		w.WriteLine("return convertible.ToString(FormatProvider);")
	}, nil)
	w.WriteLine("var type = value.GetType();")
	w.If("!_formatterCache.TryGetValue(type, out var formatter)", func() {
		w.WriteLine("var toString = type.GetMethod(\"ToString\", new[] { typeof(IFormatProvider) });")
		w.If("toString != null", func() {
			w.WriteLine("formatter = v => (string)toString.Invoke(v, new object[] { FormatProvider });")
		}, func() {
			w.WriteLine("formatter = v => v.ToString();")
		})
		w.WriteLine("_formatterCache.Add(type, formatter);")
	}, nil)
	w.WriteLine("return formatter(value);")
}

func (r *run) classAttributes() []string {
	var attrs []string
	for _, np := range r.settings.Processors {
		if p, ok := np.Processor.(directives.ClassAttributeProvider); ok {
			attrs = append(attrs, p.TemplateClassCustomAttributes()...)
		}
	}
	return attrs
}

func (r *run) compose(members *codewriter.Writer, fileScoped bool) string {
	s := r.settings
	w := codewriter.New(r.opts...)

	imports := s.Imports
	imports.Add(requiredImports...)
	for _, ns := range imports.Values() {
		w.Using(ns)
	}
	w.BlankLine(1)

	var nsScope *codewriter.Scope
	if fileScoped {
		w.FileScopedNamespace(s.Namespace)
	} else {
		nsScope = w.Namespace(s.Namespace)
	}

	for _, attr := range r.classAttributes() {
		w.Attribute(attr)
	}

	access := codewriter.AccessPublic
	if s.InternalVisibility {
		access = codewriter.AccessInternal
	}
	class := w.Class(s.Name, s.Inherits, access, codewriter.ModPartial)

	body := strings.TrimRight(members.String(), "\r\n")
	w.RawWrite(body)
	w.RawWriteLine("")

	class.Close()
	nsScope.Close()

	return w.String()
}
