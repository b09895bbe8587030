package settings

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/parser"
)

var (
	ErrNoProcessor          = errors.Base("custom directive does not specify a processor")
	ErrUnsupportedDirective = errors.Base("directive processor does not support directive")
	ErrIncludeDirective     = errors.Base("include directive reached settings resolution")
	ErrUnknownEncoding      = errors.Base("unknown encoding")
)

// HostOptionUseRelativeLinePragmas is the host option that sets the default
// for the template directive's relativeLinePragmas attribute.
const HostOptionUseRelativeLinePragmas = "UseRelativeLinePragmas"

// HostOptions exposes named host settings.
type HostOptions interface {
	HostOption(name string) (any, bool)
}

// HostOptionMap is a HostOptions backed by a map.
type HostOptionMap map[string]any

func (m HostOptionMap) HostOption(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

type Options struct {
	// Registry resolves processor names. A nil Registry means one with only
	// the built-in processors.
	Registry *directives.Registry
	Host     HostOptions
	// Parameters is handed to every processor implementing
	// directives.ParameterConsumer.
	Parameters directives.ParameterValueResolver

	// Imports are added after the seeded "System" import.
	Imports []string

	RelativeLinePragmasBaseDirectory string
	PragmaBaseFallback               PragmaBaseFallback

	// DefaultExtension and DefaultEncoding apply when no output directive
	// sets them. An empty DefaultEncoding means UTF-8.
	DefaultExtension string
	DefaultEncoding  string
}

// Resolve walks the directives of parsed once, in source order. Problems in
// the template are recorded on parsed.Errors; the returned error is reserved
// for wiring failures that make generation impossible.
func Resolve(ctx context.Context, parsed *parser.ParsedTemplate, opts Options) (*TemplateSettings, error) {
	log := zerolog.Ctx(ctx)

	s := newTemplateSettings()
	s.Imports.Add(opts.Imports...)
	s.Extension = opts.DefaultExtension
	s.RelativeLinePragmasBaseDirectory = opts.RelativeLinePragmasBaseDirectory
	s.PragmaBaseFallback = opts.PragmaBaseFallback

	enc, err := lookupEncoding(opts.DefaultEncoding)
	if err != nil {
		return nil, err
	}
	s.Encoding = enc
	s.EncodingName = opts.DefaultEncoding

	r := &resolver{
		parsed:   parsed,
		settings: s,
		registry: opts.Registry,
		params:   opts.Parameters,
	}
	if r.registry == nil {
		r.registry = directives.NewRegistry()
	}

	relative := hostBool(opts.Host, HostOptionUseRelativeLinePragmas)

	for _, dt := range parsed.Directives() {
		switch strings.ToLower(dt.Name) {
		case "template":
			relative = r.template(dt, relative)
		case "class":
			if name, ok := dt.Extract("name"); ok && name != "" {
				s.Name = name
			} else {
				parsed.LogError("Missing name attribute in class directive", dt.StartLocation())
			}
		case "namespace":
			if ns, ok := dt.Extract("name"); ok && ns != "" {
				s.Namespace = ns
			} else {
				parsed.LogError("Missing name attribute in namespace directive", dt.StartLocation())
			}
		case "import":
			ns, ok := dt.Extract("namespace")
			if !ok || ns == "" {
				parsed.LogError("Missing namespace attribute in import directive", dt.StartLocation())
				continue
			}
			s.Imports.Add(ns)
		case "output":
			r.output(dt)
		case "include":
			return nil, errors.WithDetails(ErrIncludeDirective, "location", dt.StartLocation().String())
		case directives.ParameterDirectiveName:
			if err := r.addDirective(ctx, directives.ParameterProcessorName, dt); err != nil {
				return nil, err
			}
			continue
		default:
			processor, ok := dt.Extract("Processor")
			if !ok || processor == "" {
				return nil, errors.Errorf("%w: Custom directive '%s' does not specify a processor", ErrNoProcessor, dt.Name)
			}
			if err := r.addDirective(ctx, processor, dt); err != nil {
				return nil, err
			}
			continue
		}

		complainExcessAttributes(parsed, dt)
	}

	if s.Name == "" {
		s.Name = DefaultClassName
	}
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}
	s.RelativeLinePragmas = relative

	log.Debug().
		Str("class", s.FullName()).
		Str("language", s.Language).
		Int("custom_directives", len(s.CustomDirectives)).
		Int("processors", len(s.Processors)).
		Msg("resolved template settings")

	return s, nil
}

type resolver struct {
	parsed   *parser.ParsedTemplate
	settings *TemplateSettings
	registry *directives.Registry
	params   directives.ParameterValueResolver
}

func (r *resolver) template(dt *parser.Directive, relative bool) bool {
	s := r.settings

	if lang, ok := dt.Extract("language"); ok {
		s.Language = lang
		if !IsCSharp(lang) {
			r.parsed.LogError("Language '"+lang+"' is not supported; only C# templates can be preprocessed", dt.StartLocation())
		}
	}
	if v, ok := dt.Extract("langversion"); ok {
		s.LangVersion = v
	}
	s.Debug = r.extractBool(dt, "debug", false)
	if inherits, ok := dt.Extract("inherits"); ok {
		s.Inherits = inherits
	}
	relative = r.extractBool(dt, "relativeLinePragmas", relative)
	s.LinePragmas = r.extractBool(dt, "linePragmas", true)
	if visibility, ok := dt.Extract("visibility"); ok {
		s.InternalVisibility = strings.EqualFold(visibility, "internal")
	}
	return relative
}

func (r *resolver) extractBool(dt *parser.Directive, name string, def bool) bool {
	v, err := dt.ExtractBool(name, def)
	if err != nil {
		r.parsed.LogWarning("Invalid boolean value for attribute '"+name+"' in "+dt.Name+" directive", dt.StartLocation())
	}
	return v
}

func (r *resolver) output(dt *parser.Directive) {
	if ext, ok := dt.Extract("extension"); ok {
		r.settings.Extension = ext
	}
	name, ok := dt.Extract("encoding")
	if !ok {
		return
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		r.parsed.LogError("Unknown output encoding '"+name+"'", dt.StartLocation())
		return
	}
	r.settings.Encoding = enc
	r.settings.EncodingName = name
}

func (r *resolver) addDirective(ctx context.Context, processorName string, dt *parser.Directive) error {
	s := r.settings

	processor, ok := s.Processor(processorName)
	if !ok {
		p, err := r.registry.New(ctx, processorName)
		if err != nil {
			return errors.Errorf("directive '%s': %w", dt.Name, err)
		}
		if consumer, ok := p.(directives.ParameterConsumer); ok && r.params != nil {
			consumer.SetParameterResolver(r.params)
		}
		s.Processors = append(s.Processors, NamedProcessor{Name: processorName, Processor: p})
		processor = p
	}

	if !processor.IsDirectiveSupported(dt.Name) {
		return errors.Errorf("%w: Directive processor '%s' does not support directive '%s'", ErrUnsupportedDirective, processorName, dt.Name)
	}

	s.CustomDirectives = append(s.CustomDirectives, CustomDirective{ProcessorName: processorName, Directive: dt})
	return nil
}

func complainExcessAttributes(parsed *parser.ParsedTemplate, dt *parser.Directive) {
	if len(dt.Attributes) == 0 {
		return
	}
	parsed.LogWarning("Unknown attributes "+strings.Join(dt.Attributes.Names(), ", ")+" found in "+dt.Name+" directive.", dt.StartLocation())
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return unicode.UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.Errorf("%w '%s': %s", ErrUnknownEncoding, name, err.Error())
	}
	if enc == nil {
		return nil, errors.Errorf("%w '%s': not supported", ErrUnknownEncoding, name)
	}
	return enc, nil
}

func hostBool(host HostOptions, name string) bool {
	if host == nil {
		return false
	}
	v, ok := host.HostOption(name)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := parser.ParseBool(b)
		return err == nil && parsed
	default:
		return false
	}
}
