// Package host runs templates end to end: it loads includes and assembly
// references from a filesystem, supplies parameter values and host options,
// and names the output file.
package host

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/diagnostic"
	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/generator"
	"github.com/walteh/t4gen/pkg/parser"
	"github.com/walteh/t4gen/pkg/position"
	"github.com/walteh/t4gen/pkg/settings"
)

var ErrIncludeNotFound = errors.Base("include file not found")

// DefaultOutputExtension replaces the template's extension when no output
// directive names one.
const DefaultOutputExtension = ".cs"

// Result is what one ProcessTemplate call produced.
type Result struct {
	// Text is empty when Errors has errors.
	Text       string
	OutputFile string
	Encoding   encoding.Encoding
	Settings   *settings.TemplateSettings
	Parsed     *parser.ParsedTemplate
	Errors     *diagnostic.Collection
}

// TemplateGenerator is the host of a template run. Configure it, then call
// ProcessTemplate; a generator runs one template at a time. Several
// generators may share a Registry.
type TemplateGenerator struct {
	fs afero.Fs

	Errors         *diagnostic.Collection
	Imports        []string
	IncludePaths   []string
	ReferencePaths []string

	UseRelativeLinePragmas           bool
	RelativeLinePragmasBaseDirectory string
	PragmaBaseFallback               settings.PragmaBaseFallback

	// DefaultExtension and DefaultEncoding are used when no output directive
	// names one.
	DefaultExtension string
	DefaultEncoding  string

	TemplateFile string
	OutputFile   string

	parameters    parameterTable
	registry      *directives.Registry
	writerOptions []codewriter.Option
}

type Option func(*TemplateGenerator)

// WithRegistry shares a processor registry between generators. The registry
// keeps whatever assembly resolver it was built with.
func WithRegistry(r *directives.Registry) Option {
	return func(g *TemplateGenerator) {
		g.registry = r
	}
}

// WithProcessorTypes provides the compiled-in processor types that external
// processor declarations can name.
func WithProcessorTypes(types directives.TypeTable) Option {
	return func(g *TemplateGenerator) {
		g.registry = directives.NewRegistry(directives.WithAssemblyResolver(g), directives.WithLoader(types))
	}
}

// WithWriterOptions sets the layout of the generated code.
func WithWriterOptions(opts ...codewriter.Option) Option {
	return func(g *TemplateGenerator) {
		g.writerOptions = append(g.writerOptions, opts...)
	}
}

func NewTemplateGenerator(fs afero.Fs, opts ...Option) *TemplateGenerator {
	g := &TemplateGenerator{
		fs:         fs,
		Errors:     diagnostic.NewCollection(),
		Imports:    []string{"System"},
		parameters: parameterTable{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = directives.NewRegistry(directives.WithAssemblyResolver(g), directives.WithLoader(directives.TypeTable{}))
	}
	return g
}

func (g *TemplateGenerator) Registry() *directives.Registry {
	return g.registry
}

// AddDirectiveProcessor declares an external processor type and the
// assembly reference that provides it.
func (g *TemplateGenerator) AddDirectiveProcessor(name, typeName, assembly string) {
	g.registry.AddExternal(name, typeName, assembly)
}

func (g *TemplateGenerator) AddParameter(processor, directive, name, value string) {
	g.parameters[ParameterKey{Processor: processor, Directive: directive, Name: name}] = value
}

// TryAddParameter parses and adds a parameter, reporting whether it parsed.
func (g *TemplateGenerator) TryAddParameter(unparsed string) bool {
	key, value, ok := TryParseParameter(unparsed)
	if !ok {
		return false
	}
	g.parameters[key] = value
	return true
}

// ResolveParameterValue looks the parameter up for the given processor and
// directive, then by name alone.
func (g *TemplateGenerator) ResolveParameterValue(processor, directive, name string) (string, bool) {
	return g.parameters.lookup(processor, directive, name)
}

func (g *TemplateGenerator) HostOption(name string) (any, bool) {
	switch name {
	case settings.HostOptionUseRelativeLinePragmas:
		return g.UseRelativeLinePragmas, true
	default:
		return nil, false
	}
}

// LoadIncludeText looks for requested next to the including file, then in
// each include path, then as given.
func (g *TemplateGenerator) LoadIncludeText(ctx context.Context, requested, fromFile string) (string, string, error) {
	var candidates []string
	if filepath.IsAbs(requested) {
		candidates = append(candidates, requested)
	} else {
		from := fromFile
		if from == "" {
			from = g.TemplateFile
		}
		if from != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(from), requested))
		}
		for _, dir := range g.IncludePaths {
			candidates = append(candidates, filepath.Join(dir, requested))
		}
		candidates = append(candidates, requested)
	}

	for _, candidate := range candidates {
		candidate = filepath.Clean(candidate)
		ok, err := afero.Exists(g.fs, candidate)
		if err != nil || !ok {
			continue
		}
		data, err := afero.ReadFile(g.fs, candidate)
		if err != nil {
			return "", "", errors.Errorf("reading include '%s': %w", candidate, err)
		}
		zerolog.Ctx(ctx).Trace().Str("requested", requested).Str("resolved", candidate).Msg("loaded include")
		return string(data), candidate, nil
	}

	return "", "", errors.Errorf("%w: '%s'", ErrIncludeNotFound, requested)
}

// ResolveAssemblyReference finds reference as given or in one of the
// reference paths, adding a ".dll" suffix when it has none. It returns an
// empty location when nothing matches.
func (g *TemplateGenerator) ResolveAssemblyReference(ctx context.Context, reference string) (string, error) {
	names := []string{reference}
	lower := strings.ToLower(reference)
	if !strings.HasSuffix(lower, ".dll") && !strings.HasSuffix(lower, ".exe") {
		names = append(names, reference+".dll")
	}

	for _, name := range names {
		if filepath.IsAbs(name) {
			if ok, _ := afero.Exists(g.fs, name); ok {
				return name, nil
			}
			continue
		}
		for _, dir := range g.ReferencePaths {
			path := filepath.Join(dir, name)
			if ok, _ := afero.Exists(g.fs, path); ok {
				return path, nil
			}
		}
	}

	zerolog.Ctx(ctx).Debug().Str("reference", reference).Strs("reference_paths", g.ReferencePaths).Msg("assembly reference not found")
	return "", nil
}

// SetFileExtension replaces or appends the extension of OutputFile.
func (g *TemplateGenerator) SetFileExtension(extension string) {
	if g.OutputFile == "" {
		return
	}
	extension = strings.TrimLeft(extension, ".")
	if ext := filepath.Ext(g.OutputFile); ext != "" {
		g.OutputFile = strings.TrimSuffix(g.OutputFile, ext) + "." + extension
		return
	}
	g.OutputFile += "." + extension
}

func (g *TemplateGenerator) initializeForRun(inputFile string) {
	g.Errors = diagnostic.NewCollection()
	g.TemplateFile = inputFile
	g.OutputFile = strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + DefaultOutputExtension
}

// ParseTemplate parses content as inputFile, resolving includes through g.
func (g *TemplateGenerator) ParseTemplate(ctx context.Context, inputFile, content string) *parser.ParsedTemplate {
	g.TemplateFile = inputFile
	return parser.Parse(ctx, inputFile, content, g)
}

func (g *TemplateGenerator) settingsOptions() settings.Options {
	return settings.Options{
		Registry:                         g.registry,
		Host:                             g,
		Parameters:                       g,
		Imports:                          g.Imports,
		RelativeLinePragmasBaseDirectory: g.RelativeLinePragmasBaseDirectory,
		PragmaBaseFallback:               g.PragmaBaseFallback,
		DefaultExtension:                 g.DefaultExtension,
		DefaultEncoding:                  g.DefaultEncoding,
	}
}

// ProcessTemplate parses, resolves and generates inputFile. Template
// problems are reported in Result.Errors and, when any is an error, as a
// returned error matching generator.ErrTemplateHasErrors; the Result is
// returned in both cases. Wiring failures return a nil Result.
func (g *TemplateGenerator) ProcessTemplate(ctx context.Context, inputFile, content string) (*Result, error) {
	g.initializeForRun(inputFile)

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", uuid.NewString()).
		Str("template", inputFile).
		Logger()
	ctx = logger.WithContext(ctx)

	parsed := g.ParseTemplate(ctx, inputFile, content)

	s, err := settings.Resolve(ctx, parsed, g.settingsOptions())
	if err != nil {
		g.Errors.AddAll(parsed.Errors)
		g.Errors.Add(diagnostic.NewError(err.Error(), position.Empty, inputFile))
		return nil, errors.Errorf("resolving settings of '%s': %w", inputFile, err)
	}

	if s.Extension != "" {
		g.SetFileExtension(s.Extension)
	}

	engine := generator.NewEngine(generator.WithWriterOptions(g.writerOptions...))
	text, genErr := engine.Generate(ctx, parsed, s)
	g.Errors.AddAll(parsed.Errors)

	res := &Result{
		Text:       text,
		OutputFile: g.OutputFile,
		Encoding:   s.Encoding,
		Settings:   s,
		Parsed:     parsed,
		Errors:     g.Errors,
	}

	if genErr != nil {
		if errors.Is(genErr, generator.ErrTemplateHasErrors) {
			logger.Debug().Int("diagnostics", g.Errors.Len()).Msg("template run failed")
			return res, genErr
		}
		return nil, errors.Errorf("generating '%s': %w", inputFile, genErr)
	}

	logger.Debug().Str("output", g.OutputFile).Msg("template run complete")
	return res, nil
}
