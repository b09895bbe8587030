package generate

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/config"
	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/finder"
	"github.com/walteh/t4gen/pkg/host"
	"github.com/walteh/t4gen/pkg/logging"
)

type Handler struct {
	fs  afero.Fs
	out io.Writer

	root           string
	configFile     string
	outDir         string
	includePaths   []string
	referencePaths []string
	parameters     []string
	relative       bool
	extension      string
	encoding       string
	jobs           int
	editorconfig   bool
	debug          bool
}

func NewGenerateCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "generate [globs...]",
		Short: "preprocess templates into C# source files",
	}

	cmd.Flags().StringVar(&me.root, "root", ".", "directory templates and the config file are found in")
	cmd.Flags().StringVarP(&me.configFile, "config", "c", "", "config file (default: t4gen.yaml, t4gen.yml or t4gen.hcl in the root)")
	cmd.Flags().StringVarP(&me.outDir, "out", "o", "", "write generated files under this directory instead of next to each template")
	cmd.Flags().StringArrayVarP(&me.includePaths, "include", "I", nil, "additional include search path")
	cmd.Flags().StringArrayVarP(&me.referencePaths, "reference-path", "P", nil, "additional assembly reference search path")
	cmd.Flags().StringArrayVarP(&me.parameters, "parameter", "a", nil, "parameter value as name=value or processor!directive!name!value")
	cmd.Flags().BoolVar(&me.relative, "relative-line-pragmas", false, "write line pragmas relative to the template root")
	cmd.Flags().StringVar(&me.extension, "extension", "", "default output extension")
	cmd.Flags().StringVar(&me.encoding, "encoding", "", "default output encoding")
	cmd.Flags().IntVarP(&me.jobs, "jobs", "j", 0, "templates processed at once (default: number of CPUs)")
	cmd.Flags().BoolVar(&me.editorconfig, "editorconfig", true, "take indentation and line endings from .editorconfig")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context(), args)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, globs []string) error {
	level := zerolog.InfoLevel
	if me.debug {
		level = zerolog.DebugLevel
	}
	logger := logging.New(os.Stderr, logging.Options{Level: level, WithColor: true, WithCaller: me.debug})
	ctx = logger.WithContext(ctx)

	cfg, err := me.loadConfig()
	if err != nil {
		return err
	}
	if len(globs) == 0 {
		globs = cfg.TemplateGlobs()
	}

	files, err := finder.NewDefaultFinder(me.fs).FindTemplates(ctx, cfg.Dir(), globs)
	if err != nil {
		return errors.Errorf("finding templates: %w", err)
	}
	if len(files) == 0 {
		logger.Warn().Strs("globs", globs).Str("root", cfg.Dir()).Msg("no templates matched")
		return nil
	}

	// One registry for the whole run so external processors resolve once.
	resolver, err := me.newGenerator(cfg, nil)
	if err != nil {
		return err
	}
	registry := resolver.Registry()

	jobs := me.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for _, file := range files {
		file := file
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := me.generateOne(ctx, cfg, registry, file, &mu); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.WithStack(err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Errorf("%d of %d templates failed: %w", len(result.Errors), len(files), err)
	}

	logger.Info().Int("templates", len(files)).Msg("generation complete")
	return nil
}

func (me *Handler) loadConfig() (*config.Config, error) {
	root := me.root
	if root == "" {
		root = "."
	}
	if _, ok := me.fs.(*afero.OsFs); ok {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Errorf("resolving root: %w", err)
		}
		root = abs
	}

	path := me.configFile
	if path == "" {
		found, err := config.Find(me.fs, root)
		if errors.Is(err, config.ErrNotFound) {
			return config.New(root), nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := config.Load(me.fs, path)
	if err != nil {
		return nil, errors.Errorf("loading config '%s': %w", path, err)
	}
	return cfg, nil
}

func (me *Handler) newGenerator(cfg *config.Config, registry *directives.Registry, opts ...host.Option) (*host.TemplateGenerator, error) {
	if registry != nil {
		opts = append(opts, host.WithRegistry(registry))
	}
	g := host.NewTemplateGenerator(me.fs, opts...)
	if err := cfg.Apply(g); err != nil {
		return nil, errors.Errorf("applying config: %w", err)
	}

	g.IncludePaths = append(g.IncludePaths, me.includePaths...)
	g.ReferencePaths = append(g.ReferencePaths, me.referencePaths...)
	if me.relative {
		g.UseRelativeLinePragmas = true
	}
	if me.extension != "" {
		g.DefaultExtension = me.extension
	}
	if me.encoding != "" {
		g.DefaultEncoding = me.encoding
	}
	for _, p := range me.parameters {
		if !g.TryAddParameter(p) {
			return nil, errors.Errorf("%w: '%s'", config.ErrInvalidParameter, p)
		}
	}
	return g, nil
}

func (me *Handler) layout(templatePath string) []codewriter.Option {
	if !me.editorconfig {
		return nil
	}
	guess := strings.TrimSuffix(templatePath, filepath.Ext(templatePath)) + host.DefaultOutputExtension
	opts, err := config.Layout(guess)
	if err != nil {
		return nil
	}
	return opts
}

func (me *Handler) generateOne(ctx context.Context, cfg *config.Config, registry *directives.Registry, file finder.FileInfo, mu *sync.Mutex) error {
	g, err := me.newGenerator(cfg, registry, host.WithWriterOptions(me.layout(file.Path)...))
	if err != nil {
		return err
	}

	res, runErr := g.ProcessTemplate(ctx, file.Path, string(file.Content))

	mu.Lock()
	for _, d := range g.Errors.All() {
		_, _ = io.WriteString(me.out, logging.FormatDiagnostic(d, false)+"\n")
	}
	mu.Unlock()

	if runErr != nil {
		return errors.Errorf("%s: %w", file.Rel, runErr)
	}

	output := res.OutputFile
	if me.outDir != "" {
		output = filepath.Join(me.outDir, filepath.Dir(filepath.FromSlash(file.Rel)), filepath.Base(res.OutputFile))
	}

	enc := res.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	data, err := enc.NewEncoder().Bytes([]byte(res.Text))
	if err != nil {
		return errors.Errorf("%s: encoding output: %w", file.Rel, err)
	}

	if err := me.fs.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Errorf("%s: creating output directory: %w", file.Rel, err)
	}
	if err := afero.WriteFile(me.fs, output, data, 0o644); err != nil {
		return errors.Errorf("%s: writing output: %w", file.Rel, err)
	}

	zerolog.Ctx(ctx).Debug().Str("template", file.Rel).Str("output", output).Int("bytes", len(data)).Msg("wrote generated file")
	return nil
}
