package parse

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/t4gen/pkg/host"
	"github.com/walteh/t4gen/pkg/logging"
	"github.com/walteh/t4gen/pkg/parser"
	"github.com/walteh/t4gen/pkg/position"
)

type Handler struct {
	fs  afero.Fs
	out io.Writer

	includePaths []string
	debug        bool
}

func NewParseCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "print the segments of a template as YAML",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringArrayVarP(&me.includePaths, "include", "I", nil, "additional include search path")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context(), args[0])
	}

	return cmd
}

type Dump struct {
	File     string        `yaml:"file"`
	Segments []SegmentDump `yaml:"segments"`
	Errors   []string      `yaml:"errors,omitempty"`
}

type SegmentDump struct {
	Type       string            `yaml:"type"`
	File       string            `yaml:"file,omitempty"` // set for included segments
	Start      string            `yaml:"start"`
	Name       string            `yaml:"name,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Text       SegmentText       `yaml:"text,omitempty"`
}

// SegmentText is always written double quoted. Block scalars drop text made
// only of line breaks and hide trailing whitespace.
type SegmentText string

func (t SegmentText) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: string(t)}, nil
}

func (me *Handler) Run(ctx context.Context, file string) error {
	level := zerolog.WarnLevel
	if me.debug {
		level = zerolog.DebugLevel
	}
	logger := logging.New(os.Stderr, logging.Options{Level: level, WithColor: true, WithCaller: me.debug})
	ctx = logger.WithContext(ctx)

	if _, ok := me.fs.(*afero.OsFs); ok {
		abs, err := filepath.Abs(file)
		if err != nil {
			return errors.Errorf("resolving '%s': %w", file, err)
		}
		file = abs
	}

	content, err := afero.ReadFile(me.fs, file)
	if err != nil {
		return errors.Errorf("reading template: %w", err)
	}

	g := host.NewTemplateGenerator(me.fs)
	g.IncludePaths = me.includePaths
	parsed := g.ParseTemplate(ctx, file, string(content))

	data, err := yaml.Marshal(NewDump(parsed))
	if err != nil {
		return errors.Errorf("encoding segments: %w", err)
	}
	if _, err := me.out.Write(data); err != nil {
		return errors.Errorf("writing segments: %w", err)
	}
	return nil
}

// NewDump lists every raw segment of parsed in order, directives included.
func NewDump(parsed *parser.ParsedTemplate) *Dump {
	d := &Dump{File: parsed.RootFileName, Segments: []SegmentDump{}}
	for _, seg := range parsed.RawSegments {
		switch s := seg.(type) {
		case *parser.Directive:
			attrs := map[string]string{}
			for _, name := range s.Attributes.Names() {
				v, _ := s.Attributes.Get(name)
				attrs[name] = v
			}
			d.Segments = append(d.Segments, SegmentDump{
				Type:       "directive",
				File:       includedFrom(parsed, s.StartLocation()),
				Start:      lineColumn(s.StartLocation()),
				Name:       s.Name,
				Attributes: attrs,
			})
		case *parser.TemplateSegment:
			d.Segments = append(d.Segments, SegmentDump{
				Type:  s.Type.String(),
				File:  includedFrom(parsed, s.StartLocation()),
				Start: lineColumn(s.StartLocation()),
				Text:  SegmentText(s.Text),
			})
		}
	}
	for _, e := range parsed.Errors.All() {
		d.Errors = append(d.Errors, logging.FormatDiagnostic(e, false))
	}
	return d
}

func includedFrom(parsed *parser.ParsedTemplate, loc position.Location) string {
	if loc.File == parsed.RootFileName {
		return ""
	}
	return loc.File
}

func lineColumn(loc position.Location) string {
	return fmt.Sprintf("%d:%d", loc.Line, loc.Column)
}
