// Package generator turns a parsed template and its settings into the C#
// source of a class whose TransformText method renders the template.
package generator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/diagnostic"
	"github.com/walteh/t4gen/pkg/parser"
	"github.com/walteh/t4gen/pkg/settings"
)

var (
	ErrTemplateHasErrors = errors.Base("template has errors")
	ErrUnknownSegment    = errors.Base("unknown segment type")
	ErrProcessorFailed   = errors.Base("directive processor failed")
)

// TemplateErrors is returned when a run collected non-warning diagnostics.
// It matches ErrTemplateHasErrors with errors.Is.
type TemplateErrors struct {
	Diagnostics []diagnostic.Error
	combined    error
}

func (e *TemplateErrors) Error() string {
	var b strings.Builder
	b.WriteString(ErrTemplateHasErrors.Error())
	for _, d := range e.Diagnostics {
		if d.IsWarning {
			continue
		}
		b.WriteString("\n")
		b.WriteString(d.String())
	}
	return b.String()
}

func (e *TemplateErrors) Is(target error) bool {
	return target == ErrTemplateHasErrors
}

func (e *TemplateErrors) Unwrap() error {
	return e.combined
}

// Engine generates code. It holds no per-run state and may be shared.
type Engine struct {
	writerOptions []codewriter.Option
}

type Option func(*Engine)

// WithWriterOptions sets the layout of the generated text.
func WithWriterOptions(opts ...codewriter.Option) Option {
	return func(e *Engine) {
		e.writerOptions = append(e.writerOptions, opts...)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate runs the directive processors and emits the compilation unit.
// Diagnostics are added to parsed.Errors. When any of them is an error the
// text is discarded and a *TemplateErrors is returned.
func (e *Engine) Generate(ctx context.Context, parsed *parser.ParsedTemplate, s *settings.TemplateSettings) (string, error) {
	log := zerolog.Ctx(ctx)

	r := newRun(parsed, s, e.writerOptions)
	text, err := r.generate(ctx)
	if err != nil {
		return "", err
	}

	if parsed.Errors.HasErrors() {
		log.Debug().Int("diagnostics", parsed.Errors.Len()).Msg("template has errors, discarding output")
		return "", errors.WithStack(&TemplateErrors{
			Diagnostics: parsed.Errors.All(),
			combined:    parsed.Errors.Err(),
		})
	}

	log.Debug().
		Str("class", s.FullName()).
		Int("bytes", len(text)).
		Msg("generated template class")

	return text, nil
}
