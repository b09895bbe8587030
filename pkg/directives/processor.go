// Package directives defines the processors that own custom template
// directives and contribute code, imports and references to a run.
package directives

import (
	"context"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/diagnostic"
	"github.com/walteh/t4gen/pkg/parser"
)

// Processor handles the custom directives it supports. Within one run the
// calls happen in this order: StartProcessingRun, ProcessDirective for each
// of its directives in template order, FinishProcessingRun, then
// ImportsForProcessingRun and ReferencesForProcessingRun. Initialize is
// called once when the instance is created.
type Processor interface {
	Initialize(ctx context.Context) error
	StartProcessingRun(ctx context.Context, w *codewriter.Writer, templateContents string, errs *diagnostic.Collection) error
	IsDirectiveSupported(directiveName string) bool
	ProcessDirective(ctx context.Context, w *codewriter.Writer, directiveName string, args parser.Attributes) error
	FinishProcessingRun(ctx context.Context) error
	ImportsForProcessingRun() []string
	ReferencesForProcessingRun() []string
}

// ClassAttributeProvider is implemented by processors that decorate the
// generated class.
type ClassAttributeProvider interface {
	TemplateClassCustomAttributes() []string
}

// ParameterValueResolver looks up externally supplied parameter values.
type ParameterValueResolver interface {
	ResolveParameterValue(processor, directive, name string) (string, bool)
}

// ParameterConsumer is implemented by processors that read parameter values.
// The resolver is set before the processing run starts.
type ParameterConsumer interface {
	SetParameterResolver(ParameterValueResolver)
}

// Base provides no-op lifecycle methods for embedding. Embedders implement
// IsDirectiveSupported and ProcessDirective.
type Base struct {
	errs *diagnostic.Collection
}

func (b *Base) Initialize(ctx context.Context) error {
	return nil
}

func (b *Base) StartProcessingRun(ctx context.Context, w *codewriter.Writer, templateContents string, errs *diagnostic.Collection) error {
	b.errs = errs
	return nil
}

func (b *Base) FinishProcessingRun(ctx context.Context) error {
	return nil
}

func (b *Base) ImportsForProcessingRun() []string {
	return nil
}

func (b *Base) ReferencesForProcessingRun() []string {
	return nil
}

// Errors is the collection handed to the current run, or nil before it starts.
func (b *Base) Errors() *diagnostic.Collection {
	return b.errs
}
