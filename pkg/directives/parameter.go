package directives

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/parser"
)

const (
	// ParameterProcessorName is the processor every parameter directive is
	// routed to.
	ParameterProcessorName = "ParameterDirectiveProcessor"

	ParameterDirectiveName = "parameter"
)

var ErrMissingParameterName = errors.Base("Parameter directive has no name argument")

var builtinTypes = map[string]string{
	"bool":    "System.Boolean",
	"byte":    "System.Byte",
	"sbyte":   "System.SByte",
	"char":    "System.Char",
	"decimal": "System.Decimal",
	"double":  "System.Double",
	"float":   "System.Single",
	"int":     "System.Int32",
	"uint":    "System.UInt32",
	"long":    "System.Int64",
	"ulong":   "System.UInt64",
	"object":  "System.Object",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"string":  "System.String",
}

// MapTypeName resolves C# keyword aliases to their System type. Other names
// are returned unchanged; an empty name means System.String.
func MapTypeName(typeName string) string {
	if typeName == "" {
		return "System.String"
	}
	if mapped, ok := builtinTypes[typeName]; ok {
		return mapped
	}
	return typeName
}

// ParameterProcessor turns each parameter directive into a public property.
type ParameterProcessor struct {
	Base
	values ParameterValueResolver
}

var (
	_ Processor         = (*ParameterProcessor)(nil)
	_ ParameterConsumer = (*ParameterProcessor)(nil)
)

func NewParameterProcessor() *ParameterProcessor {
	return &ParameterProcessor{}
}

func (p *ParameterProcessor) SetParameterResolver(values ParameterValueResolver) {
	p.values = values
}

func (p *ParameterProcessor) IsDirectiveSupported(directiveName string) bool {
	return strings.EqualFold(directiveName, ParameterDirectiveName)
}

func (p *ParameterProcessor) ProcessDirective(ctx context.Context, w *codewriter.Writer, directiveName string, args parser.Attributes) error {
	name, ok := args.Get("name")
	if !ok || name == "" {
		return errors.WithStack(ErrMissingParameterName)
	}

	typeName, _ := args.Get("type")
	typeName = MapTypeName(typeName)

	initializer := ""
	if p.values != nil {
		if value, ok := p.values.ResolveParameterValue(ParameterProcessorName, directiveName, name); ok {
			initializer = parameterInitializer(w, typeName, value)
		}
	}

	w.AutoProperty(typeName, name, initializer, codewriter.AccessPublic, codewriter.AccessPublic, codewriter.ModNone)
	return nil
}

func parameterInitializer(w *codewriter.Writer, typeName, value string) string {
	literal, _ := w.QuoteEscaped(value)
	if typeName == "System.String" {
		return literal
	}
	return fmt.Sprintf("(%s)System.Convert.ChangeType(%s, typeof(%s), System.Globalization.CultureInfo.InvariantCulture)",
		typeName, literal, typeName)
}
