package config

import (
	"strconv"
	"strings"

	"github.com/editorconfig/editorconfig-core-go/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/codewriter"
)

// Layout reads the .editorconfig files that apply to the output file and
// returns the writer options they imply.
func Layout(outputFile string) ([]codewriter.Option, error) {
	def, err := editorconfig.GetDefinitionForFilename(outputFile)
	if err != nil {
		return nil, errors.Errorf("reading editorconfig for '%s': %w", outputFile, err)
	}
	return LayoutFromDefinition(def), nil
}

// LayoutFromDefinition maps indent_style, indent_size, tab_width and
// end_of_line to writer options. Unset properties keep the writer defaults.
func LayoutFromDefinition(def *editorconfig.Definition) []codewriter.Option {
	if def == nil {
		return nil
	}

	var opts []codewriter.Option

	switch strings.ToLower(def.IndentStyle) {
	case "tab":
		opts = append(opts, codewriter.WithIndentUnit("\t"))
	case "space":
		size := 0
		if n, err := strconv.Atoi(def.IndentSize); err == nil {
			size = n
		} else if def.TabWidth > 0 {
			size = def.TabWidth
		}
		if size > 0 {
			opts = append(opts, codewriter.WithIndentUnit(strings.Repeat(" ", size)))
		}
	}

	switch strings.ToLower(def.EndOfLine) {
	case "lf":
		opts = append(opts, codewriter.WithNewline("\n"))
	case "crlf":
		opts = append(opts, codewriter.WithNewline("\r\n"))
	case "cr":
		opts = append(opts, codewriter.WithNewline("\r"))
	}

	return opts
}
