package host_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/tools/txtar"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/generator"
	"github.com/walteh/t4gen/pkg/host"
	"github.com/walteh/t4gen/pkg/parser"
)

func TestTryParseParameter(t *testing.T) {
	tests := []struct {
		in        string
		wantKey   host.ParameterKey
		wantValue string
		wantOK    bool
	}{
		{"x=5", host.ParameterKey{Name: "x"}, "5", true},
		{"a=b=c", host.ParameterKey{Name: "a"}, "b=c", true},
		{"x=", host.ParameterKey{Name: "x"}, "", true},
		{"p!d!n!v", host.ParameterKey{Processor: "p", Directive: "d", Name: "n"}, "v", true},
		{"p!d!n!v!w", host.ParameterKey{Processor: "p", Directive: "d", Name: "n"}, "v!w", true},
		{"n!v", host.ParameterKey{Name: "n"}, "v", true},
		{"d!n!v", host.ParameterKey{Directive: "d", Name: "n"}, "v", true},
		{"n!v=1", host.ParameterKey{Name: "n"}, "v=1", true},
		{"=v", host.ParameterKey{}, "v", false},
		{"!v", host.ParameterKey{}, "v", false},
		{"p!d!!v", host.ParameterKey{Processor: "p", Directive: "d"}, "v", false},
		{"novalue", host.ParameterKey{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, value, ok := host.TryParseParameter(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestResolveParameterValue(t *testing.T) {
	g := host.NewTemplateGenerator(afero.NewMemMapFs())
	require.True(t, g.TryAddParameter("Title=Generic"))
	require.True(t, g.TryAddParameter("P!parameter!Title!Specific"))
	require.False(t, g.TryAddParameter("junk"))
	g.AddParameter("", "widget", "Size", "3")

	tests := []struct {
		name                       string
		processor, directive, para string
		want                       string
		wantOK                     bool
	}{
		{"exact key", "P", "parameter", "Title", "Specific", true},
		{"falls back to name", "Other", "parameter", "Title", "Generic", true},
		{"name only", "", "", "Title", "Generic", true},
		{"directive scoped", "", "widget", "Size", "3", true},
		{"directive scoped is not a fallback", "P", "parameter", "Size", "", false},
		{"unknown", "P", "parameter", "Nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.ResolveParameterValue(tt.processor, tt.directive, tt.para)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func memFS(t *testing.T, archive string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		require.NoError(t, afero.WriteFile(fs, f.Name, f.Data, 0o644))
	}
	return fs
}

const project = `
-- /proj/t/main.tt --
main
-- /proj/t/inc.tt --
local
-- /proj/lib/inc.tt --
shared
-- /proj/lib/only.tt --
only
-- /refs/Acme.dll --
MZ
-- /refs/Tools.exe --
MZ
`

func TestLoadIncludeText(t *testing.T) {
	g := host.NewTemplateGenerator(memFS(t, project))
	g.IncludePaths = []string{"/proj/lib"}

	tests := []struct {
		name      string
		requested string
		from      string
		want      string
		wantErr   error
	}{
		{name: "next to the including file", requested: "inc.tt", from: "/proj/t/main.tt", want: "/proj/t/inc.tt"},
		{name: "include path", requested: "only.tt", from: "/proj/t/main.tt", want: "/proj/lib/only.tt"},
		{name: "include path when no local copy", requested: "inc.tt", from: "/elsewhere/x.tt", want: "/proj/lib/inc.tt"},
		{name: "absolute", requested: "/proj/t/inc.tt", from: "/proj/lib/only.tt", want: "/proj/t/inc.tt"},
		{name: "relative segments are cleaned", requested: "../lib/only.tt", from: "/proj/t/main.tt", want: "/proj/lib/only.tt"},
		{name: "missing", requested: "nope.tt", from: "/proj/t/main.tt", wantErr: host.ErrIncludeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resolved, err := g.LoadIncludeText(context.Background(), tt.requested, tt.from)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolved)
		})
	}
}

func TestResolveAssemblyReference(t *testing.T) {
	g := host.NewTemplateGenerator(memFS(t, project))
	g.ReferencePaths = []string{"/nowhere", "/refs"}

	tests := []struct {
		reference string
		want      string
	}{
		{"Acme", "/refs/Acme.dll"},
		{"Acme.dll", "/refs/Acme.dll"},
		{"Tools.exe", "/refs/Tools.exe"},
		{"/refs/Acme.dll", "/refs/Acme.dll"},
		{"Missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			got, err := g.ResolveAssemblyReference(context.Background(), tt.reference)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetFileExtension(t *testing.T) {
	tests := []struct {
		output    string
		extension string
		want      string
	}{
		{"out/main.cs", ".txt", "out/main.txt"},
		{"out/main.cs", "g.cs", "out/main.g.cs"},
		{"out/main", "cs", "out/main.cs"},
		{"", ".txt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.output+tt.extension, func(t *testing.T) {
			g := host.NewTemplateGenerator(afero.NewMemMapFs())
			g.OutputFile = tt.output
			g.SetFileExtension(tt.extension)
			assert.Equal(t, tt.want, g.OutputFile)
		})
	}
}

func TestHostOption(t *testing.T) {
	g := host.NewTemplateGenerator(afero.NewMemMapFs())
	g.UseRelativeLinePragmas = true

	v, ok := g.HostOption("UseRelativeLinePragmas")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = g.HostOption("Unknown")
	assert.False(t, ok)
}

const siteTemplates = `
-- /site/page.tt --
<#@ template linePragmas="false" #>
<#@ output extension=".html" #>
<#@ parameter name="Title" #>
<#@ include file="header.ttinclude" #>
<h1><#= Title #></h1>
-- /site/header.ttinclude --
<head/>
<#+ string Shout(string s) => s.ToUpperInvariant(); #>
`

func TestProcessTemplate(t *testing.T) {
	fs := memFS(t, siteTemplates)
	g := host.NewTemplateGenerator(fs)
	require.True(t, g.TryAddParameter("Title=Home"))

	content, err := afero.ReadFile(fs, "/site/page.tt")
	require.NoError(t, err)

	res, err := g.ProcessTemplate(context.Background(), "/site/page.tt", string(content))
	require.NoError(t, err, "%v", g.Errors.All())
	require.NotNil(t, res)

	assert.Equal(t, "/site/page.html", res.OutputFile)
	assert.False(t, res.Errors.HasErrors())
	assert.Contains(t, res.Text, "    public System.String Title { get; set; } = \"Home\";\n")
	assert.Contains(t, res.Text, "        _output.Append(\"<head/>\\n\");\n")
	assert.Contains(t, res.Text, "        _output.Append(FormatObject(Title));\n")
	assert.Contains(t, res.Text, "     string Shout(string s) => s.ToUpperInvariant(); \n")
	assert.NotContains(t, res.Text, "#line")
	assert.NotNil(t, res.Encoding)
}

func TestProcessTemplate_Failures(t *testing.T) {
	t.Run("template errors keep the diagnostics", func(t *testing.T) {
		g := host.NewTemplateGenerator(afero.NewMemMapFs())
		res, err := g.ProcessTemplate(context.Background(), "/a.tt", `<#@ include file="nope.tt" #>x`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, generator.ErrTemplateHasErrors))
		require.NotNil(t, res)
		assert.Empty(t, res.Text)
		require.Equal(t, 1, res.Errors.Len())
		assert.Equal(t, "Could not resolve include file 'nope.tt'.", res.Errors.All()[0].Text)
		assert.Equal(t, "/a.tt", res.Errors.All()[0].File)
	})

	t.Run("unregistered processor aborts the run", func(t *testing.T) {
		g := host.NewTemplateGenerator(afero.NewMemMapFs())
		res, err := g.ProcessTemplate(context.Background(), "/a.tt", `<#@ widget processor="Widget" #>`)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, directives.ErrProcessorNotRegistered))
		assert.Contains(t, err.Error(), "no directive processor registered as 'Widget'")
		assert.True(t, g.Errors.HasErrors())
	})
}

type widgetProcessor struct {
	directives.Base
}

func (widgetProcessor) IsDirectiveSupported(name string) bool { return name == "widget" }

func (widgetProcessor) ProcessDirective(ctx context.Context, w *codewriter.Writer, name string, args parser.Attributes) error {
	w.WriteLine("public int WidgetCount => 1;")
	return nil
}

func (widgetProcessor) ImportsForProcessingRun() []string { return []string{"Acme.Widgets"} }

func TestProcessTemplate_ExternalProcessor(t *testing.T) {
	types := directives.TypeTable{
		"Acme.WidgetProcessor": func() directives.Processor { return &widgetProcessor{} },
	}

	t.Run("resolved through reference paths", func(t *testing.T) {
		g := host.NewTemplateGenerator(memFS(t, project), host.WithProcessorTypes(types))
		g.ReferencePaths = []string{"/refs"}
		g.AddDirectiveProcessor("Widget", "Acme.WidgetProcessor", "Acme")

		res, err := g.ProcessTemplate(context.Background(), "/a.tt", `<#@ widget processor="Widget" #>`)
		require.NoError(t, err, "%v", g.Errors.All())
		assert.Contains(t, res.Text, "using Acme.Widgets;\n")
		assert.Contains(t, res.Text, "    public int WidgetCount => 1;\n")
	})

	t.Run("unresolvable assembly", func(t *testing.T) {
		g := host.NewTemplateGenerator(memFS(t, project), host.WithProcessorTypes(types))
		g.AddDirectiveProcessor("Widget", "Acme.WidgetProcessor", "Acme")

		_, err := g.ProcessTemplate(context.Background(), "/a.tt", `<#@ widget processor="Widget" #>`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, directives.ErrAssemblyNotResolved))
		assert.Contains(t, err.Error(), "could not resolve assembly 'Acme' for directive processor 'Widget'")
	})
}
