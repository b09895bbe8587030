package codewriter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/t4gen/pkg/codewriter"
)

func TestWriter_Write(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *codewriter.Writer)
		want  string
	}{
		{
			name: "reindents embedded newlines",
			write: func(w *codewriter.Writer) {
				w.Indent()
				w.Write("a\nb\n")
				w.Write("c")
			},
			want: "    a\n    b\n    c",
		},
		{
			name: "crlf is indented once",
			write: func(w *codewriter.Writer) {
				w.Indent()
				w.Write("a\r\nb")
			},
			want: "    a\r\n    b",
		},
		{
			name: "write line and blank line",
			write: func(w *codewriter.Writer) {
				w.WriteLine("x")
				w.BlankLine(2)
				w.WriteLinef("%s=%d", "y", 1)
			},
			want: "x\n\n\ny=1\n",
		},
		{
			name: "raw write ignores indent",
			write: func(w *codewriter.Writer) {
				w.Indent()
				w.RawWrite("raw\n")
				w.Write("next")
			},
			want: "raw\n    next",
		},
		{
			name: "write block reindents every line",
			write: func(w *codewriter.Writer) {
				w.Indent()
				w.WriteBlock("a\r\n  \nb\n")
			},
			want: "    a\n\n    b\n",
		},
		{
			name: "pop without push is ignored",
			write: func(w *codewriter.Writer) {
				w.PopIndent()
				w.PushIndent("\t")
				w.WriteLine("t")
				w.PopIndent()
				w.PopIndent()
				w.WriteLine("u")
			},
			want: "\tt\nu\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := codewriter.New()
			tt.write(w)
			assert.Equal(t, tt.want, w.String())
		})
	}
}

func TestWriter_Options(t *testing.T) {
	w := codewriter.New(codewriter.WithIndentUnit("\t"), codewriter.WithNewline("\r\n"))
	scope := w.Block()
	w.WriteLine("a")
	scope.Close()
	assert.Equal(t, "{\r\n\ta\r\n}\r\n", w.String())
}

func TestWriter_ResetWithStartingIndent(t *testing.T) {
	w := codewriter.New()
	w.WriteLine("discarded")
	w.Reset("  ")
	assert.Equal(t, 1, w.IndentDepth())
	w.WriteLine("a")
	w.PopIndent()
	w.WriteLine("b")
	assert.Equal(t, "  a\nb\n", w.String())
}

func TestWriter_Nested(t *testing.T) {
	w := codewriter.New()
	w.Indent()
	w.Indent()

	n := w.Nested()
	n.WriteLine("x")
	assert.Equal(t, "        x\n", n.String())
	assert.Empty(t, w.String())
}

func TestScopes_Balance(t *testing.T) {
	w := codewriter.New()

	func() {
		cls := w.Class("Foo", "Bar", codewriter.AccessPublic, codewriter.ModPartial)
		defer cls.Close()
		func() {
			m := w.Method("Run", "void", codewriter.AccessPrivate, codewriter.ModStatic, codewriter.Param{Type: "int", Name: "x"})
			defer m.Close()
			w.WriteLine("x++;")
			m.Close()
		}()
	}()

	want := "public partial class Foo\n" +
		"    : Bar\n" +
		"{\n" +
		"    private static void Run(int x)\n" +
		"    {\n" +
		"        x++;\n" +
		"    }\n" +
		"\n" +
		"}\n"
	assert.Equal(t, want, w.String())
	assert.Equal(t, 0, w.IndentDepth())
	assert.Empty(t, w.CurrentIndent())
}

func TestScopes_RandomSequencesReturnToStartDepth(t *testing.T) {
	sequences := []string{"(())", "()()()", "((()())())", "((((()))))"}
	for _, seq := range sequences {
		t.Run(seq, func(t *testing.T) {
			w := codewriter.New()
			w.Indent()
			var open []*codewriter.Scope
			for _, c := range seq {
				if c == '(' {
					open = append(open, w.Block())
					continue
				}
				open[len(open)-1].Close()
				open = open[:len(open)-1]
			}
			assert.Equal(t, 1, w.IndentDepth())
			for _, line := range strings.Split(strings.TrimSuffix(w.String(), "\n"), "\n") {
				assert.True(t, strings.HasPrefix(line, "    "), "line %q lost the base indent", line)
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *codewriter.Writer)
		want  string
	}{
		{
			name: "if else",
			write: func(w *codewriter.Writer) {
				w.If("a", func() { w.WriteLine("x();") }, func() { w.WriteLine("y();") })
			},
			want: "if (a)\n{\n    x();\n}\nelse\n{\n    y();\n}\n",
		},
		{
			name: "else if",
			write: func(w *codewriter.Writer) {
				w.If("a", func() {}, nil)
				w.ElseIf("b", func() { w.WriteLine("z();") }, nil)
			},
			want: "if (a)\n{\n}\nelse if (b)\n{\n    z();\n}\n",
		},
		{
			name: "enum",
			write: func(w *codewriter.Writer) {
				w.Enum("Color", codewriter.AccessInternal, "Red", "Green")
			},
			want: "internal enum Color\n{\n    Red,\n    Green\n}\n\n",
		},
		{
			name: "auto property with private setter",
			write: func(w *codewriter.Writer) {
				w.AutoProperty("string", "Name", `"x"`, codewriter.AccessPublic, codewriter.AccessPrivate, codewriter.ModNone)
			},
			want: "public string Name { get; private set; } = \"x\";\n",
		},
		{
			name: "readonly property",
			write: func(w *codewriter.Writer) {
				w.ReadonlyProperty("int", "Count", "_items.Count", codewriter.AccessProtected, codewriter.ModOverride)
			},
			want: "protected override int Count\n{\n    get => _items.Count;\n}\n",
		},
		{
			name: "constructor chaining base",
			write: func(w *codewriter.Writer) {
				w.Constructor("Foo", "Bar", codewriter.AccessPublic, codewriter.ModNone,
					codewriter.Param{Type: "int", Name: "a"}, codewriter.Param{Type: "string", Name: "b"}).Close()
			},
			want: "public Foo(int a, string b)\n    : base(a, b)\n{\n}\n\n",
		},
		{
			name: "namespace using and attribute",
			write: func(w *codewriter.Writer) {
				w.Using("System")
				ns := w.Namespace("N")
				w.Attribute("Serializable")
				w.Interface("IThing", "IOther", codewriter.AccessPublic).Close()
				ns.Close()
			},
			want: "using System;\nnamespace N\n{\n    [Serializable]\n    public interface IThing : IOther\n    {\n    }\n\n}\n",
		},
		{
			name: "pragma if",
			write: func(w *codewriter.Writer) {
				p := w.PragmaIf("DEBUG")
				w.WriteLine("a();")
				w.PragmaElse()
				w.WriteLine("b();")
				p.Close()
			},
			want: "#if DEBUG\n    a();\n#else\n    b();\n#endif\n",
		},
		{
			name: "summary escapes and wraps",
			write: func(w *codewriter.Writer) {
				w.Summary("Returns <T> when the quick brown fox jumps over the lazy dog")
			},
			want: "/// <summary>\n/// Returns &lt;T&gt; when the quick brown fox\n/// jumps over the lazy dog\n/// </summary>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := codewriter.New()
			tt.write(w)
			assert.Equal(t, tt.want, w.String())
			assert.Equal(t, 0, w.IndentDepth())
		})
	}
}

func TestModifiers_Format(t *testing.T) {
	assert.Equal(t, "", codewriter.ModNone.Format())
	assert.Equal(t, "static partial", (codewriter.ModPartial | codewriter.ModStatic).Format())
	assert.Equal(t, "abstract override", (codewriter.ModOverride | codewriter.ModAbstract).Format())
	assert.True(t, (codewriter.ModSealed | codewriter.ModVirtual).Has(codewriter.ModSealed))
	assert.False(t, codewriter.ModSealed.Has(codewriter.ModNone))
	assert.Equal(t, "protected internal", codewriter.AccessProtectedInternal.String())
	assert.Equal(t, "private protected", codewriter.AccessPrivateProtected.String())
}

func TestLinePragma(t *testing.T) {
	t.Run("absolute uses file name and suppresses repeats", func(t *testing.T) {
		w := codewriter.New()
		w.LinePragma(3, "/src/tpl/a.tt")
		w.LinePragma(3, "/src/tpl/a.tt")
		w.LinePragma(4, "/src/tpl/a.tt")
		w.LineDefault()
		w.LinePragma(4, "/src/tpl/a.tt")
		assert.Equal(t, "#line 3 \"a.tt\"\n#line 4 \"a.tt\"\n#line default\n#line 4 \"a.tt\"\n", w.String())
	})

	t.Run("relative to base", func(t *testing.T) {
		w := codewriter.New(codewriter.WithRelativePragmas("/src"))
		w.LinePragma(1, "/src/tpl/a.tt")
		assert.Equal(t, "#line 1 \"tpl/a.tt\"\n", w.String())
	})

	t.Run("relative without base uses the file directory", func(t *testing.T) {
		w := codewriter.New(codewriter.WithRelativePragmas(""))
		assert.Equal(t, "a.tt", w.PragmaFileName("/src/tpl/a.tt"))
	})

	t.Run("default file and line terminated first", func(t *testing.T) {
		w := codewriter.New()
		w.LineDirectiveFile = "x.tt"
		w.Write("partial")
		w.LinePragma(9, "")
		w.LineHidden()
		require.Equal(t, "partial\n#line 9 \"x.tt\"\n#line hidden\n", w.String())
	})
}
