package codewriter

import (
	"encoding/xml"
	"strings"
)

// MaxSummaryLineLength is the width summary comments are wrapped to.
const MaxSummaryLineLength = 40

// Param is a method or constructor parameter.
type Param struct {
	Type string
	Name string
}

func formatParams(args []Param) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Type + " " + a.Name
	}
	return strings.Join(parts, ", ")
}

func (w *Writer) Using(namespace string) {
	w.WriteLinef("using %s;", namespace)
	w.usingCount++
}

func (w *Writer) Comment(text string) {
	w.WriteLine("//" + text)
}

// Summary writes an XML doc summary wrapped to MaxSummaryLineLength.
func (w *Writer) Summary(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.WriteLine("/// <summary>")
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		for _, wrapped := range wrapWords(line, MaxSummaryLineLength) {
			var sb strings.Builder
			_ = xml.EscapeText(&sb, []byte(wrapped))
			w.WriteLine("/// " + sb.String())
		}
	}
	w.WriteLine("/// </summary>")
}

func wrapWords(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			out = append(out, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(out, current)
}

func (w *Writer) Attribute(attr string) {
	w.WriteLinef("[%s]", attr)
}

// Namespace opens a block-scoped namespace.
func (w *Writer) Namespace(name string) *Scope {
	w.WriteLinef("namespace %s", name)
	w.OpenScope("{")
	return w.newScope("}", false)
}

// FileScopedNamespace writes a namespace declaration that covers the rest of
// the file.
func (w *Writer) FileScopedNamespace(name string) {
	w.WriteLinef("namespace %s;", name)
	w.BlankLine(1)
}

func (w *Writer) Class(name, baseClass string, access Access, mods Modifiers) *Scope {
	w.WriteLine(prefix(access, mods) + "class " + name)
	if baseClass != "" {
		w.Indent()
		w.WriteLine(": " + baseClass)
		w.PopIndent()
	}
	w.OpenScope("{")
	return w.newScope("}", false)
}

func (w *Writer) Interface(name, baseInterface string, access Access) *Scope {
	head := access.String() + " interface " + name
	if baseInterface != "" {
		head += " : " + baseInterface
	}
	w.WriteLine(head)
	w.OpenScope("{")
	return w.newScope("}", true)
}

func (w *Writer) Enum(name string, access Access, tags ...string) {
	scope := w.BeginEnum(name, access)
	defer scope.Close()
	for i, tag := range tags {
		if i < len(tags)-1 {
			tag += ","
		}
		w.WriteLine(tag)
	}
}

func (w *Writer) BeginEnum(name string, access Access) *Scope {
	w.WriteLinef("%senum %s", prefix(access, ModNone), name)
	w.OpenScope("{")
	return w.newScope("}", true)
}

// Method opens a method body. The returned scope adds a blank line after the
// closing brace.
func (w *Writer) Method(name, returnType string, access Access, mods Modifiers, args ...Param) *Scope {
	w.WriteLinef("%s%s %s(%s)", prefix(access, mods), returnType, name, formatParams(args))
	w.OpenScope("{")
	return w.newScope("}", true)
}

func (w *Writer) EmptyMethod(name, returnType string, access Access, mods Modifiers, args ...Param) {
	w.Method(name, returnType, access, mods, args...).Close()
}

func (w *Writer) LocalMethod(name string, isStatic bool, returnType string, args ...Param) *Scope {
	head := ""
	if isStatic {
		head = "static "
	}
	w.WriteLinef("%s%s %s(%s)", head, returnType, name, formatParams(args))
	w.OpenScope("{")
	return w.newScope("}", false)
}

// Constructor opens a constructor. A non-empty baseName chains every
// argument to the base constructor.
func (w *Writer) Constructor(name, baseName string, access Access, mods Modifiers, args ...Param) *Scope {
	w.WriteLinef("%s%s(%s)", prefix(access, mods), name, formatParams(args))
	if baseName != "" {
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = a.Name
		}
		w.Indent()
		w.WriteLinef(": base(%s)", strings.Join(names, ", "))
		w.PopIndent()
	}
	w.OpenScope("{")
	return w.newScope("}", true)
}

func (w *Writer) StaticConstructor(className string) *Scope {
	w.WriteLinef("static %s()", className)
	w.OpenScope("{")
	return w.newScope("}", true)
}

// AutoProperty writes "{ get; set; }" with an optional initializer. The
// setter access is only written when it differs from access.
func (w *Writer) AutoProperty(typ, name, initializer string, access, setterAccess Access, mods Modifiers) {
	setter := ""
	if setterAccess != access {
		setter = setterAccess.String() + " "
	}
	line := prefix(access, mods) + typ + " " + name + " { get; " + setter + "set; }"
	if initializer != "" {
		line += " = " + initializer + ";"
	}
	w.WriteLine(line)
}

// ReadonlyProperty writes an expression-bodied getter.
func (w *Writer) ReadonlyProperty(typ, name, value string, access Access, mods Modifiers) {
	w.WriteLine(prefix(access, mods) + typ + " " + name)
	w.OpenScope("{")
	w.WriteLinef("get => %s;", value)
	w.CloseScope("}")
}

// PragmaIf opens a "#if" region; the scope writes "#endif".
func (w *Writer) PragmaIf(condition string) *Scope {
	w.WriteLinef("#if %s", condition)
	w.Indent()
	return w.newScope("#endif", false)
}

func (w *Writer) PragmaElse() {
	w.PopIndent()
	w.WriteLine("#else")
	w.Indent()
}

// If writes an if statement. els may be nil.
func (w *Writer) If(condition string, body, els func()) {
	w.WriteLinef("if (%s)", condition)
	w.conditionalBody(body)
	if els != nil {
		w.Else(els)
	}
}

func (w *Writer) ElseIf(condition string, body, els func()) {
	w.WriteLinef("else if (%s)", condition)
	w.conditionalBody(body)
	if els != nil {
		w.Else(els)
	}
}

func (w *Writer) Else(body func()) {
	w.WriteLine("else")
	w.conditionalBody(body)
}

func (w *Writer) conditionalBody(body func()) {
	scope := w.Block()
	defer scope.Close()
	if body != nil {
		body()
	}
}
