package diff

import (
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

// DiffExportedOnly pretty prints both values without their unexported fields
// and returns a line diff, or "" when they print the same.
func DiffExportedOnly[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	return format(diff.Diff(printer.Sprint(got), printer.Sprint(want)))
}

// DiffText returns a line diff of two generated sources, or "" when they are
// equal. Carriage returns are shown as \r so line ending changes are visible.
func DiffText(want, got string) string {
	if want == got {
		return ""
	}
	show := strings.NewReplacer("\r", `\r`, "\t", `\t`)
	return format(diff.Diff(show.Replace(got), show.Replace(want)))
}

func format(abc string) string {
	if abc == "" {
		return ""
	}
	str := "\n\n"
	str += "to convert ACTUAL ⏩️ EXPECTED:\n\n"
	str += "add:    ➕\n"
	str += "remove: ➖\n"
	str += "\n"
	str += strings.ReplaceAll(strings.ReplaceAll(abc, "\n-", "\n➖"), "\n+", "\n➕")

	return str
}
