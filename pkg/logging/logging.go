// Package logging builds the console logger used by the t4gen command and
// renders template diagnostics for terminals.
package logging

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/walteh/t4gen/pkg/diagnostic"
)

type Options struct {
	Level     zerolog.Level
	WithColor bool
	// WithCaller adds a pkg:file:line field to every event.
	WithCaller bool
	// TimeFormat defaults to millisecond precision with no timezone.
	TimeFormat string
}

// New returns a console logger writing to out.
func New(out io.Writer, opts Options) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !opts.WithColor,
		TimeFormat: time.TimeOnly,
	}
	logger := zerolog.New(cw).Level(opts.Level).Hook(CustomTimeHook{Format: opts.TimeFormat})
	if opts.WithCaller {
		logger = logger.Hook(CustomCallerHook{WithColor: opts.WithColor})
	}
	return logger
}

type CustomTimeHook struct {
	Format string
}

func (t CustomTimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		format = "2006-01-02T15:04:05.0000Z"
	}
	e.Str("time", time.Now().Format(format))
}

type CustomCallerHook struct {
	WithColor bool
}

// callerSkip is the number of frames between the hook and the code that
// sent the event: Run, Event.msg, Event.Msg.
const callerSkip = 3

func (c CustomCallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(callerSkip)
	if !ok {
		return
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}
	pkg, _ := GetPackageAndFuncFromFuncName(fn.Name())
	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

func GetPackageAndFuncFromFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	firstDot := strings.IndexByte(name[lastSlash:], '.') + lastSlash
	if firstDot < lastSlash {
		return name, ""
	}

	pkg = name[:firstDot]
	function = name[firstDot+1:]

	if strings.Contains(pkg, ".(") {
		splt := strings.Split(pkg, ".(")
		pkg = splt[0]
		function = "(" + splt[1] + "." + function
	}

	return pkg, function
}

func FormatCaller(pkg, path string, number int, colorize bool) string {
	p := FileNameOfPath(path)
	if colorize {
		p = color.New(color.Bold).Sprint(p)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", number)
		sep := color.New(color.Faint).Sprint(":")

		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, p, sep, num)
	}

	return fmt.Sprintf("%s:%s:%d", pkg, p, number)
}

func FileNameOfPath(path string) string {
	tot := strings.Split(path, "/")
	if len(tot) > 1 {
		return tot[len(tot)-1]
	}

	return path
}

// FormatDiagnostic renders d the way compilers print errors, coloring the
// severity when colorize is set.
func FormatDiagnostic(d diagnostic.Error, colorize bool) string {
	severity := string(d.Severity())
	if colorize {
		c := color.New(color.FgRed, color.Bold)
		if d.IsWarning {
			c = color.New(color.FgYellow, color.Bold)
		}
		severity = c.Sprint(severity)
	}

	code := ""
	if d.Code != "" {
		code = " " + d.Code
	}

	if d.File == "" {
		return fmt.Sprintf("%s%s: %s", severity, code, d.Text)
	}
	return fmt.Sprintf("%s(%d,%d): %s%s: %s", d.File, d.Line, d.Column, severity, code, d.Text)
}
