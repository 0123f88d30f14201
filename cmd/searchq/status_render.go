package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"searchq/internal/daemonctl"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 20

// severityStyle maps a check severity to its tag and colour.
var severityStyle = map[string]struct{ tag, color string }{
	"ok":    {"OK", ansiGreen},
	"warn":  {"WARN", ansiYellow},
	"error": {"ERROR", ansiRed},
	"info":  {"INFO", ansiBlue},
}

// statusPrinter writes the sections of `searchq status`.
type statusPrinter struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *statusPrinter) paint(color, text string) string {
	if !p.colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

// section starts a titled block, separated from the previous one by a blank
// line.
func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.out)
	}
	p.sections++
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	fmt.Fprintln(p.out, p.paint(ansiBlue, heading))
	fmt.Fprintln(p.out, p.paint(ansiBlue, strings.Repeat("-", len(heading))))
}

func (p *statusPrinter) check(line daemonctl.StatusLine) {
	fmt.Fprintln(p.out, p.formatCheck(line))
}

func (p *statusPrinter) formatCheck(line daemonctl.StatusLine) string {
	style, ok := severityStyle[strings.ToLower(strings.TrimSpace(line.Severity))]
	if !ok {
		style = severityStyle["info"]
	}
	text := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, line.Label+":", style.tag)
	if line.Detail != "" {
		text += " " + line.Detail
	}
	return p.paint(style.color, text)
}

// shouldColorize reports whether writer is a terminal and NO_COLOR is unset.
func shouldColorize(writer io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
