package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// formatter renders a kind of output text. Without color support the
// prefix and suffix decorations are used instead.
type formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

var (
	uiSuccess = formatter{color: color.New(color.FgGreen)}
	uiError   = formatter{color: color.New(color.FgRed)}
	uiWarning = formatter{color: color.New(color.FgYellow)}
	uiInfo    = formatter{color: color.New(color.FgCyan)}
	uiPath    = formatter{color: color.New(color.FgYellow), prefix: "'", suffix: "'"}
	uiMuted   = formatter{color: color.New(color.FgHiBlack), prefix: "(", suffix: ")"}
)

func noColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return color.NoColor
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
