// Package console is the merge engine's log sink: a thin wrapper over
// goterminal that tags every line with one of the four severities the
// core reports diagnostics with. It never decides what to log, only how.
package console

import (
	"fmt"
	"os"

	"github.com/apoorvam/goterminal"

	"github.com/mmerge/modmerge/internal/model"
)

var writer = goterminal.New(os.Stdout)

var tags = map[model.Severity]string{
	model.SeveritySuccess: "++",
	model.SeverityAccent:  "->",
	model.SeverityWarning: "!!",
	model.SeverityDanger:  "xx",
}

// Log writes a single tagged, newline-terminated diagnostic line.
func Log(severity model.Severity, format string, args ...interface{}) {
	tag, ok := tags[severity]
	if !ok {
		tag = "--"
	}
	writer.Clear()
	fmt.Fprintf(writer, "%s %s\n", tag, fmt.Sprintf(format, args...))
	writer.Print()
}

// Section clears the terminal line and prints a header.
func Section(format string, args ...interface{}) {
	writer.Clear()
	fmt.Printf(format+"\n", args...)
}

// Progress overwrites the previous progress line with a monotone
// percentage, used by the Merge Emitter's Produce phase.
func Progress(pct int, label string) {
	writer.Clear()
	fmt.Fprintf(writer, "[%3d%%] %s", pct, label)
	writer.Print()
}

// Done finalizes the current progress line with a trailing newline so
// subsequent Log/Section calls don't get overwritten by it.
func Done() {
	fmt.Println()
}
