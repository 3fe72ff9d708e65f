package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arbor banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text, color string
	}{
		{"    _         _", "#86efac"},
		{"   /_\\  _ _  | |__  ___  _ _", "#4ade80"},
		{"  / _ \\| '_| | '_ \\/ _ \\| '_|", "#22c55e"},
		{" /_/ \\_\\_|   |_.__/\\___/|_|", "#16a34a"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  decision trees & markov models  "+version).Faint())
	fmt.Fprintln(w)
}

// Status writes a one-line status message; ok selects green or red.
func Status(w io.Writer, ok bool, format string, args ...any) {
	p := termenv.EnvColorProfile()
	mark, color := "✔", "#22c55e"
	if !ok {
		mark, color = "✘", "#ef4444"
	}
	fmt.Fprintf(w, "%s %s\n", termenv.String(mark).Foreground(p.Color(color)), fmt.Sprintf(format, args...))
}
