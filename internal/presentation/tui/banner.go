package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the pie banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  ____  ___ _____", "#818cf8"},
		{" |  _ \\|_ _| ____|", "#a78bfa"},
		{" | |_) || ||  _|  ", "#c084fc"},
		{" |  __/ | || |___ ", "#e879f9"},
		{" |_|   |___|_____|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
