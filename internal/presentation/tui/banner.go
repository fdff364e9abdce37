package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{" _                               _           _   ", "#818cf8"},
	{"| |__  _ __  _ __ ___  _ __   ___| |__   __ _| |_ ", "#a78bfa"},
	{"| '_ \\| '_ \\| '_ ` _ \\| '_ \\ / __| '_ \\ / _` | __|", "#c084fc"},
	{"| |_) | |_) | | | | | | | | | (__| | | | (_| | |_ ", "#e879f9"},
	{"|_.__/| .__/|_| |_| |_|_| |_|\\___|_| |_|\\__,_|\\__|", "#f472b6"},
	{"      |_|                                         ", "#fb7185"},
}

// PrintBanner writes the bpmnchat banner followed by the process name.
// Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, process string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	if process != "" {
		fmt.Fprintln(w, out.String("  proceso: "+process).Faint())
	}
	fmt.Fprintln(w)
}
