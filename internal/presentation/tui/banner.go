package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Mosaic to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct{ text, color string }{
		{" __  __                 _      ", "#818cf8"},
		{"|  \\/  | ___  ___  __ _(_) ___ ", "#a78bfa"},
		{"| |\\/| |/ _ \\/ __|/ _` | |/ __|", "#c084fc"},
		{"| |  | | (_) \\__ \\ (_| | | (__ ", "#e879f9"},
		{"|_|  |_|\\___/|___/\\__,_|_|\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
