package tui

import (
	"fmt"
	"io"
	"strings"
)

// PrintBanner writes the mvvm ASCII banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := profileFor(w)
	// Indigo to rose, one shade per line
	lines := []struct {
		text, color string
	}{
		{"  _ __ ___ __   ____   ___ __ ___  ", "#818cf8"},
		{" | '_ ` _ \\ \\ / /\\ \\ / / '_ ` _ \\ ", "#a78bfa"},
		{" | | | | | |\\ V /  \\ V /| | | | | |", "#c084fc"},
		{" |_| |_| |_| \\_/    \\_/ |_| |_| |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  version "+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
