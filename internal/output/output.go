package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PrintRight writes text right-aligned on the current line of f.
func PrintRight(f *os.File, text string) {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 80
	}

	padding := width - len(text)
	if padding < 0 {
		padding = 0
	}

	fmt.Fprintf(f, "\r%s%s", spaces(padding), text)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func spaces(n int) string {
	return fmt.Sprintf("%*s", n, "")
}

func ProgressBar(percent int, width int) string {
	percent = min(max(percent, 0), 100)
	filled := (percent * width) / 100
	return fmt.Sprintf("%s%s",
		strings.Repeat("█", filled),
		strings.Repeat(" ", width-filled),
	)
}
