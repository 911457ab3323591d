// Package console is the terminal side of the library: tables, message panels and
// line-oriented prompts over any reader and writer.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"golang.org/x/term"
)

// Style tags a message segment.
type Style int

const (
	StyleNone Style = iota
	StyleSuccess
	StyleError
	StyleEmphasis
)

var ansi = map[Style]string{
	StyleSuccess:  "\033[1;32m",
	StyleError:    "\033[1;31m",
	StyleEmphasis: "\033[1m",
}

const ansiReset = "\033[0m"

// Segment is one styled line of a message panel.
type Segment struct {
	Text  string
	Style Style
}

func Plain(text string) Segment    { return Segment{Text: text} }
func Success(text string) Segment  { return Segment{Text: text, Style: StyleSuccess} }
func Error(text string) Segment    { return Segment{Text: text, Style: StyleError} }
func Emphasis(text string) Segment { return Segment{Text: text, Style: StyleEmphasis} }

// Console reads answers line by line from its input and renders to its output.
type Console struct {
	in           *bufio.Scanner
	out          io.Writer
	color        bool
	readPassword func() (string, error)
}

// New binds a console to in and out. When in is a terminal, masked fields are read
// without echo; when out is a terminal, output is coloured and screens are cleared.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{in: bufio.NewScanner(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		c.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(c.out)
			return strings.TrimSpace(string(b)), err
		}
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.color = true
	}
	return c
}

func (c *Console) Printf(format string, a ...any) { fmt.Fprintf(c.out, format, a...) }
func (c *Console) Println(a ...any)               { fmt.Fprintln(c.out, a...) }

func (c *Console) paint(s Style, text string) string {
	if !c.color || s == StyleNone {
		return text
	}
	return ansi[s] + text + ansiReset
}

// Clear wipes the screen on terminals.
func (c *Console) Clear() {
	if c.color {
		fmt.Fprint(c.out, "\033[2J\033[H")
	}
}

// Message draws the segments, one per line, inside a box.
func (c *Console) Message(segments ...Segment) {
	type line struct {
		text  string
		style Style
	}
	var lines []line
	width := 0
	for _, seg := range segments {
		for _, text := range strings.Split(seg.Text, "\n") {
			lines = append(lines, line{text, seg.Style})
			if n := utf8.RuneCountInString(text); n > width {
				width = n
			}
		}
	}

	fmt.Fprintf(c.out, "┌%s┐\n", strings.Repeat("─", width+2))
	for _, l := range lines {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(l.text))
		fmt.Fprintf(c.out, "│ %s%s │\n", c.paint(l.style, l.text), pad)
	}
	fmt.Fprintf(c.out, "└%s┘\n", strings.Repeat("─", width+2))
}

// Table renders rows under header. It reports false, after saying so, when there is
// nothing to show.
func (c *Console) Table(header []string, rows [][]string) bool {
	if len(rows) == 0 {
		c.Println(c.paint(StyleError, "Nothing to display."))
		return false
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", utf8.RuneCountInString(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	return true
}

// Pause waits for Enter.
func (c *Console) Pause() {
	fmt.Fprint(c.out, "\nPress Enter to continue...")
	_, _ = c.readLine()
	c.Println()
}
