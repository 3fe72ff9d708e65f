package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// Width 0 keeps glamour's default word wrap.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Printer writes Markdown reports, styled on terminals and raw elsewhere
// so that piped output stays diffable.
type Printer struct {
	w      io.Writer
	render func(string) (string, error)
}

// NewPrinter creates a printer for w. Styling is enabled when pretty is
// true and w is a terminal.
func NewPrinter(w io.Writer, pretty bool) *Printer {
	p := &Printer{w: w}
	if pretty && IsTerminal(w) {
		width := 0
		if f, ok := w.(*os.File); ok {
			if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
				width = cols
			}
		}
		if render, err := NewRenderer(width); err == nil {
			p.render = render
		}
	}
	return p
}

// Styled reports whether output is rendered.
func (p *Printer) Styled() bool { return p.render != nil }

// Print writes markdown.
func (p *Printer) Print(markdown string) error {
	out := markdown
	if p.render != nil {
		rendered, err := p.render(markdown)
		if err != nil {
			return err
		}
		out = rendered
	}
	_, err := io.WriteString(p.w, out)
	return err
}
