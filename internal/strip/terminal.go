package strip

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/sweeney/zonelight/internal/logic"
)

// pixel is the glyph drawn for each LED.
const pixel = "██"

// TerminalWriter draws each frame as a row of colored blocks, redrawing the
// same line in place.
type TerminalWriter struct {
	out      io.Writer
	renderer *lipgloss.Renderer
}

// NewTerminalWriter writes frames to out. Color support is detected from out.
func NewTerminalWriter(out io.Writer) *TerminalWriter {
	return &TerminalWriter{out: out, renderer: lipgloss.NewRenderer(out)}
}

func (t *TerminalWriter) Write(frame []logic.RGB) error {
	var b strings.Builder
	b.WriteString("\r")
	for _, c := range frame {
		style := t.renderer.NewStyle().Foreground(lipgloss.Color(Hex(c)))
		b.WriteString(style.Render(pixel))
	}
	_, err := fmt.Fprint(t.out, b.String())
	return err
}

// Close ends the preview line.
func (t *TerminalWriter) Close() error {
	_, err := fmt.Fprintln(t.out)
	return err
}

// Hex returns c as a #rrggbb string.
func Hex(c logic.RGB) string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}
