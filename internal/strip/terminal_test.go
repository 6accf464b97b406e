package strip

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sweeney/zonelight/internal/logic"
)

func TestHex(t *testing.T) {
	cases := map[logic.RGB]string{
		{R: 132, G: 132, B: 130}: "#848482",
		{R: 251, G: 3, B: 201}:   "#fb03c9",
		{}:                       "#000000",
	}
	for c, want := range cases {
		if got := Hex(c); got != want {
			t.Errorf("Hex(%v): got %s, want %s", c, got, want)
		}
	}
}

func TestTerminalWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTerminalWriter(&buf)

	if err := w.Write([]logic.RGB{{R: 255}, {B: 255}, {}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\r") {
		t.Errorf("expected carriage return prefix, got %q", out)
	}
	if n := strings.Count(out, pixel); n != 3 {
		t.Errorf("expected 3 pixels, got %d in %q", n, out)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("Close should end the line")
	}
}
