package cli

import (
	"strings"
	"testing"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name  string
		width int
		want  string
	}{
		{"switch1", 20, "switch1 " + strings.Repeat(".", 12)},
		{"a", 5, "a ..."},
		{"longer-than-width", 5, "longer-than-width"},
		{"exact", 6, "exact"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := DotPad(tt.name, tt.width); got != tt.want {
			t.Errorf("DotPad(%q, %d) = %q, want %q", tt.name, tt.width, got, tt.want)
		}
	}
}

func TestColorsRespectNoColor(t *testing.T) {
	saved := colorEnabled
	defer func() { colorEnabled = saved }()

	colorEnabled = true
	if got := Green("ok"); !strings.Contains(got, "ok") || got == "ok" {
		t.Errorf("Green with color = %q", got)
	}

	colorEnabled = false
	for _, fn := range []func(string) string{Green, Yellow, Red, Dim} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("color disabled but got %q", got)
		}
	}
}
