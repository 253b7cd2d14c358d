package tui

import (
	"strings"
	"testing"
	"time"
)

func assertWidth(t *testing.T, text string, width int) {
	t.Helper()
	for i, line := range strings.Split(text, "\n") {
		if w := VisualWidth(line); w > width {
			t.Errorf("line %d exceeds width %d: width=%d, content='%s'", i, width, w, line)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short text", "hello world", 20, "hello world"},
		{"exact width", "hello world", 11, "hello world"},
		{"breaks on words", "hello world this is a test", 15, "hello world\nthis is a test"},
		{"empty", "", 20, ""},
		{"zero width", "hello world", 0, "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.text, tt.width); got != tt.want {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestWrap_LongWord(t *testing.T) {
	// minified JS frame
	text := "at(webpack://app/node_modules/react-dom/cjs/react-dom.development.js:4164:14)"
	width := 30

	result := Wrap(text, width)
	if strings.Count(result, "\n") < 2 {
		t.Errorf("expected long word to be split, got %q", result)
	}
	assertWidth(t, result, width)

	if reconstructed := strings.ReplaceAll(result, "\n", ""); reconstructed != text {
		t.Errorf("content was modified during wrapping\nexpected: %s\ngot:      %s", text, reconstructed)
	}
}

func TestWrap_MultiByteCharacters(t *testing.T) {
	text := "expected 世界 to equal 世界世界世界世界世界世界世界 🎉 in snapshot"
	width := 12

	assertWidth(t, Wrap(text, width), width)
}

func TestTruncate(t *testing.T) {
	text := "TestCheckout/with_expired_card_returns_402"

	withEllipsis := Truncate(text, 10, true)
	if VisualWidth(withEllipsis) > 10 || !strings.HasSuffix(withEllipsis, "...") {
		t.Errorf("unexpected truncation %q", withEllipsis)
	}

	plain := Truncate(text, 10, false)
	if VisualWidth(plain) != 10 || strings.HasSuffix(plain, "...") {
		t.Errorf("unexpected truncation %q", plain)
	}

	if got := Truncate("  short  ", 10, true); got != "short" {
		t.Errorf("expected trimmed text, got %q", got)
	}
}

func TestTruncateAndPad(t *testing.T) {
	for _, text := range []string{"short", "世界", "a much longer cell value"} {
		if w := VisualWidth(TruncateAndPad(text, 10, true)); w != 10 {
			t.Errorf("expected width 10 for %q, got %d", text, w)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{45 * time.Second, "45s"},
		{3*time.Minute + 12*time.Second, "3m12s"},
		{time.Hour + 5*time.Minute, "1h05m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "-"},
		{now.Add(-30 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-50 * time.Hour), "2d"},
	}
	for _, tt := range tests {
		if got := Ago(tt.t, now); got != tt.want {
			t.Errorf("Ago(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
