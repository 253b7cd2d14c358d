package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// VisualWidth returns the display width of text, accounting for multi-byte characters
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate truncates text to maxLen visual columns with optional ellipsis
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if VisualWidth(s) <= maxLen {
		return s
	}
	if ellipsis && maxLen > 3 {
		return runewidth.Truncate(s, maxLen-3, "") + "..."
	}
	return runewidth.Truncate(s, maxLen, "")
}

// TruncateAndPad truncates text and pads it to exactly width columns.
// Used for list cells to keep columns aligned.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	s = Truncate(s, width, ellipsis)
	return runewidth.FillRight(s, width)
}

// Wrap wraps text to width, breaking on word boundaries when possible.
// Words longer than width (hashes, URLs, minified frames) are split mid-word.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var b strings.Builder
	lineLength := 0
	newline := func() {
		b.WriteString("\n")
		lineLength = 0
	}

	for _, word := range words {
		wordLen := VisualWidth(word)

		if wordLen > width {
			if lineLength > 0 {
				newline()
			}
			for _, chunk := range splitWidth(word, width) {
				if lineLength > 0 {
					newline()
				}
				b.WriteString(chunk)
				lineLength = VisualWidth(chunk)
			}
			continue
		}

		switch {
		case lineLength == 0:
			b.WriteString(word)
			lineLength = wordLen
		case lineLength+1+wordLen <= width:
			b.WriteString(" ")
			b.WriteString(word)
			lineLength += 1 + wordLen
		default:
			newline()
			b.WriteString(word)
			lineLength = wordLen
		}
	}
	return b.String()
}

// splitWidth cuts s into chunks of at most width visual columns.
func splitWidth(s string, width int) []string {
	var chunks []string
	var cur strings.Builder
	curWidth := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if curWidth+w > width && curWidth > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curWidth = 0
		}
		cur.WriteRune(r)
		curWidth += w
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// SplitLines splits text by newlines, returning empty slice if text is empty
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

func formatCount(n int) string {
	return strconv.Itoa(n)
}

// FormatDuration renders a run duration compactly: 45s, 3m12s, 1h05m.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d <= 0:
		return "-"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// Ago renders how long before now t was: 5m, 3h, 2d.
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case t.IsZero():
		return "-"
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
