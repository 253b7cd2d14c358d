// Package sanitize cleans test runner output captured in reports. Runners such as
// jest or pytest often write colored failure text, and Buildkite adds its own
// timestamp markers, so messages and stack traces are cleaned before they are stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// CSI sequences: colors (\x1b[31m), cursor movement (\x1b[2K), etc.
	csiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

	// Buildkite timestamp markers: \x1b_bk;t=...\x07
	buildkiteTimestamp = regexp.MustCompile(`\x1b_bk;t=[0-9]+\x07`)
)

// StripANSI removes ANSI escape sequences and Buildkite timestamp markers.
func StripANSI(s string) string {
	s = buildkiteTimestamp.ReplaceAllString(s, "")
	return csiPattern.ReplaceAllString(s, "")
}

// Clean strips escape sequences, normalizes line endings, drops trailing
// whitespace on every line and trims the result.
func Clean(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CleanLines applies Clean to each line.
func CleanLines(lines []string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = Clean(line)
	}
	return out
}
