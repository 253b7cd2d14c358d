package mcp

import (
	"fmt"
	"regexp"
	"strings"
)

// timestampPattern matches a leading timestamp such as 2024-05-21T10:00:05.123Z
// or 2024-05-21 10:00:05,123, as prefixed by some runners.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.,]?\d*[Z]?([+-]\d{2}:?\d{2})?\s*`)

func stripTimestamps(line string) string {
	return timestampPattern.ReplaceAllString(line, "")
}

// addressPattern matches pointer values and PC offsets in Go and native traces.
var addressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{4,}\b`)

// maskAddresses replaces memory addresses, which differ on every run.
func maskAddresses(line string) string {
	return addressPattern.ReplaceAllString(line, "0x?")
}

// longPathPattern matches absolute paths with 3+ directories,
// capturing the file name and optional line number.
var longPathPattern = regexp.MustCompile(`/(?:[^/\s():]+/){3,}([^/\s:()]+(?::\d+)?)`)

// compressPath shortens long file paths to .../file.go:42.
func compressPath(line string) string {
	return longPathPattern.ReplaceAllString(line, ".../$1")
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func normalizeWhitespace(line string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

// frameworkFrames are stack frame fragments owned by runtimes and test
// harnesses rather than the code under test.
var frameworkFrames = []string{
	"node_modules/",
	"node:internal",
	"java.base/",
	"jdk.internal.",
	"sun.reflect.",
	"org.junit.",
	"org.gradle.",
	"_pytest/",
	"pluggy/",
	"testing.tRunner",
	"runtime.goexit",
	"runtime/",
}

func isFrameworkFrame(line string) bool {
	for _, f := range frameworkFrames {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}

// compactLine applies the per-line rewrites.
func compactLine(line string) string {
	return normalizeWhitespace(compressPath(maskAddresses(stripTimestamps(line))))
}

// CompressTrace rewrites stack trace lines for token efficiency.
// Blank lines are dropped and runs of two or more framework frames
// collapse into a single marker line.
func CompressTrace(lines []string) []string {
	var out []string
	var pending []string
	flush := func() {
		if len(pending) > 1 {
			out = append(out, fmt.Sprintf("... %d framework frames", len(pending)))
		} else {
			out = append(out, pending...)
		}
		pending = pending[:0]
	}

	for _, raw := range lines {
		line := compactLine(raw)
		if line == "" {
			continue
		}
		if isFrameworkFrame(line) {
			pending = append(pending, line)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return out
}
