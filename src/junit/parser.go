// Package junit provides tolerant JUnit XML parsing for test result hydration.
//
// Nothing in this package returns a parse error: malformed or non-JUnit input
// yields a nil report, which callers treat as "no data available".
package junit

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"cisync/src/contracts"
)

// maxEntrySize bounds how much of a single archive entry is read.
const maxEntrySize = 64 << 20

var zipMagic = []byte("PK\x03\x04")

// Parse reads one XML report. Summary counts come from the report's own
// aggregate attributes when present, otherwise from the decoded test cases.
func Parse(data []byte) *contracts.TestReport {
	report := ParseSummary(string(data))
	cases := ParseDetails(data)

	if report == nil {
		if len(cases) == 0 {
			return nil
		}
		report = countCases(cases)
	}
	report.TestCases = cases
	return report
}

// ParseArchive reads an artifact payload, which may be a zip archive or a bare
// XML document. Only .xml entries of an archive are read, in name order, and
// their reports are merged. Returns nil when nothing usable is found.
func ParseArchive(data []byte) *contracts.TestReport {
	if !bytes.HasPrefix(data, zipMagic) {
		return usable(Parse(data))
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var merged *contracts.TestReport
	for _, f := range files {
		content, err := readEntry(f)
		if err != nil {
			continue
		}
		report := usable(Parse(content))
		if report == nil {
			continue
		}
		if merged == nil {
			merged = report
			continue
		}
		merged.TotalTests += report.TotalTests
		merged.PassedTests += report.PassedTests
		merged.FailedTests += report.FailedTests
		merged.SkippedTests += report.SkippedTests
		merged.TestCases = append(merged.TestCases, report.TestCases...)
	}
	return merged
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}

// usable drops reports that carry no tests.
func usable(r *contracts.TestReport) *contracts.TestReport {
	if r == nil || r.TotalTests <= 0 {
		return nil
	}
	return r
}

func countCases(cases []contracts.TestCase) *contracts.TestReport {
	r := &contracts.TestReport{TotalTests: len(cases)}
	for _, tc := range cases {
		switch tc.Status {
		case contracts.TestFailed:
			r.FailedTests++
		case contracts.TestSkipped:
			r.SkippedTests++
		default:
			r.PassedTests++
		}
	}
	return r
}

// IsTestArtifact reports whether an artifact name looks like it holds test results.
// The check is a case-insensitive substring match on "test".
func IsTestArtifact(name string) bool {
	return strings.Contains(strings.ToLower(name), "test")
}

// Checksum identifies an artifact payload.
func Checksum(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// FailedCases returns the failed test cases of a report.
func FailedCases(r *contracts.TestReport) []contracts.TestCase {
	if r == nil {
		return nil
	}
	var failed []contracts.TestCase
	for _, tc := range r.TestCases {
		if tc.Status == contracts.TestFailed {
			failed = append(failed, tc)
		}
	}
	return failed
}

// StackTraceLines splits the stack trace into lines, limiting to maxLines.
func StackTraceLines(tc contracts.TestCase, maxLines int) []string {
	if tc.StackTrace == "" {
		return []string{}
	}

	lines := strings.Split(tc.StackTrace, "\n")

	// Trim empty lines from start and end
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	lines = lines[start:end]

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	return lines
}
