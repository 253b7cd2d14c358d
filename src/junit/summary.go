package junit

import (
	"regexp"
	"strconv"
	"strings"

	"cisync/src/contracts"
)

var (
	// Quoted attribute values may contain '>'.
	openingTagPattern = regexp.MustCompile(`<testsuites?\b(?:[^>"']|"[^"]*"|'[^']*')*>`)
	suiteTagPattern   = regexp.MustCompile(`<testsuite\b(?:[^>"']|"[^"]*"|'[^']*')*>`)
	attrPattern       = regexp.MustCompile(`(?:^|\s)([A-Za-z_:][-A-Za-z0-9_:.]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// counts holds the four aggregate attributes of a suite tag.
type counts struct {
	tests, failures, errors, skipped int
}

func (c counts) add(o counts) counts {
	return counts{
		tests:    c.tests + o.tests,
		failures: c.failures + o.failures,
		errors:   c.errors + o.errors,
		skipped:  c.skipped + o.skipped,
	}
}

func (c counts) report() *contracts.TestReport {
	failed := c.failures + c.errors
	passed := c.tests - failed - c.skipped
	if passed < 0 {
		passed = 0
	}
	return &contracts.TestReport{
		TotalTests:   c.tests,
		PassedTests:  passed,
		FailedTests:  failed,
		SkippedTests: c.skipped,
	}
}

// tagCounts reads the aggregate attributes of one opening tag.
func tagCounts(tag string) counts {
	// Drop the element name so it is not mistaken for an attribute.
	if i := strings.IndexAny(tag, " \t\r\n"); i >= 0 {
		tag = tag[i:]
	} else {
		return counts{}
	}

	var c counts
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		value := m[2]
		if value == "" {
			value = m[3]
		}
		switch m[1] {
		case "tests":
			c.tests = atoi(value)
		case "failures":
			c.failures = atoi(value)
		case "errors":
			c.errors = atoi(value)
		case "skipped":
			c.skipped = atoi(value)
		}
	}
	return c
}

// ParseSummary extracts aggregate counts from raw report text without a full XML parse.
// The first <testsuite> or <testsuites> tag wins when it carries a non-zero tests
// attribute; otherwise every <testsuite> tag in the document is summed.
// Returns nil when no usable counts are found.
func ParseSummary(text string) *contracts.TestReport {
	first := openingTagPattern.FindString(text)
	if first == "" {
		return nil
	}

	if c := tagCounts(first); c.tests > 0 {
		return c.report()
	}

	var total counts
	for _, tag := range suiteTagPattern.FindAllString(text, -1) {
		total = total.add(tagCounts(tag))
	}
	if total.tests <= 0 {
		return nil
	}
	return total.report()
}

// atoi parses a count leniently; anything unparsable or negative is zero.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// seconds parses a duration attribute such as "1.234" or "1,234.5".
func seconds(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
