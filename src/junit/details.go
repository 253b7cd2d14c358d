package junit

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strings"

	"cisync/src/contracts"
	"cisync/src/sanitize"
)

// xmlSuite is a <testsuite> or <testsuites> element. Counts are kept as text
// because real-world reports carry empty or malformed attribute values.
type xmlSuite struct {
	Name     string     `xml:"name,attr"`
	File     string     `xml:"file,attr"`
	Tests    string     `xml:"tests,attr"`
	Failures string     `xml:"failures,attr"`
	Errors   string     `xml:"errors,attr"`
	Skipped  string     `xml:"skipped,attr"`
	Time     string     `xml:"time,attr"`
	Cases    []xmlCase  `xml:"testcase"`
	Suites   []xmlSuite `xml:"testsuite"`
}

type xmlRoot struct {
	XMLName xml.Name
	xmlSuite
}

type xmlCase struct {
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
	File      string      `xml:"file,attr"`
	Time      string      `xml:"time,attr"`
	Failures  []xmlResult `xml:"failure"`
	Errors    []xmlResult `xml:"error"`
	Skipped   *xmlResult  `xml:"skipped"`
}

type xmlResult struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// suiteShape tags the structural variant of a suite element.
type suiteShape int

const (
	// shapeCases holds <testcase> children, possibly alongside nested suites.
	shapeCases suiteShape = iota
	// shapeNested holds only nested <testsuite> children.
	shapeNested
	// shapeAggregate holds neither and reports only its own counts.
	shapeAggregate
)

func classify(s *xmlSuite) suiteShape {
	switch {
	case len(s.Cases) > 0:
		return shapeCases
	case len(s.Suites) > 0:
		return shapeNested
	default:
		return shapeAggregate
	}
}

// ParseDetails decodes every test case in a report. Both a single root
// <testsuite> and a <testsuites> wrapper are accepted, and suites may nest.
// Malformed input yields nil.
func ParseDetails(data []byte) []contracts.TestCase {
	suites := rootSuites(data)
	if len(suites) == 0 {
		return nil
	}

	w := &walker{}
	for i := range suites {
		w.visitSuite(&suites[i])
	}
	return w.cases
}

// rootSuites normalizes both document shapes into a suite list.
func rootSuites(data []byte) []xmlSuite {
	var root xmlRoot
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(&root); err != nil {
		return nil
	}

	switch root.XMLName.Local {
	case "testsuites":
		return root.Suites
	case "testsuite":
		return []xmlSuite{root.xmlSuite}
	}
	return nil
}

type walker struct {
	cases []contracts.TestCase
}

func (w *walker) visitSuite(s *xmlSuite) {
	switch classify(s) {
	case shapeCases:
		w.visitCases(s)
		w.visitNested(s)
	case shapeNested:
		w.visitNested(s)
	case shapeAggregate:
		w.visitAggregate(s)
	}
}

func (w *walker) visitNested(s *xmlSuite) {
	for i := range s.Suites {
		w.visitSuite(&s.Suites[i])
	}
}

func (w *walker) visitCases(s *xmlSuite) {
	suite := suiteIdentity(s)
	for _, c := range s.Cases {
		tc := contracts.TestCase{
			Name:       c.Name,
			Suite:      suite,
			Status:     contracts.TestPassed,
			DurationMs: millis(seconds(c.Time)),
		}
		if tc.Suite == "" {
			tc.Suite = c.ClassName
		}

		switch {
		case len(c.Failures) > 0:
			tc.Status = contracts.TestFailed
			tc.ErrorMessage, tc.StackTrace = c.Failures[0].detail()
		case len(c.Errors) > 0:
			tc.Status = contracts.TestFailed
			tc.ErrorMessage, tc.StackTrace = c.Errors[0].detail()
		case c.Skipped != nil:
			tc.Status = contracts.TestSkipped
			tc.ErrorMessage, _ = c.Skipped.detail()
		}

		w.cases = append(w.cases, tc)
	}
}

// visitAggregate emits one pseudo case standing for the whole suite.
func (w *walker) visitAggregate(s *xmlSuite) {
	name := suiteIdentity(s)
	tc := contracts.TestCase{
		Name:       name,
		Suite:      name,
		Status:     contracts.TestPassed,
		DurationMs: millis(seconds(s.Time)),
	}
	switch {
	case atoi(s.Failures)+atoi(s.Errors) > 0:
		tc.Status = contracts.TestFailed
	case atoi(s.Skipped) > 0:
		tc.Status = contracts.TestSkipped
	}
	w.cases = append(w.cases, tc)
}

func suiteIdentity(s *xmlSuite) string {
	if s.File != "" {
		return s.File
	}
	return s.Name
}

// detail returns the message (attribute, else first line of text) and the cleaned text.
func (r *xmlResult) detail() (message, stackTrace string) {
	stackTrace = sanitize.Clean(r.Content)
	message = sanitize.Clean(r.Message)
	if message == "" && stackTrace != "" {
		message, _, _ = strings.Cut(stackTrace, "\n")
		message = strings.TrimSpace(message)
	}
	return message, stackTrace
}

func millis(secs float64) int64 {
	return int64(math.Round(secs * 1000))
}
