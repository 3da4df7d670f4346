package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the scenarios of one run
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr,omitempty"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitFormatter formats run results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// classname groups test cases by the file that defined them.
func classname(source string) string {
	if source == "" {
		return "hitprobe"
	}
	if i := strings.LastIndex(source, ":"); i > 0 {
		return source[:i]
	}
	return source
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	name := result.BaseURL
	if name == "" {
		name = "hitprobe"
	}
	suite := JUnitTestSuite{
		Name:      name,
		Tests:     result.Total(),
		Time:      result.Duration.Seconds(),
		Timestamp: result.StartedAt.UTC().Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run.id", Value: result.ID},
			{Name: "baseURL", Value: result.BaseURL},
			{Name: "attempts", Value: fmt.Sprint(result.TotalAttempts())},
		},
		TestCases: make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: classname(r.Source),
			Time:      r.Duration.Seconds(),
			SystemOut: attemptLog(r.History),
		}

		if !r.Passed {
			detail := fmt.Sprintf("%s after %s", diagnostic(r.LastError), plural(r.Attempts, "attempt"))
			if r.ErrorKind == runner.KindAssertion {
				suite.Failures++
				tc.Failure = &JUnitFailure{
					Message: diagnostic(r.LastError),
					Type:    "AssertionError",
					Content: detail,
				}
			} else {
				suite.Errors++
				tc.Error = &JUnitError{
					Message: diagnostic(r.LastError),
					Type:    string(r.ErrorKind),
					Content: detail,
				}
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

// FormatError records an error that stopped the run before any scenario
// started, such as a failed preflight, as an errored test case.
func (f *JUnitFormatter) FormatError(err error) {
	f.testSuites = append(f.testSuites, JUnitTestSuite{
		Name:      "hitprobe",
		Tests:     1,
		Errors:    1,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TestCases: []JUnitTestCase{{
			Name:      "preflight",
			ClassName: "hitprobe",
			Error:     &JUnitError{Message: diagnostic(err), Type: "preflight"},
		}},
	})
}

// attemptLog lists the attempts of a retried scenario, one per line. A
// single attempt is left to the failure element.
func attemptLog(history []runner.Attempt) string {
	if len(history) < 2 {
		return ""
	}
	var b strings.Builder
	for _, a := range history {
		status := "-"
		if a.Status != 0 {
			status = fmt.Sprint(a.Status)
		}
		fmt.Fprintf(&b, "attempt %d: %s (%dms)", a.Number, status, a.Duration.Milliseconds())
		if a.Err != nil {
			fmt.Fprintf(&b, " %s", diagnostic(a.Err))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
	}
	timestamp := ""
	if len(f.testSuites) > 0 {
		timestamp = f.testSuites[0].Timestamp
	}

	suites := JUnitTestSuites{
		Name:       "hitprobe",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Time:       totalDuration.Seconds(),
		Timestamp:  timestamp,
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
