package reporting

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/acarl005/stripansi"
)

// JUnitTimestampLayout is the testsuite timestamp format: ISO 8601 without a zone.
const JUnitTimestampLayout = "2006-01-02T15:04:05"

type junitTestSuite struct {
	XMLName    xml.Name         `xml:"testsuite"`
	Errors     int              `xml:"errors,attr"`
	Failures   int              `xml:"failures,attr"`
	Hostname   string           `xml:"hostname,attr"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Time       string           `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr"`
	ID         string           `xml:"id,attr"`
	Properties *junitProperties `xml:"properties,omitempty"`
	TestCases  []junitTestCase  `xml:"testcase"`
	SystemOut  string           `xml:"system-out"`
	SystemErr  string           `xml:"system-err"`
}

type junitProperties struct {
	Properties []junitProperty `xml:"property"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitTestCase struct {
	Classname string      `xml:"classname,attr"`
	Name      string      `xml:"name,attr"`
	Time      string      `xml:"time,attr"`
	Error     *junitError `xml:"error,omitempty"`
}

// junitError is used for every kind of failure; the kind goes into its type.
type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitFormatter formats reports as a JUnit XML testsuite document
type JUnitFormatter struct {
	stripANSI bool
}

// NewJUnitFormatter creates a new JUnit formatter. With stripANSI, terminal escape
// sequences are removed from all script output in the report.
func NewJUnitFormatter(stripANSI bool) *JUnitFormatter {
	return &JUnitFormatter{stripANSI: stripANSI}
}

// Format formats the report data as JUnit XML
func (jf *JUnitFormatter) Format(data *ReportData) (string, error) {
	suite := junitTestSuite{
		Errors:    data.Stats.Errored,
		Failures:  data.Stats.Failed,
		Hostname:  data.Hostname,
		Name:      data.SuiteName,
		Tests:     data.Stats.Total,
		Time:      formatSeconds(data.Duration.Seconds()),
		Timestamp: data.Timestamp.Format(JUnitTimestampLayout),
		ID:        data.RunID,
		TestCases: make([]junitTestCase, 0, len(data.Tests)),
		SystemOut: jf.text(data.SystemOut),
		SystemErr: jf.text(data.SystemErr),
	}

	if len(data.Properties) > 0 {
		props := &junitProperties{Properties: make([]junitProperty, 0, len(data.Properties))}
		for _, p := range data.Properties {
			props.Properties = append(props.Properties, junitProperty{Name: p.Name, Value: p.Value})
		}
		suite.Properties = props
	}

	for _, test := range data.Tests {
		tc := junitTestCase{
			Classname: test.AbsolutePath,
			Name:      test.Path,
			Time:      formatSeconds(test.Duration.Seconds()),
		}
		if test.Failure != nil {
			tc.Error = &junitError{
				Message: test.Failure.Message,
				Type:    string(test.Failure.Kind),
				Body:    jf.text(test.Failure.Body),
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(suite); err != nil {
		return "", fmt.Errorf("failed to encode JUnit report: %w", err)
	}
	buf.WriteString("\n")
	return buf.String(), nil
}

func (jf *JUnitFormatter) text(s string) string {
	if jf.stripANSI {
		return stripansi.Strip(s)
	}
	return s
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
