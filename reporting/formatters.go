package reporting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// getStatusText returns human-readable status text
func getStatusText(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "PASS"
	case types.TestStatusFail:
		return "FAIL"
	case types.TestStatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// ReportFormatter defines the interface for different report output formats
type ReportFormatter interface {
	Format(data *ReportData) (string, error)
}

// ReportWriter defines the interface for writing reports to various destinations
type ReportWriter interface {
	Write(content string) error
}

// FileWriter writes reports to a file
type FileWriter struct {
	path string
}

// NewFileWriter creates a new file writer
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write writes the content to the file, creating its directory if needed
func (fw *FileWriter) Write(content string) error {
	if dir := filepath.Dir(fw.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(fw.path, []byte(content), 0644)
}

// StreamWriter writes reports to a stream such as stdout
type StreamWriter struct {
	w io.Writer
}

// NewStdoutWriter creates a writer for stdout
func NewStdoutWriter() *StreamWriter {
	return &StreamWriter{w: os.Stdout}
}

// NewStreamWriter creates a writer for w
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Write writes the content to the stream
func (sw *StreamWriter) Write(content string) error {
	_, err := io.WriteString(sw.w, content)
	return err
}

// TableFormatter formats reports as ASCII tables
type TableFormatter struct {
	title string
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(title string) *TableFormatter {
	return &TableFormatter{
		title: title,
	}
}

// Format formats the report data as an ASCII table
func (tf *TableFormatter) Format(data *ReportData) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(tf.title)

	t.AppendHeader(table.Row{
		"#", "Script", "Duration", "Stdout", "Stderr", "Status", "Reason",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Script", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Stdout", Align: text.AlignRight},
		{Name: "Stderr", Align: text.AlignRight},
		{Name: "Reason", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	var stdoutBytes, stderrBytes int64
	for _, test := range data.Tests {
		reason := ""
		if test.Failure != nil {
			reason = fmt.Sprintf("%s: %s", test.Failure.Kind, test.Failure.Message)
		}
		t.AppendRow(table.Row{
			test.ExecutionOrder,
			test.ShortName,
			formatDuration(test.Duration),
			humanize.Bytes(uint64(test.StdoutBytes)),
			humanize.Bytes(uint64(test.StderrBytes)),
			getStatusText(test.Status),
			reason,
		})
		stdoutBytes += test.StdoutBytes
		stderrBytes += test.StderrBytes
	}

	if data.HasFailures || data.Interrupted {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	t.Style().Format.Footer = text.FormatDefault

	overallStatus := "PASS"
	if data.HasFailures || data.Interrupted {
		overallStatus = "FAIL"
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d scripts, %d passed, %d failed, %d errors", data.Stats.Total,
			data.Stats.Passed, data.Stats.Failed, data.Stats.Errored),
		formatDuration(data.Duration),
		humanize.Bytes(uint64(stdoutBytes)),
		humanize.Bytes(uint64(stderrBytes)),
		overallStatus,
		"",
	})

	t.Render()
	return buf.String(), nil
}

// TextSummaryFormatter formats reports as plain text summaries
type TextSummaryFormatter struct {
	includeDetails bool
}

// NewTextSummaryFormatter creates a new text summary formatter
func NewTextSummaryFormatter(includeDetails bool) *TextSummaryFormatter {
	return &TextSummaryFormatter{
		includeDetails: includeDetails,
	}
}

// Format formats the report data as a text summary
func (tsf *TextSummaryFormatter) Format(data *ReportData) (string, error) {
	var summary strings.Builder

	fmt.Fprintf(&summary, "SCRIPT SUMMARY\n")
	fmt.Fprintf(&summary, "==============\n")
	fmt.Fprintf(&summary, "Run ID: %s\n", data.RunID)
	fmt.Fprintf(&summary, "Suite: %s\n", data.SuiteName)
	fmt.Fprintf(&summary, "Time: %s\n", data.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&summary, "Duration: %s\n\n", formatDuration(data.Duration))

	if data.Interrupted {
		fmt.Fprintf(&summary, "WARNING: the run was interrupted, not all scripts ran\n\n")
	}
	if data.HasTimeouts {
		fmt.Fprintf(&summary, "WARNING: %d SCRIPT(S) TIMED OUT\n\n", data.Stats.Timeouts)
	}

	fmt.Fprintf(&summary, "Results:\n")
	fmt.Fprintf(&summary, "  Total:    %d\n", data.Stats.Total)
	fmt.Fprintf(&summary, "  Passed:   %d\n", data.Stats.Passed)
	fmt.Fprintf(&summary, "  Failed:   %d\n", data.Stats.Failed)
	fmt.Fprintf(&summary, "  Errors:   %d\n", data.Stats.Errored)
	if data.HasTimeouts {
		fmt.Fprintf(&summary, "  Timeouts: %d\n", data.Stats.Timeouts)
	}
	fmt.Fprintf(&summary, "  Pass rate: %s%%\n", data.PassRateText)
	fmt.Fprintf(&summary, "\n")

	if len(data.TimeoutTestNames) > 0 {
		fmt.Fprintf(&summary, "TIMED OUT SCRIPTS:\n")
		fmt.Fprintf(&summary, "==================\n")
		for _, name := range data.TimeoutTestNames {
			fmt.Fprintf(&summary, "  - %s\n", name)
		}
		fmt.Fprintf(&summary, "\n")
	}

	if len(data.FailedTestNames) > 0 {
		fmt.Fprintf(&summary, "Failed scripts:\n")
		for _, name := range data.FailedTestNames {
			fmt.Fprintf(&summary, "  - %s\n", name)
		}
		fmt.Fprintf(&summary, "\n")
	}

	if tsf.includeDetails {
		fmt.Fprintf(&summary, "DETAILED RESULTS:\n")
		fmt.Fprintf(&summary, "=================\n")
		for _, test := range data.Tests {
			fmt.Fprintf(&summary, "  %d. %s (%s) [%s]\n", test.ExecutionOrder, test.Name,
				formatDuration(test.Duration), getStatusText(test.Status))
			if test.Failure != nil {
				fmt.Fprintf(&summary, "     %s: %s\n", test.Failure.Kind, test.Failure.Message)
			}
		}
		fmt.Fprintf(&summary, "\n")
	}

	return summary.String(), nil
}

// ReportGenerator combines builder, formatter, and writer for easy report generation
type ReportGenerator struct {
	builder   *ReportBuilder
	formatter ReportFormatter
	writer    ReportWriter
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(builder *ReportBuilder, formatter ReportFormatter, writer ReportWriter) *ReportGenerator {
	return &ReportGenerator{
		builder:   builder,
		formatter: formatter,
		writer:    writer,
	}
}

// GenerateFromOutcomes builds, formats and writes a report from outcomes
func (rg *ReportGenerator) GenerateFromOutcomes(outcomes []*types.TestOutcome, info RunInfo) error {
	return rg.GenerateReport(rg.builder.BuildFromOutcomes(outcomes, info))
}

// GenerateReport generates a report from pre-built report data
func (rg *ReportGenerator) GenerateReport(reportData *ReportData) error {
	content, err := rg.formatter.Format(reportData)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if err := rg.writer.Write(content); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
