package reporting

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// ReportStats contains aggregated statistics for a run
type ReportStats struct {
	Total    int
	Passed   int
	Failed   int // Assertion failures and timeouts
	Errored  int // Scripts that could not be run
	Timeouts int
	PassRate float64
}

// ReportTestItem represents a single script in the report
type ReportTestItem struct {
	Name         string // Display name
	ShortName    string // Display name without directories for absolute paths
	Path         string // Path as supplied
	AbsolutePath string // Resolved path, empty if resolution failed

	Status   types.TestStatus
	Failure  *types.Failure
	Duration time.Duration
	TimedOut bool

	StartTime      time.Time
	ExecutionOrder int

	StdoutBytes int64
	StderrBytes int64
}

// Property is a name/value pair recorded with the report, such as an environment
// variable.
type Property struct {
	Name  string
	Value string
}

// ReportData contains all the structured data needed for any report format
type ReportData struct {
	// Run information
	RunID        string
	SuiteName    string
	Hostname     string
	Timestamp    time.Time // Start of the run
	Duration     time.Duration
	DurationText string
	Interrupted  bool

	// Overall statistics
	Stats        ReportStats
	PassRateText string
	HasFailures  bool
	HasTimeouts  bool

	// Environment of the scripts, sorted by name
	Properties []Property

	// Scripts in execution order
	Tests        []ReportTestItem
	FailedTests  []ReportTestItem
	TimeoutTests []ReportTestItem

	FailedTestNames  []string
	TimeoutTestNames []string

	// Raw output of all scripts, in execution order
	SystemOut string
	SystemErr string
}

// RunInfo describes the run the outcomes belong to.
type RunInfo struct {
	RunID       string
	SuiteName   string
	Hostname    string
	StartTime   time.Time
	Duration    time.Duration
	Interrupted bool
	Environment map[string]string
}

// ReportBuilder constructs ReportData from script outcomes
type ReportBuilder struct {
	includeEnvironment bool
}

// NewReportBuilder creates a new report builder
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{
		includeEnvironment: true,
	}
}

// WithEnvironment controls whether the environment is recorded as report properties
func (rb *ReportBuilder) WithEnvironment(enabled bool) *ReportBuilder {
	rb.includeEnvironment = enabled
	return rb
}

// BuildFromOutcomes creates a ReportData from outcomes in execution order
func (rb *ReportBuilder) BuildFromOutcomes(outcomes []*types.TestOutcome, info RunInfo) *ReportData {
	report := &ReportData{
		RunID:            info.RunID,
		SuiteName:        info.SuiteName,
		Hostname:         info.Hostname,
		Timestamp:        info.StartTime,
		Duration:         info.Duration,
		DurationText:     formatDuration(info.Duration),
		Interrupted:      info.Interrupted,
		Tests:            make([]ReportTestItem, 0, len(outcomes)),
		FailedTests:      make([]ReportTestItem, 0),
		TimeoutTests:     make([]ReportTestItem, 0),
		FailedTestNames:  make([]string, 0),
		TimeoutTestNames: make([]string, 0),
	}

	if rb.includeEnvironment {
		report.Properties = sortedProperties(info.Environment)
	}

	var stdout, stderr []byte
	for i, outcome := range outcomes {
		item := createTestItem(outcome, i+1)
		report.Tests = append(report.Tests, item)
		rb.updateStats(&report.Stats, outcome)

		if !outcome.Passed() {
			report.FailedTests = append(report.FailedTests, item)
			if outcome.TimedOut {
				report.TimeoutTests = append(report.TimeoutTests, item)
				report.TimeoutTestNames = append(report.TimeoutTestNames, item.Name)
			} else {
				report.FailedTestNames = append(report.FailedTestNames, item.Name)
			}
		}

		stdout = append(stdout, outcome.Stdout...)
		stderr = append(stderr, outcome.Stderr...)
	}
	report.SystemOut = string(stdout)
	report.SystemErr = string(stderr)

	if report.Stats.Total > 0 {
		report.Stats.PassRate = float64(report.Stats.Passed) / float64(report.Stats.Total) * 100
	}
	report.PassRateText = fmt.Sprintf("%.2f", report.Stats.PassRate)
	report.HasFailures = report.Stats.Failed > 0 || report.Stats.Errored > 0
	report.HasTimeouts = report.Stats.Timeouts > 0

	return report
}

func createTestItem(outcome *types.TestOutcome, order int) ReportTestItem {
	return ReportTestItem{
		Name:           outcome.Script.DisplayName(),
		ShortName:      types.GetTestDisplayName(outcome),
		Path:           outcome.Path,
		AbsolutePath:   outcome.AbsolutePath,
		Status:         outcome.Status,
		Failure:        outcome.Failure,
		Duration:       outcome.Elapsed,
		TimedOut:       outcome.TimedOut,
		StartTime:      outcome.StartTime,
		ExecutionOrder: order,
		StdoutBytes:    outcome.StdoutBytes,
		StderrBytes:    outcome.StderrBytes,
	}
}

func (rb *ReportBuilder) updateStats(stats *ReportStats, outcome *types.TestOutcome) {
	stats.Total++
	switch outcome.Status {
	case types.TestStatusPass:
		stats.Passed++
	case types.TestStatusError:
		stats.Errored++
	default:
		stats.Failed++
	}
	if outcome.TimedOut {
		stats.Timeouts++
	}
}

func sortedProperties(env map[string]string) []Property {
	if len(env) == 0 {
		return nil
	}
	props := make([]Property, 0, len(env))
	for _, name := range slices.Sorted(maps.Keys(env)) {
		props = append(props, Property{Name: name, Value: env[name]})
	}
	return props
}
