package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

const (
	MetricsNamespace = "shunit"
)

// Stream labels for captured output
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	scriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scripts_total",
		Help:      "Count of executed scripts",
	}, []string{
		"script",
		"result",
	})

	scriptTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "script_timeouts_total",
		Help:      "Count of scripts killed after their timeout passed",
	})

	scriptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "script_duration_seconds",
		Help:      "Wall-clock duration of script executions",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 600},
	}, []string{
		"result",
	})

	capturedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "captured_bytes_total",
		Help:      "Bytes of script output captured per stream",
	}, []string{
		"stream",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of script runs",
	}, []string{
		"run_id",
		"result",
	})

	runScriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scripts_total",
		Help:      "Total number of scripts in a run",
	}, []string{
		"run_id",
	})

	runScriptsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scripts_passed",
		Help:      "Number of passed scripts in a run",
	}, []string{
		"run_id",
	})

	runScriptsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scripts_failed",
		Help:      "Number of failed scripts in a run",
	}, []string{
		"run_id",
	})

	runScriptsErrored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scripts_errored",
		Help:      "Number of scripts in a run that could not be executed",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of script runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordScript records the outcome of a single script execution.
func RecordScript(outcome *types.TestOutcome) {
	if !isValidResult(outcome.Status) {
		log.Error("RecordScript - invalid result", "result", outcome.Status)
		return
	}
	script := outcome.Script.DisplayName()
	if Debug {
		log.Debug("metric inc",
			"m", "scripts_total",
			"script", script,
			"result", outcome.Status,
			"duration", outcome.Elapsed)
	}
	scriptsTotal.WithLabelValues(script, string(outcome.Status)).Inc()
	scriptDuration.WithLabelValues(string(outcome.Status)).Observe(outcome.Elapsed.Seconds())
	capturedBytesTotal.WithLabelValues(StreamStdout).Add(float64(outcome.StdoutBytes))
	capturedBytesTotal.WithLabelValues(StreamStderr).Add(float64(outcome.StderrBytes))
	if outcome.TimedOut {
		scriptTimeoutsTotal.Inc()
	}
}

// RecordRun records the aggregate result of a run.
func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	errored int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runScriptsTotal.WithLabelValues(runID).Add(float64(total))
	runScriptsPassed.WithLabelValues(runID).Add(float64(passed))
	runScriptsFailed.WithLabelValues(runID).Add(float64(failed))
	runScriptsErrored.WithLabelValues(runID).Add(float64(errored))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// WriteTextfile writes all registered metrics to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
