package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-shunit/capture"
	"github.com/ethereum-optimism/infra/op-shunit/logging"
	"github.com/ethereum-optimism/infra/op-shunit/metrics"
	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// RunnerResult captures the complete run results
type RunnerResult struct {
	RunID       string
	Outcomes    []*types.TestOutcome // In execution order
	Status      types.TestStatus
	StartTime   time.Time
	Duration    time.Duration
	Stats       ResultStats
	Interrupted bool // The run was cancelled before all scripts ran
}

// ResultStats tracks outcome counts of a run
type ResultStats struct {
	Total    int
	Passed   int
	Failed   int // Assertion failures and timeouts
	Errored  int // Scripts that could not be run
	TimedOut int
}

// Add counts an outcome
func (s *ResultStats) Add(outcome *types.TestOutcome) {
	s.Total++
	switch outcome.Status {
	case types.TestStatusPass:
		s.Passed++
	case types.TestStatusError:
		s.Errored++
	default:
		s.Failed++
	}
	if outcome.TimedOut {
		s.TimedOut++
	}
}

// Runner runs scripts strictly one after the other.
type Runner struct {
	scripts    *ScriptRunner
	fileLogger *logging.FileLogger
	log        log.Logger
}

// Config holds configuration for creating a new runner
type Config struct {
	WorkDir    string
	Env        []string      // Environment of the scripts, nil inherits ours
	Timeout    time.Duration // Default per-script timeout
	Stdout     io.Writer     // Live echo of script stdout, nil disables
	Stderr     io.Writer     // Live echo of script stderr, nil disables
	FileLogger *logging.FileLogger
	Log        log.Logger
}

// NewRunner creates a new runner instance
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	capturer := capture.New(
		capture.WithDir(cfg.WorkDir),
		capture.WithEnv(cfg.Env),
		capture.WithEcho(cfg.Stdout, cfg.Stderr),
		capture.WithLogger(cfg.Log.New("component", "capture")),
	)
	scripts, err := NewScriptRunner(ScriptRunnerConfig{
		Capturer: capturer,
		WorkDir:  cfg.WorkDir,
		Timeout:  cfg.Timeout,
		Log:      cfg.Log,
	})
	if err != nil {
		return nil, err
	}

	cfg.Log.Debug("NewRunner()", "workDir", cfg.WorkDir, "timeout", cfg.Timeout,
		"logDir", fileLoggerDir(cfg.FileLogger))

	return &Runner{
		scripts:    scripts,
		fileLogger: cfg.FileLogger,
		log:        cfg.Log,
	}, nil
}

// RunAll runs scripts in order. A failing script never stops the ones after it; a
// cancelled ctx does, and the outcomes gathered so far are returned.
//
// The returned error reports problems writing the per-run log files. The result is
// complete even then.
func (r *Runner) RunAll(ctx context.Context, scripts []types.Script) (*RunnerResult, error) {
	// Use fileLogger's runID if available, otherwise generate new
	runID := uuid.New().String()
	if r.fileLogger != nil {
		runID = r.fileLogger.GetRunID()
	}

	start := time.Now()
	r.log.Debug("Running all scripts", "run_id", runID, "scripts", len(scripts))

	result := &RunnerResult{
		RunID:     runID,
		StartTime: start,
		Outcomes:  make([]*types.TestOutcome, 0, len(scripts)),
	}

	var sinkErrs []error
	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			r.log.Warn("Run interrupted", "run_id", runID, "completed", i, "remaining", len(scripts)-i, "err", err)
			result.Interrupted = true
			break
		}

		outcome := r.scripts.Run(ctx, script)
		result.Outcomes = append(result.Outcomes, outcome)
		result.Stats.Add(outcome)
		metrics.RecordScript(outcome)

		if r.fileLogger != nil {
			if err := r.fileLogger.LogTestResult(outcome, runID); err != nil {
				r.log.Error("Failed to log script outcome", "script", script.Path, "err", err)
				metrics.RecordErrorDetails("filelogger", err)
				sinkErrs = append(sinkErrs, err)
			}
		}
	}

	result.Duration = time.Since(start)
	result.Status = determineRunnerStatus(result)
	metrics.RecordRun(runID, string(result.Status), result.Stats.Total, result.Stats.Passed,
		result.Stats.Failed, result.Stats.Errored, result.Duration)

	if len(sinkErrs) > 0 {
		return result, fmt.Errorf("failed to write script logs: %w", errors.Join(sinkErrs...))
	}
	return result, nil
}

// determineRunnerStatus determines the overall status of the run
func determineRunnerStatus(result *RunnerResult) types.TestStatus {
	switch {
	case result.Stats.Errored > 0:
		return types.TestStatusError
	case result.Stats.Failed > 0, result.Interrupted:
		return types.TestStatusFail
	default:
		return types.TestStatusPass
	}
}

func fileLoggerDir(l *logging.FileLogger) string {
	if l == nil {
		return ""
	}
	return l.GetBaseDir()
}
