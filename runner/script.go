package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-shunit/capture"
	"github.com/ethereum-optimism/infra/op-shunit/transcript"
	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// ScriptRunner runs one script at a time and classifies the result.
type ScriptRunner struct {
	capturer *capture.Capturer
	workDir  string
	timeout  time.Duration
	log      log.Logger
	tracer   trace.Tracer
}

// ScriptRunnerConfig holds configuration for creating a ScriptRunner
type ScriptRunnerConfig struct {
	Capturer *capture.Capturer // Must spawn processes in WorkDir
	WorkDir  string            // Directory relative script paths resolve against
	Timeout  time.Duration     // Default per-script timeout, NoTimeout to disable
	Log      log.Logger
}

// NewScriptRunner creates a ScriptRunner
func NewScriptRunner(cfg ScriptRunnerConfig) (*ScriptRunner, error) {
	if cfg.Capturer == nil {
		return nil, fmt.Errorf("capturer is required")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", cfg.Timeout)
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &ScriptRunner{
		capturer: cfg.Capturer,
		workDir:  cfg.WorkDir,
		timeout:  cfg.Timeout,
		log:      cfg.Log,
		tracer:   otel.Tracer(TracerName),
	}, nil
}

// Run executes a script and returns its outcome. It never fails: problems running
// the script are reported in the outcome, so other scripts are not affected.
func (s *ScriptRunner) Run(ctx context.Context, script types.Script) *types.TestOutcome {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("script %s", script.Path))
	defer span.End()

	outcome := &types.TestOutcome{
		Script:    script,
		Path:      script.Path,
		StartTime: time.Now(),
	}

	absPath, err := s.resolve(script.Path)
	if err != nil {
		outcome.Elapsed = time.Since(outcome.StartTime)
		s.setIOError(outcome, fmt.Errorf("failed to resolve script path: %w", err))
		finishSpan(span, outcome)
		return outcome
	}
	outcome.AbsolutePath = absPath
	span.SetAttributes(attribute.String("script.path", absPath))

	timeout := s.timeout
	if script.Timeout != nil {
		timeout = *script.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.log.Info("Running script", "script", script.Path, "path", absPath, "timeout", timeout)
	result, err := s.capturer.Capture(ctx, commandPath(script.Path))
	if err != nil {
		outcome.Elapsed = time.Since(outcome.StartTime)
		s.setIOError(outcome, err)
		finishSpan(span, outcome)
		return outcome
	}

	outcome.StartTime = result.Started
	outcome.Elapsed = result.Duration()
	outcome.Stdout = transcript.Concat(result.Stdout)
	outcome.Stderr = transcript.Concat(result.Stderr)
	outcome.StdoutBytes = int64(len(outcome.Stdout))
	outcome.StderrBytes = int64(len(outcome.Stderr))
	outcome.Transcript = transcript.Build(result.Stdout, result.Stderr)
	classify(outcome, result, timeout)

	s.log.Info("Script finished", "script", script.Path, "status", outcome.Status,
		"exit", result.Status, "elapsed", outcome.Elapsed)
	finishSpan(span, outcome)
	return outcome
}

// resolve returns the absolute, symlink-free path of a script.
func (s *ScriptRunner) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty script path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (s *ScriptRunner) setIOError(outcome *types.TestOutcome, err error) {
	s.log.Warn("Failed to run script", "script", outcome.Path, "err", err)
	outcome.Status = types.TestStatusError
	outcome.Failure = &types.Failure{
		Kind:    types.FailureKindIO,
		Message: err.Error(),
	}
}

// classify fills in status and failure from how the process ended.
func classify(outcome *types.TestOutcome, result *capture.Result, timeout time.Duration) {
	switch {
	case result.TimedOut():
		outcome.Status = types.TestStatusFail
		outcome.TimedOut = true
		outcome.Failure = &types.Failure{
			Kind:    types.FailureKindTimeout,
			Message: fmt.Sprintf(TimedOutMessage, timeout),
			Body:    outcome.Transcript,
		}
	case !result.Status.Success():
		msg := fmt.Sprintf(NonZeroExitMessage, result.Status.Code)
		if result.Status.Signaled {
			msg = fmt.Sprintf("%s (%s)", msg, result.Status)
		}
		outcome.Status = types.TestStatusFail
		outcome.Failure = &types.Failure{
			Kind:    types.FailureKindAssertion,
			Message: msg,
			Body:    outcome.Transcript,
		}
	default:
		outcome.Status = types.TestStatusPass
	}
}

// commandPath returns the path to execute for a script. Paths without a separator
// would otherwise be looked up in $PATH.
func commandPath(path string) string {
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) || strings.Contains(path, "/") {
		return path
	}
	return LocalPathPrefix + path
}

func finishSpan(span trace.Span, outcome *types.TestOutcome) {
	span.SetAttributes(
		attribute.String("script.status", string(outcome.Status)),
		attribute.Int64("script.elapsed_ms", outcome.Elapsed.Milliseconds()),
	)
	if outcome.Failure != nil {
		span.SetStatus(codes.Error, outcome.Failure.Message)
	}
}
