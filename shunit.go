// Package shunit runs shell test scripts one after the other and reports their
// results as a JUnit XML document.
package shunit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-shunit/logging"
	"github.com/ethereum-optimism/infra/op-shunit/metrics"
	"github.com/ethereum-optimism/infra/op-shunit/reporting"
	"github.com/ethereum-optimism/infra/op-shunit/runner"
	"github.com/ethereum-optimism/infra/op-shunit/service"
)

const (
	defaultHostname = "localhost"
	shutdownTimeout = 5 * time.Second
)

// Shunit runs a configured set of scripts and writes the report.
type Shunit struct {
	config  *Config
	version string
	log     log.Logger
}

// New creates a Shunit from a validated config.
func New(config *Config, version string) (*Shunit, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if config.Log == nil {
		config.Log = log.Root()
	}

	config.Log.Debug("Creating shunit with config",
		"scripts", len(config.Scripts),
		"workDir", config.WorkDir,
		"suite", config.SuiteName,
		"output", config.Output,
		"logDir", config.LogDir,
		"timeout", config.Timeout)

	return &Shunit{
		config:  config,
		version: version,
		log:     config.Log,
	}, nil
}

// Run runs all scripts and writes the report. Failing scripts are not an error;
// the returned error is always a RuntimeError.
func (s *Shunit) Run(ctx context.Context) (*runner.RunnerResult, error) {
	cfg := s.config

	env, err := CollectEnvironment(cfg.EnvFiles)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to collect environment: %w", err))
	}

	runID := uuid.New().String()
	var fileLogger *logging.FileLogger
	if cfg.LogDir != "" {
		fileLogger, err = logging.NewFileLogger(cfg.LogDir, runID)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
		}
	}

	if cfg.MetricsAddr != "" {
		svc := service.New(s.log.New("component", "service"))
		if err := svc.Start(cfg.MetricsAddr); err != nil {
			return nil, NewRuntimeError(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := svc.Shutdown(shutdownCtx); err != nil {
				s.log.Warn("Failed to shut down service", "err", err)
			}
		}()
	}

	runnerCfg := runner.Config{
		WorkDir:    cfg.WorkDir,
		Env:        env.List(),
		Timeout:    cfg.Timeout,
		FileLogger: fileLogger,
		Log:        s.log,
	}
	if cfg.Passthrough {
		runnerCfg.Stdout = cfg.Stdout
		runnerCfg.Stderr = cfg.Stderr
	}
	r, err := runner.NewRunner(runnerCfg)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create runner: %w", err))
	}

	s.log.Info("Running scripts", "run_id", runID, "count", len(cfg.Scripts), "version", s.version)
	result, err := r.RunAll(ctx, cfg.Scripts)
	if err != nil {
		// The transcripts are a convenience; the report is still written.
		s.log.Error("Failed to write script logs", "run_id", result.RunID, "err", err)
	}

	data := reporting.NewReportBuilder().BuildFromOutcomes(result.Outcomes, reporting.RunInfo{
		RunID:       result.RunID,
		SuiteName:   cfg.SuiteName,
		Hostname:    hostname(s.log),
		StartTime:   result.StartTime,
		Duration:    result.Duration,
		Interrupted: result.Interrupted,
		Environment: env,
	})

	if err := s.writeReport(data); err != nil {
		return result, NewRuntimeError(err)
	}
	if cfg.Summary {
		s.printSummary(data)
	}
	if fileLogger != nil {
		s.completeFileLogger(fileLogger, data)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return result, NewRuntimeError(fmt.Errorf("failed to write metrics file: %w", err))
		}
	}

	s.log.Info("Run completed", "run_id", result.RunID, "status", result.Status,
		"passed", result.Stats.Passed, "failed", result.Stats.Failed, "errored", result.Stats.Errored)
	return result, nil
}

func (s *Shunit) writeReport(data *reporting.ReportData) error {
	var writer reporting.ReportWriter = reporting.NewStreamWriter(s.config.Stdout)
	if s.config.Output != "" {
		writer = reporting.NewFileWriter(s.config.Output)
	}
	generator := reporting.NewReportGenerator(nil, reporting.NewJUnitFormatter(s.config.StripANSI), writer)
	if err := generator.GenerateReport(data); err != nil {
		metrics.RecordErrorDetails("report", err)
		return err
	}
	s.log.Debug("Report written", "output", s.config.Output)
	return nil
}

// printSummary writes the results table. Failing to do so is only logged.
func (s *Shunit) printSummary(data *reporting.ReportData) {
	title := fmt.Sprintf("Script Results (%s)", data.DurationText)
	generator := reporting.NewReportGenerator(nil, reporting.NewTableFormatter(title),
		reporting.NewStreamWriter(s.config.Stderr))
	if err := generator.GenerateReport(data); err != nil {
		s.log.Warn("Failed to print summary", "err", err)
	}
}

func (s *Shunit) completeFileLogger(fileLogger *logging.FileLogger, data *reporting.ReportData) {
	runID := fileLogger.GetRunID()
	summary, err := reporting.NewTextSummaryFormatter(true).Format(data)
	if err == nil {
		err = fileLogger.LogSummary(summary, runID)
	}
	if err != nil {
		s.log.Error("Failed to write summary log", "run_id", runID, "err", err)
	}
	if err := fileLogger.Complete(runID); err != nil {
		s.log.Error("Failed to complete file logger", "run_id", runID, "err", err)
		metrics.RecordErrorDetails("filelogger", err)
		return
	}
	dir, _ := fileLogger.GetDirectoryForRunID(runID)
	s.log.Info("Script logs written", "dir", dir)
}

func hostname(l log.Logger) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		l.Warn("Failed to determine hostname", "err", err)
		return defaultHostname
	}
	return name
}
