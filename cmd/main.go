package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	shunit "github.com/ethereum-optimism/infra/op-shunit"
	"github.com/ethereum-optimism/infra/op-shunit/exitcodes"
	"github.com/ethereum-optimism/infra/op-shunit/flags"
	"github.com/ethereum-optimism/infra/op-shunit/logging"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// otlpEndpointEnv enables trace export when set.
const otlpEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

func main() {
	app := newApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-shunit"
	app.Usage = "Run shell test scripts and report the results as JUnit XML"
	app.Description = "op-shunit runs each script in turn, captures its output and writes a JUnit XML report. " +
		"Failing scripts are recorded in the report and do not change the exit code."
	app.ArgsUsage = "[script ...]"
	app.UseShortOptionHandling = true
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
	}
	return app
}

// exitCode maps an error returned by run to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	if shunit.IsRuntimeError(err) {
		return exitcodes.RuntimeErr
	}
	return 1
}

func run(ctx *cli.Context) error {
	logger, err := setupLogging(ctx)
	if err != nil {
		return shunit.NewRuntimeError(fmt.Errorf("failed to set up logging: %w", err))
	}

	shutdown, err := setupTelemetry(ctx.App)
	if err != nil {
		logger.Warn("Failed to set up open telemetry", "err", err)
	} else {
		defer shutdown()
	}

	cfg, err := shunit.NewConfig(ctx, logger)
	if err != nil {
		return shunit.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	s, err := shunit.New(cfg, Version)
	if err != nil {
		return shunit.NewRuntimeError(fmt.Errorf("failed to create shunit: %w", err))
	}
	_, err = s.Run(ctx.Context)
	return err
}

func setupLogging(ctx *cli.Context) (log.Logger, error) {
	precision, err := logging.ParseTimestampPrecision(ctx.String(flags.Timestamp.Name))
	if err != nil {
		return nil, err
	}
	color := logging.ColorDefault(os.Stderr)
	if ctx.IsSet(flags.LogColor.Name) {
		color = ctx.Bool(flags.LogColor.Name)
	}
	return logging.SetupDefault(os.Stderr, logging.Config{
		Format:    ctx.String(flags.LogFormat.Name),
		Color:     color,
		Verbosity: ctx.Count(flags.Verbose.Name),
		Quiet:     ctx.Bool(flags.Quiet.Name),
		Timestamp: precision,
	})
}

// setupTelemetry configures trace export. Without an OTLP endpoint spans go to
// the default no-op provider.
func setupTelemetry(app *cli.App) (func(), error) {
	if os.Getenv(otlpEndpointEnv) == "" {
		return func() {}, nil
	}
	return otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
}
