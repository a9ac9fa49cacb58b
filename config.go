package shunit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-shunit/flags"
	"github.com/ethereum-optimism/infra/op-shunit/testlist"
	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// DefaultSuiteName is used when neither --suite-name nor $PWD is set.
const DefaultSuiteName = "Unknown"

// Config holds the application configuration
type Config struct {
	Scripts     []types.Script // Positional arguments first, then the scripts file
	WorkDir     string         // Directory relative script paths resolve against
	SuiteName   string
	Output      string        // Report file, empty for stdout
	LogDir      string        // Directory for per-run transcripts, empty to disable
	Timeout     time.Duration // Default per-script timeout, 0 for none
	EnvFiles    []string      // Dotenv files merged into the scripts' environment
	Passthrough bool          // Echo script output live
	StripANSI   bool          // Strip escape sequences from report text
	Summary     bool          // Print a results table after the run
	MetricsAddr string
	MetricsFile string

	Stdout io.Writer // Receives the report when Output is empty, and echoed stdout
	Stderr io.Writer // Receives echoed stderr and the summary table
	Log    log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	scripts := make([]types.Script, 0, ctx.NArg())
	for _, arg := range ctx.Args().Slice() {
		scripts = append(scripts, types.Script{Path: arg})
	}
	if file := ctx.String(flags.ScriptsFile.Name); file != "" {
		listed, err := testlist.Load(file)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, listed...)
	}

	timeout := ctx.Duration(flags.Timeout.Name)
	if timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}

	output, err := absPath(ctx.String(flags.Output.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for output '%s': %w", ctx.String(flags.Output.Name), err)
	}
	logDir, err := absPath(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", ctx.String(flags.LogDir.Name), err)
	}
	metricsFile, err := absPath(ctx.String(flags.MetricsFile.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for metrics file '%s': %w", ctx.String(flags.MetricsFile.Name), err)
	}

	return &Config{
		Scripts:     scripts,
		WorkDir:     workDir,
		SuiteName:   suiteName(ctx.String(flags.SuiteName.Name)),
		Output:      output,
		LogDir:      logDir,
		Timeout:     timeout,
		EnvFiles:    ctx.StringSlice(flags.EnvFile.Name),
		Passthrough: ctx.Bool(flags.Passthrough.Name),
		StripANSI:   ctx.Bool(flags.StripANSI.Name),
		Summary:     ctx.Bool(flags.Summary.Name),
		MetricsAddr: ctx.String(flags.MetricsAddr.Name),
		MetricsFile: metricsFile,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         log,
	}, nil
}

// suiteName picks the configured name, then $PWD, then DefaultSuiteName.
func suiteName(configured string) string {
	if configured != "" {
		return configured
	}
	if pwd := os.Getenv("PWD"); pwd != "" {
		return pwd
	}
	return DefaultSuiteName
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
