package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-shunit/logging"
)

const EnvVarPrefix = "OP_SHUNIT"

// PrefixEnvVar returns the environment variable of a flag with the given suffix.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{prefix + "_" + suffix}
}

var (
	Quiet = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Silence all diagnostic logging",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "QUIET"),
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Increase logging verbosity (-v warn, -vv info, -vvv debug, -vvvv trace)",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
	}
	Timestamp = &cli.StringFlag{
		Name:    "timestamp",
		Aliases: []string{"t"},
		Value:   string(logging.TimestampNone),
		Usage:   "Precision of log timestamps: sec, ms, ns or none",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "TIMESTAMP"),
		Action: func(_ *cli.Context, v string) error {
			_, err := logging.ParseTimestampPrecision(v)
			return err
		},
	}
	Output = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "File to write the JUnit XML report to. The report goes to stdout if unset",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "OUTPUT"),
	}
	LogFormat = &cli.StringFlag{
		Name:    "log.format",
		Value:   logging.FormatTerminal,
		Usage:   "Format of diagnostic logs: terminal, logfmt or json",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "LOG_FORMAT"),
		Action: func(_ *cli.Context, v string) error {
			return validateLogFormat(v)
		},
	}
	LogColor = &cli.BoolFlag{
		Name:    "log.color",
		Usage:   "Colorize terminal logs. Defaults to whether stderr is a terminal",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "LOG_COLOR"),
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		Usage:   "Default timeout per script (e.g. '30s', '5m'). 0 disables the timeout",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
	}
	ScriptsFile = &cli.StringFlag{
		Name:    "scripts-file",
		Usage:   "YAML manifest of scripts to run after the ones given as arguments",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "SCRIPTS_FILE"),
	}
	EnvFile = &cli.StringSliceFlag{
		Name:    "env-file",
		Usage:   "Dotenv file whose variables are added to the scripts' environment. May be repeated",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "ENV_FILE"),
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Usage:   "Directory to write per-run script transcripts to. Disabled if unset",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
	}
	Passthrough = &cli.BoolFlag{
		Name:    "passthrough",
		Value:   true,
		Usage:   "Echo script output live while the scripts run",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "PASSTHROUGH"),
	}
	StripANSI = &cli.BoolFlag{
		Name:    "strip-ansi",
		Usage:   "Strip ANSI escape sequences from script output in the report",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "STRIP_ANSI"),
	}
	Summary = &cli.BoolFlag{
		Name:    "summary",
		Usage:   "Print a table of script results to stderr after the run",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "SUMMARY"),
	}
	SuiteName = &cli.StringFlag{
		Name:    "suite-name",
		Usage:   "Name of the test suite in the report. Defaults to the working directory",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "SUITE_NAME"),
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "Address to serve /metrics and /healthz on during the run (e.g. '0.0.0.0:7300'). Disabled if unset",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "METRICS_ADDR"),
	}
	MetricsFile = &cli.StringFlag{
		Name:    "metrics.file",
		Usage:   "File to write metrics to in the Prometheus text format after the run",
		EnvVars: PrefixEnvVar(EnvVarPrefix, "METRICS_FILE"),
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Quiet,
	Verbose,
	Timestamp,
	Output,
	LogFormat,
	LogColor,
	Timeout,
	ScriptsFile,
	EnvFile,
	LogDir,
	Passthrough,
	StripANSI,
	Summary,
	SuiteName,
	MetricsAddr,
	MetricsFile,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

func validateLogFormat(v string) error {
	switch strings.ToLower(v) {
	case logging.FormatTerminal, logging.FormatLogfmt, logging.FormatJSON:
		return nil
	default:
		return fmt.Errorf("log.format must be one of %s, %s, %s, got %q",
			logging.FormatTerminal, logging.FormatLogfmt, logging.FormatJSON, v)
	}
}
