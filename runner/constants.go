package runner

// Script execution constants
const (
	// NoTimeout disables the per-script timeout
	NoTimeout = 0

	// Prefix that makes a bare script name resolve against the working directory
	// instead of $PATH
	LocalPathPrefix = "./"

	// Tracer name for script spans
	TracerName = "script runner"
)

// Failure messages, as they appear in reports
const (
	NonZeroExitMessage = "Non-zero exit-code: %d"
	TimedOutMessage    = "Timed out after %s"
)
