package capture

import "fmt"

// Operations reported by SpawnError
const (
	OpPipe  = "create pipe"
	OpStart = "start process"
	OpRead  = "read output"
	OpWait  = "wait for process"
)

// SpawnError is returned when a script could not be run to completion: it could not
// be started, its output pipes could not be set up or read, or waiting for it failed.
// A script that runs and exits non-zero is not a SpawnError.
type SpawnError struct {
	Op   string
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *SpawnError) Unwrap() error {
	return e.Err
}
