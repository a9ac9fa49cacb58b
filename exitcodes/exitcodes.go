// Package exitcodes defines the standard exit codes used by op-shunit.
package exitcodes

// Exit code constants used by op-shunit
//
// * Success (0): The report was written, whatever the scripts' results
// * RuntimeErr (2): The run could not be orchestrated, e.g. the manifest could not
// be parsed or the report could not be written
const (
	Success    = 0 // Report written
	RuntimeErr = 2 // Runtime errors
)
