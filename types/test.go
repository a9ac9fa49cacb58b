package types

import (
	"path/filepath"
	"time"
)

// TestStatus represents the possible states of a script execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusError TestStatus = "error"
)

// FailureKind classifies why a script did not pass. The values end up verbatim in
// the report's error type attribute.
type FailureKind string

const (
	FailureKindIO        FailureKind = "IO error"
	FailureKindAssertion FailureKind = "Assertion failed"
	FailureKindTimeout   FailureKind = "Timeout"
)

// Failure describes a failed script execution.
type Failure struct {
	Message string
	Kind    FailureKind
	Body    string // Merged, chronological stdout+stderr transcript
}

// Script identifies a script to run, as given on the command line or in a manifest.
type Script struct {
	Path    string         `yaml:"path"`
	Name    string         `yaml:"name,omitempty"`
	Timeout *time.Duration `yaml:"timeout,omitempty"`
}

// TestOutcome captures the outcome of a single script run
type TestOutcome struct {
	Script       Script
	Path         string // Path as supplied
	AbsolutePath string // Resolved, symlink-free path; empty if resolution failed
	Status       TestStatus
	Failure      *Failure // Set iff the script failed or could not be run
	StartTime    time.Time
	Elapsed      time.Duration
	TimedOut     bool
	Transcript   string // Merged, chronological stdout+stderr of the script
	Stdout       string // Raw stdout of the script, fragments concatenated
	Stderr       string // Raw stderr of the script, fragments concatenated
	StdoutBytes  int64
	StderrBytes  int64
}

// Passed reports whether the script ran and exited successfully.
func (o *TestOutcome) Passed() bool {
	return o.Failure == nil
}

// DisplayName returns the configured name of the script, falling back to the path
// as given.
func (s Script) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// GetTestDisplayName returns a short display name for an outcome. Absolute paths are
// shortened to their base name to avoid wrapping in tables.
func GetTestDisplayName(outcome *TestOutcome) string {
	name := outcome.Script.DisplayName()
	if name == "" {
		name = outcome.Path
	}
	if filepath.IsAbs(name) {
		return filepath.Base(name)
	}
	return name
}
