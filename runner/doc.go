// Package runner executes scripts and turns what they did into outcomes.
//
// The main components are:
//   - ScriptRunner: Runs a single script, classifies how it ended and builds its transcript
//   - Runner: Runs a list of scripts one after the other and aggregates their outcomes
//
// Scripts never run concurrently with each other. Each script's stdout and stderr are
// read concurrently by the capture package while it runs.
package runner
