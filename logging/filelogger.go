package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	PassedDirName      = "passed"
	FailedDirName      = "failed"
	SummaryFileName    = "summary.log"
	AllLogsFileName    = "all.log"
)

// ResultSink is an interface for different ways of consuming script outcomes
type ResultSink interface {
	// Consume processes a single outcome
	Consume(outcome *types.TestOutcome, runID string) error
	// Complete is called when all outcomes have been consumed
	Complete(runID string) error
}

// FileLogger writes script transcripts and the run summary below
// <baseDir>/testrun-<runID>/.
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	mu           sync.Mutex            // Protects asyncWriters
	sinks        []ResultSink          // Collection of outcome consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex // Protects stopped and sends on queue
	stopped bool
	err     error // First write error, owned by processQueue until it returns
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil && af.err == nil {
			af.err = err
		}
	}
}

// Close stops the async writer and closes the file. It returns the first write
// error, if any.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	closeErr := af.file.Close()
	if af.err != nil {
		return fmt.Errorf("failed to write %s: %w", af.file.Name(), af.err)
	}
	return closeErr
}

// NewFileLogger creates the run directory and its sinks.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	dirs := []string{
		baseDir,
		logDir,
		filepath.Join(logDir, PassedDirName),
		filepath.Join(logDir, FailedDirName),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	logger.sinks = []ResultSink{
		&AllLogsFileSink{logger: logger},
		&PerScriptFileSink{logger: logger, written: make(map[string]bool)},
	}
	return logger, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

// GetDirectoryForRunID returns the directory holding the logs of runID.
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// LogTestResult feeds an outcome to all registered sinks.
func (l *FileLogger) LogTestResult(outcome *types.TestOutcome, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(outcome, runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes a summary of the run to summary.log
func (l *FileLogger) LogSummary(summary string, runID string) error {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := l.getAsyncWriter(filepath.Join(dir, SummaryFileName))
	if err != nil {
		return err
	}
	return writer.Write([]byte(summary))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	return l.closeAllWriters()
}

// GetRunID returns the run ID the logger was created for
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetBaseDir returns the directory of the current run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	s = strings.TrimLeft(s, "./")
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s = replacer.Replace(s)
	if s == "" {
		return "script"
	}
	return s
}

// AllLogsFileSink appends every outcome to a single all.log file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume writes an outcome to the all.log file
func (s *AllLogsFileSink) Consume(outcome *types.TestOutcome, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, AllLogsFileName))
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ SCRIPT: %-60s │\n", truncateString(outcome.Script.DisplayName(), 60))
	fmt.Fprintf(&content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Status:   %-58s │\n", outcome.Status)
	fmt.Fprintf(&content, "│ Path:     %-58s │\n", truncateString(outcome.AbsolutePath, 58))
	fmt.Fprintf(&content, "│ Duration: %-58s │\n", formatDuration(outcome.Elapsed))
	fmt.Fprintf(&content, "│ Started:  %-58s │\n", outcome.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n\n")

	if outcome.Failure != nil {
		fmt.Fprintf(&content, "ERROR:\n")
		fmt.Fprintf(&content, "~~~~~~\n")
		fmt.Fprintf(&content, "%s: %s\n\n", outcome.Failure.Kind, outcome.Failure.Message)
	}
	if outcome.Transcript != "" {
		fmt.Fprintf(&content, "OUTPUT:\n")
		fmt.Fprintf(&content, "~~~~~~~\n")
		fmt.Fprintf(&content, "%s\n", indentText(outcome.Transcript, "  "))
	}
	fmt.Fprintf(&content, "\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerScriptFileSink writes one transcript file per script into the passed or failed
// directory of the run.
type PerScriptFileSink struct {
	logger  *FileLogger
	written map[string]bool // File names issued so far, to keep repeated scripts apart
	mu      sync.Mutex
}

// Consume writes the outcome's transcript to its own file
func (s *PerScriptFileSink) Consume(outcome *types.TestOutcome, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	targetDir := filepath.Join(dir, PassedDirName)
	if !outcome.Passed() {
		targetDir = filepath.Join(dir, FailedDirName)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filename := s.uniqueFilename(safeFilename(outcome.Script.DisplayName()))
	writer, err := s.logger.getAsyncWriter(filepath.Join(targetDir, filename+".log"))
	if err != nil {
		return err
	}

	var content strings.Builder
	if outcome.Failure != nil {
		fmt.Fprintf(&content, "%s\n", strings.Repeat("-", 80))
		fmt.Fprintf(&content, "ERROR SUMMARY:\n")
		fmt.Fprintf(&content, "=============\n\n")
		fmt.Fprintf(&content, "Kind:     %s\n", outcome.Failure.Kind)
		fmt.Fprintf(&content, "Message:  %s\n", outcome.Failure.Message)
		fmt.Fprintf(&content, "Duration: %s\n\n", formatDuration(outcome.Elapsed))
	}

	fmt.Fprintf(&content, "OUTPUT:\n")
	fmt.Fprintf(&content, "=======\n\n")
	if outcome.Transcript != "" {
		content.WriteString(outcome.Transcript)
		if !strings.HasSuffix(outcome.Transcript, "\n") {
			content.WriteString("\n")
		}
	} else {
		fmt.Fprintf(&content, "No output captured.\n")
	}

	if outcome.Passed() {
		fmt.Fprintf(&content, "\n%s\n", strings.Repeat("-", 80))
		fmt.Fprintf(&content, "RESULT SUMMARY:\n")
		fmt.Fprintf(&content, "===============\n\n")
		fmt.Fprintf(&content, "Script passed: %s\n", outcome.Script.DisplayName())
		fmt.Fprintf(&content, "Duration:      %s\n", formatDuration(outcome.Elapsed))
	}

	return writer.Write([]byte(content.String()))
}

// uniqueFilename appends a counter when the same script shows up more than once in
// a run.
func (s *PerScriptFileSink) uniqueFilename(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := name
	for n := 2; s.written[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", name, n)
	}
	s.written[candidate] = true
	return candidate
}

// Complete is a no-op for PerScriptFileSink
func (s *PerScriptFileSink) Complete(runID string) error {
	return nil
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
