// Package capture runs a child process and records everything it writes to stdout
// and stderr as timestamped fragments, echoing the output live as it arrives.
//
// Each capture runs three goroutines that never wait on each other: one reader per
// output pipe and one waiter for the process exit. A burst on one stream therefore
// never delays the other, and the child can not block on a full pipe while the
// parent is busy elsewhere.
package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// DefaultBufferSize bounds the size of a single fragment. Longer lines are delivered
// in several fragments and glued back together by the transcript package.
const DefaultBufferSize = 64 * 1024

// Result is the output and exit status of one process. It is complete and no longer
// modified once Capture returns.
type Result struct {
	Status   ExitStatus
	Stdout   []types.LogLine
	Stderr   []types.LogLine
	Started  time.Time
	Finished time.Time

	// Killed is set if the process group was killed because the context ended
	// before the process exited. KillCause holds the context error.
	Killed    bool
	KillCause error
}

// Duration returns the wall-clock time from spawn until both streams were drained and
// the process had exited.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// TimedOut reports whether the process was killed because its deadline passed.
func (r *Result) TimedOut() bool {
	return r.Killed && errors.Is(r.KillCause, context.DeadlineExceeded)
}

// Capturer spawns processes and captures their output. The zero value is not usable;
// create one with New.
type Capturer struct {
	dir        string
	env        []string
	stdoutEcho io.Writer
	stderrEcho io.Writer
	bufSize    int
	log        log.Logger
}

// Option configures a Capturer
type Option func(*Capturer)

// WithEcho sets the writers that receive each fragment as it is read. A nil writer
// disables echoing for that stream.
func WithEcho(stdout, stderr io.Writer) Option {
	return func(c *Capturer) {
		c.stdoutEcho = stdout
		c.stderrEcho = stderr
	}
}

// WithDir sets the working directory of spawned processes.
func WithDir(dir string) Option {
	return func(c *Capturer) {
		c.dir = dir
	}
}

// WithEnv sets the environment of spawned processes. A nil env inherits the
// environment of the current process.
func WithEnv(env []string) Option {
	return func(c *Capturer) {
		c.env = env
	}
}

// WithBufferSize sets the read buffer size, which is also the largest fragment.
func WithBufferSize(size int) Option {
	return func(c *Capturer) {
		c.bufSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Capturer) {
		c.log = logger
	}
}

// New creates a Capturer. By default output is not echoed.
func New(opts ...Option) *Capturer {
	c := &Capturer{
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.Root()
	}
	return c
}

// Capture runs path with args, without stdin, and returns its output once the process
// has exited and both output streams have reached end-of-file.
//
// If ctx ends before that, the process and its process group are killed; the
// returned Result then has Killed set. Failing to start the process, set up its pipes,
// read its output or wait for it returns a *SpawnError and no Result.
func (c *Capturer) Capture(ctx context.Context, path string, args ...string) (*Result, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Op: OpPipe, Path: path, Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return nil, &SpawnError{Op: OpPipe, Path: path, Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = c.dir
	cmd.Env = c.env
	// cmd.Stdin is left nil, so the child reads from the null device
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcessGroup(cmd)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		closeFiles(stdoutR, stdoutW, stderrR, stderrW)
		return nil, &SpawnError{Op: OpStart, Path: path, Err: err}
	}
	// The child owns the write ends now. Ours must be closed or the readers would
	// never see end-of-file.
	closeFiles(stdoutW, stderrW)

	c.log.Debug("Spawned process", "path", path, "pid", cmd.Process.Pid)

	// The pipes are our own files, so Wait does not touch them and can run alongside
	// the readers.
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	// killCtx ends when ctx does or when a reader fails. The kill stays armed until
	// the process has exited, even after both streams are drained.
	killCtx, cancelKill := context.WithCancel(ctx)
	defer cancelKill()

	var killed atomic.Bool
	stopKill := context.AfterFunc(killCtx, func() {
		killed.Store(true)
		if err := killProcessGroup(cmd.Process); err != nil {
			c.log.Warn("Failed to kill process group", "path", path, "pid", cmd.Process.Pid, "err", err)
		}
	})

	var (
		group          errgroup.Group
		stdout, stderr []types.LogLine
	)
	group.Go(func() error {
		var err error
		if stdout, err = c.drain(stdoutR, c.stdoutEcho); err != nil {
			cancelKill()
		}
		return err
	})
	group.Go(func() error {
		var err error
		if stderr, err = c.drain(stderrR, c.stderrEcho); err != nil {
			cancelKill()
		}
		return err
	})
	readErr := group.Wait()
	closeFiles(stdoutR, stderrR)

	waitErr := <-exited
	stopKill()
	finished := time.Now()

	if readErr != nil {
		c.log.Debug("Reading process output failed", "path", path, "err", readErr)
		return nil, &SpawnError{Op: OpRead, Path: path, Err: readErr}
	}

	status, ok := exitStatusFromWait(waitErr)
	if !ok {
		return nil, &SpawnError{Op: OpWait, Path: path, Err: waitErr}
	}

	result := &Result{
		Status:   status,
		Stdout:   stdout,
		Stderr:   stderr,
		Started:  started,
		Finished: finished,
	}
	if killed.Load() {
		result.Killed = true
		result.KillCause = ctx.Err()
	}

	c.log.Debug("Process exited", "path", path, "status", status, "duration", result.Duration(),
		"stdout_fragments", len(stdout), "stderr_fragments", len(stderr), "killed", result.Killed)
	return result, nil
}

// drain reads r until end-of-file. Every fragment is echoed and timestamped the moment
// its read completes. Echo failures are logged and stop the echo, but never the
// capture.
func (c *Capturer) drain(r io.Reader, echo io.Writer) ([]types.LogLine, error) {
	reader := bufio.NewReaderSize(r, c.bufSize)

	var fragments []types.LogLine
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			now := time.Now()
			if echo != nil {
				if _, werr := echo.Write(chunk); werr != nil {
					c.log.Warn("Disabling output echo", "err", werr)
					echo = nil
				}
			}
			fragments = append(fragments, types.LogLine{Timestamp: now, Text: string(chunk)})
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			return fragments, nil
		default:
			return fragments, err
		}
	}
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
