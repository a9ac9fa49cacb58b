//go:build unix

package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// writeScript creates an executable shell script in a temporary directory and returns
// its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestCapturer(opts ...Option) *Capturer {
	return New(append([]Option{WithLogger(log.NewLogger(log.DiscardHandler()))}, opts...)...)
}

func texts(lines []types.LogLine) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Text)
	}
	return sb.String()
}

func TestCaptureSeparatesStreams(t *testing.T) {
	script := writeScript(t, `
echo "out 1"
echo "err 1" >&2
echo "out 2"
echo "err 2" >&2
`)
	var stdoutEcho, stderrEcho bytes.Buffer
	c := newTestCapturer(WithEcho(&stdoutEcho, &stderrEcho))

	res, err := c.Capture(context.Background(), script)
	require.NoError(t, err)

	assert.True(t, res.Status.Success())
	assert.False(t, res.Killed)
	assert.Equal(t, "out 1\nout 2\n", texts(res.Stdout))
	assert.Equal(t, "err 1\nerr 2\n", texts(res.Stderr))
	assert.Equal(t, "out 1\nout 2\n", stdoutEcho.String())
	assert.Equal(t, "err 1\nerr 2\n", stderrEcho.String())
	assert.False(t, res.Finished.Before(res.Started))
}

func TestCaptureFragmentsAreOrderedWithinStream(t *testing.T) {
	script := writeScript(t, `
i=0
while [ $i -lt 200 ]; do
  echo "line $i"
  echo "err $i" >&2
  i=$((i+1))
done
`)
	res, err := newTestCapturer().Capture(context.Background(), script)
	require.NoError(t, err)

	for _, stream := range [][]types.LogLine{res.Stdout, res.Stderr} {
		for i := 1; i < len(stream); i++ {
			require.False(t, stream[i].Timestamp.Before(stream[i-1].Timestamp))
		}
	}
	require.True(t, strings.HasPrefix(texts(res.Stdout), "line 0\nline 1\n"))
	require.True(t, strings.HasSuffix(texts(res.Stderr), "err 199\n"))
}

func TestCaptureExitCode(t *testing.T) {
	script := writeScript(t, `echo failing; exit 7`)

	res, err := newTestCapturer().Capture(context.Background(), script)
	require.NoError(t, err)

	require.False(t, res.Status.Success())
	require.Equal(t, 7, res.Status.Code)
	require.False(t, res.Status.Signaled)
	require.Equal(t, "exit code 7", res.Status.String())
	require.Equal(t, "failing\n", texts(res.Stdout))
}

func TestCaptureTerminatedBySignal(t *testing.T) {
	script := writeScript(t, `kill -TERM $$`)

	res, err := newTestCapturer().Capture(context.Background(), script)
	require.NoError(t, err)

	require.False(t, res.Status.Success())
	require.True(t, res.Status.Signaled)
	require.Equal(t, syscall.SIGTERM, res.Status.Signal)
	require.Equal(t, -1, res.Status.Code)
}

func TestCaptureUnterminatedFinalLine(t *testing.T) {
	script := writeScript(t, `printf 'first\nno newline'`)

	res, err := newTestCapturer().Capture(context.Background(), script)
	require.NoError(t, err)

	require.Len(t, res.Stdout, 2)
	require.Equal(t, "first\n", res.Stdout[0].Text)
	require.Equal(t, "no newline", res.Stdout[1].Text)
}

func TestCaptureSplitsLinesLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 100)
	script := writeScript(t, `echo "`+long+`"`)

	res, err := newTestCapturer(WithBufferSize(16)).Capture(context.Background(), script)
	require.NoError(t, err)

	require.Greater(t, len(res.Stdout), 1)
	require.Equal(t, long+"\n", texts(res.Stdout))
	for _, fragment := range res.Stdout[:len(res.Stdout)-1] {
		require.False(t, strings.HasSuffix(fragment.Text, "\n"))
	}
}

func TestCaptureLargeOutputOnBothStreams(t *testing.T) {
	// Well above the usual 64KiB pipe buffer on each stream. If either stream were
	// left undrained while the other is read, the child would block forever.
	script := writeScript(t, `
i=0
while [ $i -lt 4000 ]; do
  echo "stderr line $i with some padding to fill the pipe buffer quickly" >&2
  i=$((i+1))
done
echo done
`)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := newTestCapturer().Capture(ctx, script)
	require.NoError(t, err)

	require.False(t, res.Killed, "capture must not stall on a full pipe")
	require.True(t, res.Status.Success())
	require.Len(t, res.Stderr, 4000)
	require.Equal(t, "done\n", texts(res.Stdout))
}

func TestCaptureStdinIsNotConnected(t *testing.T) {
	script := writeScript(t, `cat; echo "after cat"`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := newTestCapturer().Capture(ctx, script)
	require.NoError(t, err)
	require.False(t, res.Killed)
	require.Equal(t, "after cat\n", texts(res.Stdout))
}

func TestCaptureTimeoutKillsProcessGroup(t *testing.T) {
	// The sleep runs as a grandchild that inherits the pipes. Only killing the whole
	// process group lets the readers reach end-of-file.
	script := writeScript(t, `
echo started
sleep 30
echo never
`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := newTestCapturer().Capture(ctx, script)
	require.NoError(t, err)

	require.Less(t, time.Since(start), 20*time.Second)
	require.True(t, res.Killed)
	require.True(t, res.TimedOut())
	require.True(t, res.Status.Signaled)
	require.Equal(t, syscall.SIGKILL, res.Status.Signal)
	require.Equal(t, "started\n", texts(res.Stdout))
}

func TestCaptureCancelIsNotTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := newTestCapturer().Capture(ctx, script)
	require.NoError(t, err)
	require.True(t, res.Killed)
	require.False(t, res.TimedOut())
	require.ErrorIs(t, res.KillCause, context.Canceled)
}

func TestCaptureMissingExecutable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.sh")

	res, err := newTestCapturer().Capture(context.Background(), missing)
	require.Nil(t, res)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	require.Equal(t, OpStart, spawnErr.Op)
	require.Equal(t, missing, spawnErr.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCaptureNotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))

	_, err := newTestCapturer().Capture(context.Background(), path)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestCaptureUsesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, `pwd; echo "$SHUNIT_TEST_VAR"`)

	c := newTestCapturer(WithDir(dir), WithEnv([]string{"SHUNIT_TEST_VAR=hello"}))
	res, err := c.Capture(context.Background(), script)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(texts(res.Stdout)), "\n")
	require.Len(t, lines, 2)
	gotDir, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	require.Equal(t, resolved, gotDir)
	require.Equal(t, "hello", lines[1])
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken echo")
}

func TestCaptureEchoFailureDoesNotStopCapture(t *testing.T) {
	script := writeScript(t, `echo one; echo two`)

	res, err := newTestCapturer(WithEcho(failingWriter{}, nil)).Capture(context.Background(), script)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", texts(res.Stdout))
}
