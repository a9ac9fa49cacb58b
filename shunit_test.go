//go:build unix

package shunit

import (
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-shunit/logging"
	"github.com/ethereum-optimism/infra/op-shunit/types"
)

type testSuite struct {
	Errors     int    `xml:"errors,attr"`
	Failures   int    `xml:"failures,attr"`
	Tests      int    `xml:"tests,attr"`
	Name       string `xml:"name,attr"`
	ID         string `xml:"id,attr"`
	Properties []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"properties>property"`
	TestCases []struct {
		Classname string `xml:"classname,attr"`
		Name      string `xml:"name,attr"`
		Error     *struct {
			Message string `xml:"message,attr"`
			Type    string `xml:"type,attr"`
			Body    string `xml:",chardata"`
		} `xml:"error"`
	} `xml:"testcase"`
	SystemOut string `xml:"system-out"`
	SystemErr string `xml:"system-err"`
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body), 0755))
}

func testConfig(dir string, stdout, stderr *bytes.Buffer, scripts ...string) *Config {
	cfg := &Config{
		WorkDir:   dir,
		SuiteName: "suite",
		Stdout:    stdout,
		Stderr:    stderr,
		Log:       log.NewLogger(log.DiscardHandler()),
	}
	for _, s := range scripts {
		cfg.Scripts = append(cfg.Scripts, types.Script{Path: s})
	}
	return cfg
}

func parseReport(t *testing.T, data []byte) testSuite {
	t.Helper()
	var suite testSuite
	require.NoError(t, xml.Unmarshal(data, &suite))
	return suite
}

func runShunit(t *testing.T, cfg *Config) {
	t.Helper()
	s, err := New(cfg, "test")
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)
}

func TestRunWritesReport(t *testing.T) {
	t.Setenv("SHUNIT_REPORT_VAR", "visible")
	dir := t.TempDir()
	writeScript(t, dir, "pass.sh", "echo passing\n")
	writeScript(t, dir, "fail.sh", "echo out; sleep 0.2; echo err >&2; exit 7\n")

	var stdout, stderr bytes.Buffer
	cfg := testConfig(dir, &stdout, &stderr, "pass.sh", "missing.sh", "fail.sh")
	runShunit(t, cfg)

	suite := parseReport(t, stdout.Bytes())
	require.Equal(t, 3, suite.Tests)
	require.Equal(t, 1, suite.Errors)
	require.Equal(t, 1, suite.Failures)
	require.Equal(t, "suite", suite.Name)
	require.NotEmpty(t, suite.ID)

	require.Len(t, suite.TestCases, 3)
	require.Equal(t, "pass.sh", suite.TestCases[0].Name)
	require.Nil(t, suite.TestCases[0].Error)
	require.Equal(t, string(types.FailureKindIO), suite.TestCases[1].Error.Type)
	require.Equal(t, string(types.FailureKindAssertion), suite.TestCases[2].Error.Type)
	require.Contains(t, suite.TestCases[2].Error.Message, "7")
	require.Equal(t, "out\nerr\n", suite.TestCases[2].Error.Body)

	require.Equal(t, "passing\nout\n", suite.SystemOut)
	require.Equal(t, "err\n", suite.SystemErr)

	var found bool
	for _, p := range suite.Properties {
		if p.Name == "SHUNIT_REPORT_VAR" {
			found = true
			require.Equal(t, "visible", p.Value)
		}
	}
	require.True(t, found, "environment missing from report properties")

	// Passthrough is off, so only the report went to stdout
	require.True(t, strings.HasPrefix(stdout.String(), xml.Header))
	require.Empty(t, stderr.String())
}

func TestRunEmpty(t *testing.T) {
	var stdout, stderr bytes.Buffer
	runShunit(t, testConfig(t.TempDir(), &stdout, &stderr))

	suite := parseReport(t, stdout.Bytes())
	require.Zero(t, suite.Tests)
	require.Empty(t, suite.TestCases)
}

func TestRunOutputFileAndPassthrough(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hello.sh", "echo hello; echo oops >&2\n")

	var stdout, stderr bytes.Buffer
	cfg := testConfig(dir, &stdout, &stderr, "hello.sh")
	cfg.Output = filepath.Join(dir, "reports", "junit.xml")
	cfg.Passthrough = true
	runShunit(t, cfg)

	require.Equal(t, "hello\n", stdout.String())
	require.Equal(t, "oops\n", stderr.String())

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	suite := parseReport(t, data)
	require.Equal(t, 1, suite.Tests)
	require.Equal(t, "hello\n", suite.SystemOut)
}

func TestRunEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "env.sh", "test \"$FROM_ENV_FILE\" = yes\n")
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("FROM_ENV_FILE=yes\n"), 0644))

	var stdout, stderr bytes.Buffer
	cfg := testConfig(dir, &stdout, &stderr, "env.sh")
	cfg.EnvFiles = []string{envFile}
	runShunit(t, cfg)

	suite := parseReport(t, stdout.Bytes())
	require.Nil(t, suite.TestCases[0].Error)
}

func TestRunLogDirSummaryAndMetrics(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "pass.sh", "echo ok\n")
	writeScript(t, dir, "fail.sh", "echo bad; exit 1\n")

	var stdout, stderr bytes.Buffer
	cfg := testConfig(dir, &stdout, &stderr, "pass.sh", "fail.sh")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.MetricsFile = filepath.Join(dir, "metrics.prom")
	cfg.Summary = true
	runShunit(t, cfg)

	suite := parseReport(t, stdout.Bytes())
	runDir := filepath.Join(cfg.LogDir, logging.RunDirectoryPrefix+suite.ID)
	require.FileExists(t, filepath.Join(runDir, logging.AllLogsFileName))
	require.FileExists(t, filepath.Join(runDir, logging.SummaryFileName))
	require.FileExists(t, filepath.Join(runDir, logging.PassedDirName, "pass.sh.log"))
	require.FileExists(t, filepath.Join(runDir, logging.FailedDirName, "fail.sh.log"))

	require.Contains(t, stderr.String(), "TOTAL")
	require.Contains(t, stderr.String(), "2 scripts, 1 passed, 1 failed, 0 errors")

	metricsData, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(metricsData), `shunit_run_scripts_total{run_id="`+suite.ID+`"} 2`)
}

func TestRunMetricsService(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := testConfig(t.TempDir(), &stdout, &stderr)
	cfg.MetricsAddr = "127.0.0.1:0"
	runShunit(t, cfg)
}

func TestRunBadMetricsAddr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := testConfig(t.TempDir(), &stdout, &stderr)
	cfg.MetricsAddr = "not-an-address"

	s, err := New(cfg, "test")
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.True(t, IsRuntimeError(err))
}

func TestRunUnwritableReport(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	var stdout, stderr bytes.Buffer
	cfg := testConfig(dir, &stdout, &stderr)
	cfg.Output = filepath.Join(blocker, "report.xml")

	s, err := New(cfg, "test")
	require.NoError(t, err)
	result, err := s.Run(context.Background())
	require.True(t, IsRuntimeError(err))
	require.NotNil(t, result)
}

func TestRunMissingEnvFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := testConfig(t.TempDir(), &stdout, &stderr)
	cfg.EnvFiles = []string{filepath.Join(t.TempDir(), "nope.env")}

	s, err := New(cfg, "test")
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.True(t, IsRuntimeError(err))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, "test")
	require.Error(t, err)
}
