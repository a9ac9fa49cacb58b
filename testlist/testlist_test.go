package testlist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

func TestParse(t *testing.T) {
	manifest := `
scripts:
  - tests/smoke.sh
  - path: tests/upgrade.sh
    name: upgrade
    timeout: 5m
  - path: ./local.sh
`
	scripts, err := Parse([]byte(manifest))
	require.NoError(t, err)

	timeout := 5 * time.Minute
	assert.Equal(t, []types.Script{
		{Path: "tests/smoke.sh"},
		{Path: "tests/upgrade.sh", Name: "upgrade", Timeout: &timeout},
		{Path: "./local.sh"},
	}, scripts)
}

func TestParseEmpty(t *testing.T) {
	scripts, err := Parse([]byte("scripts: []\n"))
	require.NoError(t, err)
	assert.Empty(t, scripts)

	scripts, err = Parse([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, scripts)
}

func TestParseInvalid(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		errMsg   string
	}{
		{"missing path", "scripts:\n  - name: nameless\n", "script 1: path is required"},
		{"negative timeout", "scripts:\n  - path: a.sh\n    timeout: -1s\n", "timeout cannot be negative"},
		{"bad duration", "scripts:\n  - path: a.sh\n    timeout: soon\n", "parsing manifest"},
		{"not yaml", "scripts: [", "parsing manifest"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.manifest))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scripts:\n  - a.sh\n  - b.sh\n"), 0o644))

	scripts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "b.sh", scripts[1].Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading scripts file")
}
