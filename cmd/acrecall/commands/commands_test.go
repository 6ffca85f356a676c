package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"index", "add", "search", "generate", "analyze", "wait", "trace", "stats", "serve", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ACRECALL_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "acrecall "), out.String())
}

func TestReadInput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("TimeoutError: locator('#pay')"), 0o600))

	got, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, "TimeoutError: locator('#pay')", got)

	_, err = readInput(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"records": 3}))
	assert.JSONEq(t, `{"records": 3}`, buf.String())
}

func TestEnvIntOr(t *testing.T) {
	t.Setenv("ACRECALL_PORT", "9090")
	assert.Equal(t, 9090, envIntOr("ACRECALL_PORT", 8080))
	t.Setenv("ACRECALL_PORT", "nope")
	assert.Equal(t, 8080, envIntOr("ACRECALL_PORT", 8080))
}
