package tools_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	tu "github.com/arcmem/arcmem/std/utils/testutils"
	"github.com/arcmem/arcmem/tools"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func execute(cmd *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestDemoList(t *testing.T) {
	tu.SetT(t)
	cfg := ""
	out, _, err := execute(tools.CmdDemo(&cfg), "list")
	require.NoError(t, err)
	require.Contains(t, out, "room-weak=")
	require.Contains(t, out, "closure-dangling=")
}

func TestDemoRun(t *testing.T) {
	tu.SetT(t)
	cfg := ""
	out, _, err := execute(tools.CmdDemo(&cfg), "run", "room-cycle", "--stats")
	require.NoError(t, err)
	require.Contains(t, out, "Leaked 2: yagom, Room 505")
	require.Contains(t, out, "Cycle 1:")
	require.Contains(t, out, "allocated=2")

	out, errOut, err := execute(tools.CmdDemo(&cfg), "run", "all")
	require.NoError(t, err)
	require.Contains(t, out, "== strong-counts ==")
	require.Contains(t, out, "== closure-weak ==")
	require.Contains(t, out, "The original instance is gone.")
	require.Contains(t, out, "== closure-list ==")
	require.Contains(t, out, "nil y2")
	// expected fatal errors are not reported as such
	require.NotContains(t, errOut, "FATAL")

	_, _, err = execute(tools.CmdDemo(&cfg), "run", "missing")
	require.Error(t, err)
}

func TestRunFileWithMemoryTrace(t *testing.T) {
	tu.SetT(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "leak.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: leak
steps:
  - new: {var: a, name: alice}
  - link: {from: a, field: me, to: a}
`), 0o644))
	cfg := writeConfig(t, "trace:\n  backend: memory\n")

	out, stderr, err := execute(tools.CmdRun(&cfg), file)
	require.Error(t, err)
	require.Contains(t, stderr, "leak:")
	require.Contains(t, out, "Leaked 1: alice")
	require.Contains(t, out, "alloc=1")
	require.Contains(t, out, "retain=")
}

func TestTraceDump(t *testing.T) {
	tu.SetT(t)
	dir := t.TempDir()
	traceDir := filepath.Join(dir, "trace")
	cfg := writeConfig(t, "trace:\n  backend: badger\n  path: "+traceDir+"\n")

	_, _, err := execute(tools.CmdDemo(&cfg), "run", "credit-card", "-q")
	require.NoError(t, err)

	out, _, err := execute(tools.CmdTrace(&cfg), "dump", "--kind", "teardown")
	require.NoError(t, err)
	require.Contains(t, out, `"jisoo"`)
	require.Contains(t, out, `"Card #1004"`)
	require.NotContains(t, out, "alloc")

	out, _, err = execute(tools.CmdTrace(&cfg), "dump", traceDir, "--kind", "alloc")
	require.NoError(t, err)
	require.Contains(t, out, "alloc")

	_, _, err = execute(tools.CmdTrace(&cfg), "dump", traceDir, "--kind", "bogus")
	require.Error(t, err)
}
