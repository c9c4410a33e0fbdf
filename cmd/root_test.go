package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "bootctl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotNil(t, rootCmd.RunE)
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "bootctl version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())

	assert.Equal(t, "bootctl version 1.0.0\n", buf.String())
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "validate", "report"} {
		assert.True(t, found[name], "expected subcommand %q", name)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	c := newVersionCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.Run(c, nil)
	assert.Equal(t, "bootctl version 9.9.9\n", buf.String())
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "phases.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
phases:
  - name: core
    severity: critical
    units:
      - id: dbus
`), 0o644))

	c := newValidateCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--file", file, "--dir", filepath.Join(dir, "none.d")})
	require.NoError(t, c.Execute())

	assert.Contains(t, buf.String(), "Boot plan: 1 phase(s)")
	assert.Contains(t, buf.String(), "service:dbus")
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "phases.yaml")
	require.NoError(t, os.WriteFile(file, []byte("phases:\n  - name: core\n    severity: sometimes\n"), 0o644))

	c := newValidateCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--file", file, "--dir", ""})
	assert.Error(t, c.Execute())
}

func TestReportCommand(t *testing.T) {
	t.Setenv("BOOTCTL_HISTORY_DB", filepath.Join(t.TempDir(), "history.db"))

	c := newReportCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"-n", "5"})
	require.NoError(t, c.Execute())

	assert.Contains(t, buf.String(), "No boot runs recorded yet.")
}
