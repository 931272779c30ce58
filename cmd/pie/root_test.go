package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/pie/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd.Flags())
	return cmd
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: lpa\npartitions: 2\nthreads: 4\n"), 0o644))

	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--app", "sssp",
		"-n", "5",
		"--params", `{"source": 3}`,
		"--transport", "redis",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "sssp", cfg.App)
	assert.Equal(t, 5, cfg.Partitions)
	assert.Equal(t, 4, cfg.Threads, "file value kept")
	assert.Equal(t, config.TransportRedis, cfg.Transport)
	assert.Equal(t, 3.0, cfg.Params["source"])
}

func TestLoadConfig_BadParams(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}))
	_, err := loadConfig(cmd)
	assert.Error(t, err, "explicit missing file")

	cmd = newTestCommand()
	t.Chdir(t.TempDir())
	require.NoError(t, cmd.ParseFlags([]string{"--params", "[1]"}))
	_, err = loadConfig(cmd)
	assert.ErrorContains(t, err, "--params")
}

func TestAppsAndVersionCommands(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"apps"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "lpa")
	assert.Contains(t, out.String(), "sssp")
	assert.Contains(t, out.String(), "degree")

	out.Reset()
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "pie version")
}
