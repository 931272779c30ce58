package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "pie.yaml", `
app: sssp
graph: edges.txt
partitions: 4
transport: redis
redis:
  addr: redis:6379
  ttl: 10m
params:
  source: 1
result_key: distances
max_supersteps: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sssp", cfg.App)
	assert.Equal(t, 4, cfg.Partitions)
	assert.Equal(t, TransportRedis, cfg.Transport)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "pie:", cfg.Redis.Prefix, "unset fields keep defaults")
	assert.Equal(t, 1, cfg.Params["source"])
	assert.Equal(t, "hash", cfg.Partitioner)
	assert.True(t, cfg.UsesRedis())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "pie.json", `{"app": "lpa", "graph": "g.txt", "threads": 8}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lpa", cfg.App)
	assert.Equal(t, 8, cfg.Threads)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_Missing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err, "missing default file")
	assert.Equal(t, Default(), cfg)

	_, err = Load("other.yaml")
	assert.Error(t, err)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(write(t, "pie.yaml", "app: lpa\npartitons: 3\n"))
	assert.Error(t, err)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(write(t, "pie.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Partitions = 0
	cfg.Transport = "grpc"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"app is required", "graph is required", "partitions", "transport", "loud"} {
		assert.Contains(t, err.Error(), want)
	}
}
