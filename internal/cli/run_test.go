package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/pie/internal/config"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const path4 = `# path graph
1 2
2 3 2
3 4
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	graph := filepath.Join(t.TempDir(), "edges.txt")
	require.NoError(t, os.WriteFile(graph, []byte(path4), 0o644))

	cfg := config.Default()
	cfg.App = "sssp"
	cfg.Graph = graph
	cfg.Partitions = 3
	cfg.Params = map[string]any{"source": 1}
	cfg.ResultKey = "distances"
	cfg.LogLevel = "error"
	return cfg
}

func merged(views []*domain.ResultView) map[domain.VertexID]any {
	out := make(map[domain.VertexID]any)
	for _, v := range views {
		for id, val := range v.Values {
			out[id] = val
		}
	}
	return out
}

func TestExecute_InMemory(t *testing.T) {
	ctx := context.Background()
	env, err := NewEnv(ctx, testConfig(t))
	require.NoError(t, err)
	defer env.Close()

	report, err := Execute(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, map[domain.VertexID]any{1: 0.0, 2: 1.0, 3: 3.0, 4: 4.0}, merged(report.Views))

	stored, err := env.Store.Load(ctx, "distances")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	series, err := testutil.GatherAndCount(env.Registry, "pie_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 3, series, "one query per partition")
}

func TestExecute_OverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Transport = config.TransportRedis
	cfg.Store = config.TransportRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.App = "lpa"
	cfg.Params = nil

	ctx := context.Background()
	env, err := NewEnv(ctx, cfg)
	require.NoError(t, err)
	defer env.Close()

	report, err := Execute(ctx, env)
	require.NoError(t, err)
	for _, label := range merged(report.Views) {
		assert.Equal(t, int64(1), label)
	}
	assert.True(t, mr.Exists("pie:result:distances"))
}

func TestExecute_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.App = "pagerank"
	env, err := NewEnv(ctx, cfg)
	require.NoError(t, err)
	defer env.Close()
	_, err = Execute(ctx, env)
	assert.ErrorIs(t, err, domain.ErrProgramNotFound)

	cfg = testConfig(t)
	cfg.Params = nil
	env2, err := NewEnv(ctx, cfg)
	require.NoError(t, err)
	defer env2.Close()
	_, err = Execute(ctx, env2)
	assert.Equal(t, domain.KindArgument, domain.KindOf(err), "sssp without a source")

	cfg = testConfig(t)
	cfg.Graph = ""
	env3, err := NewEnv(ctx, cfg)
	require.NoError(t, err)
	defer env3.Close()
	_, err = Execute(ctx, env3)
	assert.ErrorContains(t, err, "graph is required")
}

func TestNewEnv_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport = config.TransportRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := NewEnv(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	ctx := context.Background()
	env, err := NewEnv(ctx, testConfig(t))
	require.NoError(t, err)
	defer env.Close()
	report, err := Execute(ctx, env)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, report, RunOptions{JSON: true}))
	var views []domain.ResultView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &views))
	assert.Len(t, views, 3)

	buf.Reset()
	require.NoError(t, Print(&buf, report, RunOptions{}))
	assert.Contains(t, buf.String(), "sssp")
}
