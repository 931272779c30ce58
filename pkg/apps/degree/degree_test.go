package degree_test

import (
	"context"
	"testing"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/apps/degree"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegree(t *testing.T) {
	ctx := context.Background()
	edges := []domain.EdgeTriple{{Src: 1, Dst: 2}, {Src: 1, Dst: 3}, {Src: 1, Dst: 4}, {Src: 2, Dst: 3}}
	frags, err := fragment.Build(edges, []domain.VertexID{5}, 2, nil)
	require.NoError(t, err)

	group, err := pie.NewGroup(ctx, pie.New(), degree.New(), fragment.Ports(frags), memory.NewHub[int](), domain.ParallelSpec{Threads: 4}, "")
	require.NoError(t, err)
	defer group.Close(ctx)

	views, err := group.Query(ctx, nil, "degree")
	require.NoError(t, err)

	got := make(map[domain.VertexID]any)
	for _, v := range views {
		assert.Zero(t, v.Supersteps)
		for id, d := range v.Values {
			got[id] = d
		}
	}
	assert.Equal(t, map[domain.VertexID]any{1: 3, 2: 2, 3: 2, 4: 1, 5: 0}, got)
}
