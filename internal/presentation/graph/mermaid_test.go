package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/pie/internal/presentation/graph"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMermaid(t *testing.T) {
	edges := []domain.EdgeTriple{{Src: 1, Dst: 2, Weight: 1}, {Src: 2, Dst: 3, Weight: 1}, {Src: 3, Dst: 4, Weight: 2.5}}
	frags, err := fragment.Build(edges, nil, 2, fragment.MapPartitioner{1: 0, 2: 0, 3: 1, 4: 1})
	require.NoError(t, err)

	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		absent   []string
	}{
		{
			name: "Fragments As Subgraphs",
			contains: []string{
				"subgraph F0[\"fragment 0\"]",
				"subgraph F1[\"fragment 1\"]",
				"v1(\"1\")",
				"v4(\"4\")",
			},
			absent: []string{"classDef"},
		},
		{
			name: "Local And Crossing Edges",
			contains: []string{
				"v1 --> v2",
				"v2 -.-> v3",
				"v3 -- 2.5 --> v4",
			},
		},
		{
			name:    "Overlay Values",
			overlay: &graph.Overlay{Values: map[domain.VertexID]any{1: 0.0, 4: "far"}},
			contains: []string{
				"v1(\"1 <br/> 0\")",
				"v4(\"4 <br/> far\")",
				"class v1 valued;",
				"class v4 valued;",
			},
			absent: []string{"class v2 valued;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(fragment.Ports(frags), tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.absent {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestGenerateMermaid_UndirectedEdgesOnce(t *testing.T) {
	frags, err := fragment.Build([]domain.EdgeTriple{{Src: 1, Dst: 2}}, nil, 1, fragment.HashPartitioner{})
	require.NoError(t, err)

	out := graph.GenerateMermaid(fragment.Ports(frags), nil)
	assert.Equal(t, 1, strings.Count(out, "-->"))
}
