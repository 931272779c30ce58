package pie_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/apps/sssp"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/fragment"
)

// ExampleNewGroup runs single-source shortest paths over two partitions that
// live in the same process.
func ExampleNewGroup() {
	// 1. Partition a small weighted graph
	edges := []domain.EdgeTriple{
		{Src: 1, Dst: 2, Weight: 4},
		{Src: 1, Dst: 3, Weight: 1},
		{Src: 3, Dst: 2, Weight: 1},
	}
	frags, err := fragment.Build(edges, nil, 2, fragment.HashPartitioner{})
	if err != nil {
		log.Fatal(err)
	}

	// 2. One worker per fragment, joined through an in-process transport
	ctx := context.Background()
	rt := pie.New()
	group, err := pie.NewGroup(ctx, rt, sssp.New(), fragment.Ports(frags), memory.NewHub[float64](), domain.ParallelSpec{}, "example")
	if err != nil {
		log.Fatal(err)
	}
	defer group.Close(ctx)

	// 3. Query and read the published views
	args, _ := domain.ArgsFrom(map[string]any{"source": 1})
	views, err := group.Query(ctx, args, "distances")
	if err != nil {
		log.Fatal(err)
	}
	dist := make(map[domain.VertexID]any)
	for _, v := range views {
		for id, d := range v.Values {
			dist[id] = d
		}
	}
	fmt.Println(dist[1], dist[2], dist[3])
	// Output: 0 2 1
}
