package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Overlay carries per-vertex values to print next to the vertex ids.
type Overlay struct {
	Values map[domain.VertexID]any
}

// GenerateMermaid produces a Mermaid flowchart of a partitioned graph:
// - one subgraph per fragment holding its inner vertices
// - solid arrows for edges inside a fragment
// - dotted arrows for edges crossing fragments (the ones that cost messages)
//
// Undirected edges appear once, from the lower id.
func GenerateMermaid(frags []ports.Fragment, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, f := range frags {
		sb.WriteString(fmt.Sprintf("    subgraph F%d[\"fragment %d\"]\n", f.FID(), f.FID()))
		for _, v := range f.InnerVertices() {
			label := fmt.Sprintf("%d", v)
			if overlay != nil {
				if val, ok := overlay.Values[v]; ok {
					label = fmt.Sprintf("%d <br/> %s", v, strings.ReplaceAll(fmt.Sprint(val), "\"", "'"))
				}
			}
			sb.WriteString(fmt.Sprintf("        %s(\"%s\")\n", vertexID(v), label))
		}
		sb.WriteString("    end\n")
	}

	seen := make(map[[2]domain.VertexID]bool)
	for _, f := range frags {
		for _, v := range f.InnerVertices() {
			edges := append([]domain.Edge(nil), f.Neighbors(v)...)
			sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
			for _, e := range edges {
				pair := [2]domain.VertexID{min(v, e.To), max(v, e.To)}
				if seen[pair] {
					continue
				}
				seen[pair] = true

				arrow := "-->"
				if !f.IsInner(e.To) {
					arrow = "-.->"
				}
				if e.Weight != 0 && e.Weight != 1 {
					arrow = fmt.Sprintf("-- %g -->", e.Weight)
					if !f.IsInner(e.To) {
						arrow = fmt.Sprintf("-. %g .->", e.Weight)
					}
				}
				sb.WriteString(fmt.Sprintf("    %s %s %s\n", vertexID(v), arrow, vertexID(e.To)))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef valued fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		ids := make([]domain.VertexID, 0, len(overlay.Values))
		for v := range overlay.Values {
			ids = append(ids, v)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, v := range ids {
			sb.WriteString(fmt.Sprintf("    class %s valued;\n", vertexID(v)))
		}
	}

	return sb.String()
}

func vertexID(v domain.VertexID) string {
	if v < 0 {
		return fmt.Sprintf("vm%d", -v)
	}
	return fmt.Sprintf("v%d", v)
}
