package fragment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/pie/pkg/domain"
)

// ReadEdgeList parses a whitespace separated edge list: "src dst [weight]" per line.
// Blank lines and lines starting with '#' or '%' are skipped; a line holding a
// single id declares an isolated vertex. Missing weights default to 1.
func ReadEdgeList(r io.Reader) ([]domain.EdgeTriple, []domain.VertexID, error) {
	var (
		edges    []domain.EdgeTriple
		vertices []domain.VertexID
	)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "%") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) > 3 {
			return nil, nil, fmt.Errorf("line %d: expected at most 3 fields, got %d", line, len(fields))
		}

		ids := make([]domain.VertexID, 0, 2)
		for _, field := range fields[:min(2, len(fields))] {
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: invalid vertex id %q: %w", line, field, err)
			}
			ids = append(ids, domain.VertexID(id))
		}
		if len(ids) == 1 {
			vertices = append(vertices, ids[0])
			continue
		}

		weight := 1.0
		if len(fields) == 3 {
			w, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: invalid weight %q: %w", line, fields[2], err)
			}
			weight = w
		}
		edges = append(edges, domain.EdgeTriple{Src: ids[0], Dst: ids[1], Weight: weight})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read edge list: %w", err)
	}
	return edges, vertices, nil
}

// LoadFile reads an edge list from path and partitions it.
func LoadFile(path string, fnum int, partitioner string, opts ...Option) ([]*Fragment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}
	defer f.Close()

	edges, vertices, err := ReadEdgeList(f)
	if err != nil {
		return nil, err
	}
	all := append([]domain.VertexID{}, vertices...)
	for _, e := range edges {
		all = append(all, e.Src, e.Dst)
	}
	p, err := PartitionerByName(partitioner, all)
	if err != nil {
		return nil, err
	}
	return Build(edges, vertices, fnum, p, opts...)
}
