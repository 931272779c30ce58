package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Markdown(t *testing.T) {
	r := Report{
		App:      "lpa",
		Key:      "labels",
		Duration: 1500 * time.Microsecond,
		Views: []*domain.ResultView{
			{FragmentID: 0, Supersteps: 3, Values: map[domain.VertexID]any{4: 1, 1: 1}},
			{FragmentID: 1, Supersteps: 3, Values: map[domain.VertexID]any{2: 1, 3: 1}},
		},
		Limit: 3,
	}
	md := r.Markdown()

	assert.Contains(t, md, "# lpa")
	assert.Contains(t, md, "Published as `labels` in 2ms.")
	assert.Contains(t, md, "| 0 | 2 | 3 |")
	assert.Contains(t, md, "| 1 | 2 | 3 |")
	assert.Less(t, strings.Index(md, "| 1 | 1 |"), strings.Index(md, "| 3 | 1 |"))
	assert.NotContains(t, md, "| 4 | 1 |")
	assert.Contains(t, md, "_1 more vertices not shown._")
}

func TestRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("# title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "body")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.Contains(t, buf.String(), "|_|")
}
