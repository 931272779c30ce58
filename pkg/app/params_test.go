package app_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryParams struct {
	Source   *int64  `mapstructure:"source"`
	Damping  float64 `mapstructure:"damping"`
	Directed bool    `mapstructure:"directed"`
}

func TestDecodeParams(t *testing.T) {
	t.Run("Typed Fields From JSON Numbers", func(t *testing.T) {
		params, err := domain.ParseArgs(domain.QueryArgs(`{"source": 6, "damping": 0.85, "directed": true}`))
		require.NoError(t, err)

		var p queryParams
		require.NoError(t, app.DecodeParams(params, &p))
		require.NotNil(t, p.Source)
		assert.Equal(t, int64(6), *p.Source)
		assert.InDelta(t, 0.85, p.Damping, 1e-9)
		assert.True(t, p.Directed)
	})

	t.Run("Weak Conversion", func(t *testing.T) {
		var p queryParams
		require.NoError(t, app.DecodeParams(domain.Params{"source": "12", "directed": "true"}, &p))
		assert.Equal(t, int64(12), *p.Source)
		assert.True(t, p.Directed)
	})

	t.Run("Missing Fields Stay Zero", func(t *testing.T) {
		var p queryParams
		require.NoError(t, app.DecodeParams(domain.Params{}, &p))
		assert.Nil(t, p.Source)
	})

	t.Run("Unknown Keys Are Rejected", func(t *testing.T) {
		var p queryParams
		err := app.DecodeParams(domain.Params{"sauce": json.Number("1")}, &p)
		assert.ErrorIs(t, err, domain.ErrMalformedArgs)
		assert.Equal(t, domain.KindArgument, domain.KindOf(err))
	})
}
