package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		for _, blob := range []string{"", "   \n"} {
			params, err := ParseArgs(QueryArgs(blob))
			require.NoError(t, err)
			assert.Empty(t, params)
		}
	})

	t.Run("Object Keeps Numbers Exact", func(t *testing.T) {
		params, err := ParseArgs(QueryArgs(`{"source": 9007199254740993, "name": "x"}`))
		require.NoError(t, err)
		assert.Equal(t, json.Number("9007199254740993"), params["source"])
		assert.Equal(t, "x", params["name"])
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, blob := range []string{`[]`, `"s"`, `42`, `null`, `{"a":1`, `{"a":1} x`} {
			_, err := ParseArgs(QueryArgs(blob))
			assert.ErrorIs(t, err, ErrMalformedArgs, blob)
		}
	})
}

func TestArgsFrom(t *testing.T) {
	args, err := ArgsFrom(nil)
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = ArgsFrom(map[string]any{"source": 1})
	require.NoError(t, err)
	params, err := ParseArgs(args)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), params["source"])
}
