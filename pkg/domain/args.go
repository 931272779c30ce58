package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QueryArgs is the opaque parameter blob of a Query. Only the bound program
// interprets its fields.
type QueryArgs []byte

// Params is the decoded form of QueryArgs handed to program callbacks.
type Params map[string]any

// ParseArgs decodes a blob into Params. An empty blob yields empty Params; anything
// other than a JSON object is ErrMalformedArgs. Numbers are kept as json.Number.
func ParseArgs(args QueryArgs) (Params, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 {
		return Params{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var params Params
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArgs, err)
	}
	if params == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedArgs)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedArgs)
	}
	return params, nil
}

// ArgsFrom encodes params into a QueryArgs blob.
func ArgsFrom(params map[string]any) (QueryArgs, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query args: %w", err)
	}
	return data, nil
}
