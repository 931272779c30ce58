package app

import (
	"fmt"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeParams decodes query params into out (a pointer to a struct tagged with
// `mapstructure`). Numeric strings and json.Number values convert to numeric
// fields. Failures are argument errors, so the worker stays Ready.
func DecodeParams(params domain.Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return domain.ArgumentError("decode params", err)
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return domain.ArgumentError("decode params", fmt.Errorf("%w: %v", domain.ErrMalformedArgs, err))
	}
	return nil
}
