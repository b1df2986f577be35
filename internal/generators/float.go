package generators

import (
	"fmt"
	"math"
	"math/rand"
)

type FloatField struct {
	name string
	Min  float64
	Max  float64
}

func NewFloatField(name string, opts Options, warn WarnFunc) (*FloatField, error) {
	f := &FloatField{name: name, Min: float64(DefaultIntegerMin), Max: float64(DefaultIntegerMax)}

	for _, key := range sortedKeys(opts) {
		switch key {
		case "min", "max":
			v, ok := toFloat64(opts[key])
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &FieldError{Field: name, Kind: KindFloat, Option: key, Err: ErrOptionType,
					Detail: "expected a finite number"}
			}
			if key == "min" {
				f.Min = v
			} else {
				f.Max = v
			}
		default:
			unrecognized(warn, name, KindFloat, key)
		}
	}

	if f.Min > f.Max {
		return nil, &FieldError{Field: name, Kind: KindFloat, Err: ErrInvalidRange,
			Detail: fmt.Sprintf("min (%g) is greater than max (%g)", f.Min, f.Max)}
	}
	return f, nil
}

func (f *FloatField) Name() string { return f.name }

func (f *FloatField) Kind() Kind { return KindFloat }

func (f *FloatField) Generate(rng *rand.Rand) interface{} {
	return uniformFloat64(rng, f.Min, f.Max)
}

func rangeDetail(min, max int64) string {
	return fmt.Sprintf("min (%d) is greater than max (%d)", min, max)
}
