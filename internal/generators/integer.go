package generators

import (
	"math/rand"
)

const (
	DefaultIntegerMin int64 = -100000
	DefaultIntegerMax int64 = 1000000
)

type IntegerField struct {
	name string
	Min  int64
	Max  int64
}

func NewIntegerField(name string, opts Options, warn WarnFunc) (*IntegerField, error) {
	f := &IntegerField{name: name, Min: DefaultIntegerMin, Max: DefaultIntegerMax}

	for _, key := range sortedKeys(opts) {
		switch key {
		case "min", "max":
			v, ok := toInt64(opts[key])
			if !ok {
				return nil, &FieldError{Field: name, Kind: KindInteger, Option: key, Err: ErrOptionType,
					Detail: "expected an integer"}
			}
			if key == "min" {
				f.Min = v
			} else {
				f.Max = v
			}
		default:
			unrecognized(warn, name, KindInteger, key)
		}
	}

	if f.Min > f.Max {
		return nil, &FieldError{Field: name, Kind: KindInteger, Err: ErrInvalidRange,
			Detail: rangeDetail(f.Min, f.Max)}
	}
	return f, nil
}

func (f *IntegerField) Name() string { return f.name }

func (f *IntegerField) Kind() Kind { return KindInteger }

func (f *IntegerField) Generate(rng *rand.Rand) interface{} {
	return uniformInt64(rng, f.Min, f.Max)
}
