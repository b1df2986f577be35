package generators

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mmrzaf/mockstream/internal/timeutil"
)

const (
	DefaultTimestampMin = "2020-01-01"
	DefaultTimestampMax = "2022-12-31"
)

// TimestampField yields epoch milliseconds. Bounds are resolved once, at
// construction, in the location given by Location (local time by default).
type TimestampField struct {
	name    string
	MinDate string
	MaxDate string
	MinMS   int64
	MaxMS   int64
}

// Location is used to interpret bound dates that carry no UTC offset.
var Location = time.Local

func NewTimestampField(name string, opts Options, warn WarnFunc) (*TimestampField, error) {
	f := &TimestampField{name: name, MinDate: DefaultTimestampMin, MaxDate: DefaultTimestampMax}

	for _, key := range sortedKeys(opts) {
		switch key {
		case "min", "max":
			s, err := dateString(opts[key])
			if err != nil {
				return nil, &FieldError{Field: name, Kind: KindTimestamp, Option: key, Err: ErrOptionType,
					Detail: err.Error()}
			}
			if key == "min" {
				f.MinDate = s
			} else {
				f.MaxDate = s
			}
		default:
			unrecognized(warn, name, KindTimestamp, key)
		}
	}

	minT, err := timeutil.ParseDate(f.MinDate, Location)
	if err != nil {
		return nil, &FieldError{Field: name, Kind: KindTimestamp, Option: "min", Err: ErrOptionType, Detail: err.Error()}
	}
	maxT, err := timeutil.ParseDate(f.MaxDate, Location)
	if err != nil {
		return nil, &FieldError{Field: name, Kind: KindTimestamp, Option: "max", Err: ErrOptionType, Detail: err.Error()}
	}

	f.MinMS = timeutil.EpochMillis(minT)
	f.MaxMS = timeutil.EpochMillis(maxT)
	if f.MinMS > f.MaxMS {
		return nil, &FieldError{Field: name, Kind: KindTimestamp, Err: ErrInvalidRange,
			Detail: fmt.Sprintf("min (%s) is after max (%s)", f.MinDate, f.MaxDate)}
	}
	return f, nil
}

func (f *TimestampField) Name() string { return f.name }

func (f *TimestampField) Kind() Kind { return KindTimestamp }

func (f *TimestampField) Generate(rng *rand.Rand) interface{} {
	return uniformInt64(rng, f.MinMS, f.MaxMS)
}

// dateString accepts the shapes a YAML decoder may hand back for a date.
func dateString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case time.Time:
		// Decoders hand bare dates back as UTC midnight; keep them local.
		if val.Location() == time.UTC && val.Equal(val.Truncate(24*time.Hour)) {
			return val.Format("2006-01-02"), nil
		}
		return val.Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("expected an ISO-8601 date string, got %T", v)
	}
}
