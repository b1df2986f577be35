package generators

import (
	"math"
	"math/rand"
)

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	default:
		if i, ok := toInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// uniformInt64 draws from the closed interval [min, max]. The span is
// computed in unsigned arithmetic so the full int64 range is reachable.
func uniformInt64(rng *rand.Rand, min, max int64) int64 {
	span := uint64(max) - uint64(min)
	if span == math.MaxUint64 {
		return int64(rng.Uint64())
	}
	n := span + 1
	if n <= math.MaxInt64 {
		return min + rng.Int63n(int64(n))
	}
	for {
		v := rng.Uint64()
		if v < n {
			return int64(uint64(min) + v)
		}
	}
}

// uniformFloat64 draws from [min, max].
func uniformFloat64(rng *rand.Rand, min, max float64) float64 {
	u := rng.Float64()
	v := min*(1-u) + max*u
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
