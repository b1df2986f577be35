package generators

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

const (
	DefaultTextMinLen = 1
	DefaultTextMaxLen = 10
	DefaultCharClass  = "letters"

	// MaxTextLen caps text length bounds so a generated value always fits
	// in memory.
	MaxTextLen = 1 << 20
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	punctChars  = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	letterChars = lowerChars + upperChars
)

var charClasses = map[string]string{
	"letters":      letterChars,
	"lower":        lowerChars,
	"upper":        upperChars,
	"ascii":        letterChars + punctChars + digitChars + " ",
	"numbers":      digitChars,
	"alphanumeric": letterChars + digitChars,
}

// CharClasses returns the names of the supported character classes, sorted.
func CharClasses() []string {
	names := make([]string, 0, len(charClasses))
	for name := range charClasses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CharClass returns the alphabet for a named character class.
func CharClass(name string) (string, bool) {
	chars, ok := charClasses[name]
	return chars, ok
}

type TextField struct {
	name      string
	MinLen    int
	MaxLen    int
	ClassName string
	Enum      []string

	alphabet string
}

func NewTextField(name string, opts Options, warn WarnFunc) (*TextField, error) {
	f := &TextField{
		name:      name,
		MinLen:    DefaultTextMinLen,
		MaxLen:    DefaultTextMaxLen,
		ClassName: DefaultCharClass,
		alphabet:  charClasses[DefaultCharClass],
	}

	for _, key := range sortedKeys(opts) {
		value := opts[key]
		switch key {
		case "min", "max":
			v, ok := toInt64(value)
			if !ok {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrOptionType,
					Detail: "expected an integer length"}
			}
			if v > MaxTextLen {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrInvalidRange,
					Detail: fmt.Sprintf("length must not exceed %d, got %d", MaxTextLen, v)}
			}
			if v < 0 {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrInvalidRange,
					Detail: fmt.Sprintf("length must not be negative, got %d", v)}
			}
			if key == "min" {
				f.MinLen = int(v)
			} else {
				f.MaxLen = int(v)
			}
		case "chars":
			className, ok := value.(string)
			if !ok {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrOptionType,
					Detail: "expected a character class name"}
			}
			chars, ok := charClasses[className]
			if !ok {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrUnknownCharClass,
					Detail: fmt.Sprintf("%q, must be one of %s", className, strings.Join(CharClasses(), ", "))}
			}
			f.ClassName = className
			f.alphabet = chars
		case "enum":
			values, err := toStringList(value)
			if err != nil {
				return nil, &FieldError{Field: name, Kind: KindText, Option: key, Err: ErrOptionType,
					Detail: err.Error()}
			}
			f.Enum = values
		default:
			unrecognized(warn, name, KindText, key)
		}
	}

	// An enum short-circuits generation, so its length bounds are irrelevant.
	if len(f.Enum) == 0 && f.MinLen > f.MaxLen {
		return nil, &FieldError{Field: name, Kind: KindText, Err: ErrInvalidRange,
			Detail: rangeDetail(int64(f.MinLen), int64(f.MaxLen))}
	}
	return f, nil
}

func (f *TextField) Name() string { return f.name }

func (f *TextField) Kind() Kind { return KindText }

func (f *TextField) Generate(rng *rand.Rand) interface{} {
	if len(f.Enum) > 0 {
		return f.Enum[rng.Intn(len(f.Enum))]
	}

	n := f.MinLen + rng.Intn(f.MaxLen-f.MinLen+1)
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(f.alphabet[rng.Intn(len(f.alphabet))])
	}
	return b.String()
}

func toStringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
}
