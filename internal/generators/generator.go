package generators

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Kind identifies one of the closed set of field generator variants.
type Kind string

const (
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindText      Kind = "text"
	KindTimestamp Kind = "timestamp"
)

// Field produces one value per call. Implementations are immutable after
// construction and never fail at generation time.
type Field interface {
	Name() string
	Kind() Kind
	Generate(rng *rand.Rand) interface{}
}

// Options is the raw option mapping of a single schema field, as decoded
// from the schema document.
type Options map[string]interface{}

// WarnFunc receives non-fatal notices about option keys a variant does not
// recognize.
type WarnFunc func(field string, kind Kind, option string)

// Constructor builds a field of one variant from its raw options.
type Constructor func(name string, opts Options, warn WarnFunc) (Field, error)

var (
	ErrOptionType       = errors.New("invalid option value type")
	ErrUnknownCharClass = errors.New("unknown character class")
	ErrInvalidRange     = errors.New("invalid range")
	ErrUnknownKind      = errors.New("unknown generator kind")
)

// FieldError carries the field and option that failed construction.
type FieldError struct {
	Field  string
	Kind   Kind
	Option string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s field '%s'", e.Kind, e.Field)
	if e.Option != "" {
		msg += fmt.Sprintf(", option '%s'", e.Option)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Err }

var constructors = map[Kind]Constructor{
	KindInteger:   func(n string, o Options, w WarnFunc) (Field, error) { return NewIntegerField(n, o, w) },
	KindFloat:     func(n string, o Options, w WarnFunc) (Field, error) { return NewFloatField(n, o, w) },
	KindText:      func(n string, o Options, w WarnFunc) (Field, error) { return NewTextField(n, o, w) },
	KindTimestamp: func(n string, o Options, w WarnFunc) (Field, error) { return NewTimestampField(n, o, w) },
}

// New dispatches to the constructor registered for kind.
func New(kind Kind, name string, opts Options, warn WarnFunc) (Field, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ctor(name, opts, warn)
}

// Kinds lists the supported variants in a stable order.
func Kinds() []Kind {
	return []Kind{KindInteger, KindFloat, KindText, KindTimestamp}
}

// sortedKeys walks options in a stable order so warnings and errors are
// reproducible for a given document.
func sortedKeys(opts Options) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unrecognized(warn WarnFunc, name string, kind Kind, option string) {
	if option == "type" || warn == nil {
		return
	}
	warn(name, kind, option)
}
