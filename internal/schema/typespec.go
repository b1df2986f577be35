package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// typeRe matches a bare keyword with an optional (length) or
// (precision,scale) suffix, e.g. VARCHAR, VARCHAR(20), DECIMAL(10,2).
var typeRe = regexp.MustCompile(`^([A-Za-z]+)(?:\(([0-9]+)(?:,([0-9]+))?\))?$`)

// TypeSpec is a parsed column type string. Length and Scale are kept for
// display only; generation bounds come from explicit min/max options.
type TypeSpec struct {
	Raw     string `json:"raw" yaml:"raw"`
	Keyword string `json:"keyword" yaml:"keyword"`
	Length  *int   `json:"length,omitempty" yaml:"length,omitempty"`
	Scale   *int   `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// String is the upper-cased declaration, or one rebuilt from the parts when
// Raw is empty.
func (t TypeSpec) String() string {
	switch {
	case t.Raw != "":
		return strings.ToUpper(t.Raw)
	case t.Length != nil && t.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", t.Keyword, *t.Length, *t.Scale)
	case t.Length != nil:
		return fmt.Sprintf("%s(%d)", t.Keyword, *t.Length)
	default:
		return t.Keyword
	}
}

// ParseType splits a type string into its upper-cased keyword and suffix.
// A suffix number too large for an int is left nil; Raw still carries it.
func ParseType(s string) (TypeSpec, error) {
	m := typeRe.FindStringSubmatch(s)
	if m == nil {
		return TypeSpec{}, fmt.Errorf("%w: malformed type %q", ErrSchemaFormat, s)
	}
	return TypeSpec{
		Raw:     s,
		Keyword: strings.ToUpper(m[1]),
		Length:  suffixInt(m[2]),
		Scale:   suffixInt(m[3]),
	}, nil
}

func suffixInt(digits string) *int {
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}
