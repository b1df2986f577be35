package schema

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/mockstream/internal/generators"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/registry"
	"gopkg.in/yaml.v3"
)

var ErrSchemaFormat = errors.New("invalid schema")

// Error locates a compile failure in the schema document.
type Error struct {
	Table string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("table '%s', field '%s': %v", e.Table, e.Field, e.Err)
	case e.Table != "":
		return fmt.Sprintf("table '%s': %v", e.Table, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Warning records an option key that a field's variant ignored.
type Warning struct {
	Table  string          `json:"table"`
	Field  string          `json:"field"`
	Kind   generators.Kind `json:"kind"`
	Option string          `json:"option"`
}

func (w Warning) String() string {
	return fmt.Sprintf("unrecognized option '%s' for %s field '%s.%s'", w.Option, w.Kind, w.Table, w.Field)
}

// Schema is the result of one compilation. All tables share one random
// source; GenerateValue calls are serialized on it.
type Schema struct {
	Tables   []*Table
	Warnings []Warning
	// Seed is the seed the shared source was built from, nil when the
	// caller supplied its own source.
	Seed *int64

	rng *lockedRand
}

// Table looks a table up by name.
func (s *Schema) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

type options struct {
	seed     *int64
	rng      *rand.Rand
	logger   *logging.Logger
	registry *registry.TypeRegistry
}

type Option func(*options)

// WithSeed makes generation reproducible for a fixed schema and call order.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithRand hands the compiler an existing random source. It takes precedence
// over WithSeed.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRegistry(r *registry.TypeRegistry) Option {
	return func(o *options) { o.registry = r }
}

// ParseConfig compiles src and returns its tables in declaration order. A
// nil seed draws one from the operating system.
func ParseConfig(src []byte, seed *int64, logger *logging.Logger) ([]*Table, error) {
	opts := []Option{WithLogger(logger)}
	if seed != nil {
		opts = append(opts, WithSeed(*seed))
	}
	s, err := Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	return s.Tables, nil
}

// Compile parses a YAML (or JSON) document of the shape
// table -> field -> options and builds every field generator. Any error
// rejects the whole document.
func Compile(src []byte, opts ...Option) (*Schema, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.registry == nil {
		o.registry = registry.DefaultTypeRegistry()
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaFormat, err)
	}
	root := resolve(&doc)
	if root == nil || root.Kind == 0 || isNull(root) {
		return nil, fmt.Errorf("%w: empty document", ErrSchemaFormat)
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must map table names to fields", ErrSchemaFormat)
	}

	s := &Schema{}
	switch {
	case o.rng != nil:
		s.rng = &lockedRand{r: o.rng}
	case o.seed != nil:
		seed := *o.seed
		s.Seed = &seed
		s.rng = &lockedRand{r: rand.New(rand.NewSource(seed))}
	default:
		seed := randomSeed()
		s.Seed = &seed
		s.rng = &lockedRand{r: rand.New(rand.NewSource(seed))}
	}

	c := &compiler{reg: o.registry, logger: o.logger, schema: s}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, body := root.Content[i], resolve(root.Content[i+1])
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: table names must be scalars (line %d)", ErrSchemaFormat, keyNode.Line)
		}
		name := keyNode.Value
		if seen[name] {
			return nil, &Error{Table: name, Err: fmt.Errorf("%w: duplicate table", ErrSchemaFormat)}
		}
		seen[name] = true

		table, err := c.compileTable(name, body)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, table)
	}

	return s, nil
}

type compiler struct {
	reg    *registry.TypeRegistry
	logger *logging.Logger
	schema *Schema
}

func (c *compiler) compileTable(name string, body *yaml.Node) (*Table, error) {
	if body == nil || body.Kind != yaml.MappingNode {
		return nil, &Error{Table: name, Err: fmt.Errorf("%w: table must map field names to options", ErrSchemaFormat)}
	}

	table := &Table{Name: name, rng: c.schema.rng}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode, optsNode := body.Content[i], resolve(body.Content[i+1])
		if keyNode.Kind != yaml.ScalarNode {
			return nil, &Error{Table: name, Err: fmt.Errorf("%w: field names must be scalars (line %d)", ErrSchemaFormat, keyNode.Line)}
		}
		fieldName := keyNode.Value
		if seen[fieldName] {
			return nil, &Error{Table: name, Field: fieldName, Err: fmt.Errorf("%w: duplicate field", ErrSchemaFormat)}
		}
		seen[fieldName] = true

		col, err := c.compileColumn(name, fieldName, optsNode)
		if err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, col)
	}
	return table, nil
}

func (c *compiler) compileColumn(table, field string, node *yaml.Node) (Column, error) {
	fail := func(err error) (Column, error) {
		return Column{}, &Error{Table: table, Field: field, Err: err}
	}

	if node == nil || node.Kind != yaml.MappingNode {
		return fail(fmt.Errorf("%w: field options must be a mapping", ErrSchemaFormat))
	}
	var opts generators.Options
	if err := node.Decode(&opts); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrSchemaFormat, err))
	}

	rawType, ok := opts["type"]
	if !ok {
		return fail(fmt.Errorf("%w: type value not found", ErrSchemaFormat))
	}
	typeStr, ok := rawType.(string)
	if !ok {
		return fail(fmt.Errorf("%w: type must be a string, got %T", ErrSchemaFormat, rawType))
	}
	spec, err := ParseType(typeStr)
	if err != nil {
		return fail(err)
	}
	kind, err := c.reg.Resolve(spec.Keyword)
	if err != nil {
		return fail(fmt.Errorf("%w: unrecognized type value %q", ErrSchemaFormat, typeStr))
	}

	warn := func(f string, k generators.Kind, option string) {
		w := Warning{Table: table, Field: f, Kind: k, Option: option}
		c.schema.Warnings = append(c.schema.Warnings, w)
		c.logger.Warnw("schema.option_unrecognized", map[string]any{
			"table":  table,
			"field":  f,
			"kind":   string(k),
			"option": option,
		})
	}

	gen, err := generators.New(kind, field, opts, warn)
	if err != nil {
		return fail(err)
	}
	return Column{Field: gen, Type: spec, Options: opts}, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Int63()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
