package schema

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/mmrzaf/mockstream/internal/generators"
)

// Column is one compiled field of a table together with the declaration it
// was built from.
type Column struct {
	generators.Field
	Type    TypeSpec
	Options generators.Options
}

// Table is an ordered set of columns sharing the schema's random source.
type Table struct {
	Name    string
	Columns []Column

	rng *lockedRand
}

// FieldValue is one entry of a Record.
type FieldValue struct {
	Name  string
	Value interface{}
}

// Record is a generated row. Entries keep the table's declaration order.
type Record []FieldValue

// Map returns the record as a plain map.
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r))
	for _, fv := range r {
		m[fv.Name] = fv.Value
	}
	return m
}

// Get returns the value of the named field.
func (r Record) Get(name string) (interface{}, bool) {
	for _, fv := range r {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object with keys in declaration order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fv := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fv.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldNames lists the column names in declaration order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name()
	}
	return names
}

// GenerateValue produces one record from the schema's shared random source.
func (t *Table) GenerateValue() Record {
	t.rng.mu.Lock()
	defer t.rng.mu.Unlock()
	return t.Generate(t.rng.r)
}

// Generate produces one record from rng. Callers running several workers
// should give each its own source.
func (t *Table) Generate(rng *rand.Rand) Record {
	rec := make(Record, len(t.Columns))
	for i, c := range t.Columns {
		rec[i] = FieldValue{Name: c.Name(), Value: c.Generate(rng)}
	}
	return rec
}

// lockedRand serializes access to a random source shared by every table of
// one compiled schema.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}
