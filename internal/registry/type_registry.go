package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mmrzaf/mockstream/internal/generators"
)

// family is one keyword set bound to a generator kind. Families are
// consulted in registration order and the first match wins.
type family struct {
	kind     generators.Kind
	keywords map[string]struct{}
	ordered  []string
}

type TypeRegistry struct {
	mu       sync.RWMutex
	families []*family
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{}
}

// Register appends keywords to the family for kind, creating the family at
// the end of the lookup order if it does not exist yet.
func (r *TypeRegistry) Register(kind generators.Kind, keywords ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fam *family
	for _, f := range r.families {
		if f.kind == kind {
			fam = f
			break
		}
	}
	if fam == nil {
		fam = &family{kind: kind, keywords: make(map[string]struct{})}
		r.families = append(r.families, fam)
	}
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if _, dup := fam.keywords[kw]; dup {
			continue
		}
		fam.keywords[kw] = struct{}{}
		fam.ordered = append(fam.ordered, kw)
	}
}

// Resolve maps a type keyword (any case) to its generator kind.
func (r *TypeRegistry) Resolve(keyword string) (generators.Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kw := strings.ToUpper(keyword)
	for _, f := range r.families {
		if _, ok := f.keywords[kw]; ok {
			return f.kind, nil
		}
	}
	return "", fmt.Errorf("type keyword not found: %s", keyword)
}

// Keywords returns the registered keywords of kind in registration order.
func (r *TypeRegistry) Keywords(kind generators.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.families {
		if f.kind == kind {
			return append([]string(nil), f.ordered...)
		}
	}
	return nil
}

func (r *TypeRegistry) List() []generators.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]generators.Kind, 0, len(r.families))
	for _, f := range r.families {
		kinds = append(kinds, f.kind)
	}
	return kinds
}

// DefaultTypeRegistry carries the MySQL column vocabulary as surfaced by
// Debezium change events.
func DefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	r.Register(generators.KindInteger, "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT")
	r.Register(generators.KindFloat, "REAL", "FLOAT", "DOUBLE", "DECIMAL")
	r.Register(generators.KindText,
		"CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT",
		"TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "JSON")
	r.Register(generators.KindTimestamp, "DATETIME", "TIMESTAMP")
	return r
}
