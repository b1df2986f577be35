package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/mmrzaf/mockstream/internal/schema"
)

// HashSchema fingerprints a compiled schema. Table and field order are part
// of the hash since they decide record key order.
func HashSchema(s *schema.Schema) (string, error) {
	canonical := canonicalizeSchema(s)
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func canonicalizeSchema(s *schema.Schema) []map[string]interface{} {
	tables := make([]map[string]interface{}, len(s.Tables))
	for i, table := range s.Tables {
		columns := make([]map[string]interface{}, len(table.Columns))
		for j, col := range table.Columns {
			colMap := map[string]interface{}{
				"name": col.Name(),
				"kind": string(col.Kind()),
				"type": col.Type.String(),
			}
			if opts := canonicalizeOptions(col.Options); len(opts) > 0 {
				colMap["options"] = opts
			}
			columns[j] = colMap
		}

		tables[i] = map[string]interface{}{
			"name":    table.Name,
			"columns": columns,
		}
	}
	return tables
}

// canonicalizeOptions drops the type key, which is already captured as the
// parsed type, and normalizes nested mappings.
func canonicalizeOptions(opts map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	keys := make([]string, 0, len(opts))
	for k := range opts {
		if k == "type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch val := opts[k].(type) {
		case map[string]interface{}:
			result[k] = canonicalizeOptions(val)
		default:
			result[k] = val
		}
	}
	return result
}
