package entity

import (
	"encoding/json"

	"github.com/lumen-church/backend/internal/apperr"
)

// Patch is a partial row keyed by JSON field name.
type Patch map[string]any

// serverOwned keys are assigned by the store and never taken from a patch.
var serverOwned = map[string]bool{
	"id":         true,
	"version":    true,
	"created_at": true,
	"updated_at": true,
}

// Merge shallow-merges patch over row: each present key replaces the field
// wholesale. Unknown keys are ignored.
func Merge[T any](row T, patch Patch) (T, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return row, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return row, err
	}
	for k, v := range patch {
		if serverOwned[k] {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return row, apperr.Validation("invalid patch", map[string]string{k: err.Error()})
		}
		fields[k] = b
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return row, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return row, apperr.Validation("invalid patch: "+err.Error(), nil)
	}
	return out, nil
}
