package localstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoadJSON decodes the value under key into dst. Missing keys leave dst untouched.
func LoadJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v and rewrites the whole value under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}
