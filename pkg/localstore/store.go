// Package localstore is the local fallback key-value store used when the
// remote database is bypassed. Values are whole serialized collections.
package localstore

import "context"

// Store is a synchronous string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
