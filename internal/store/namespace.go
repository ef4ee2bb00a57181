package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Namespace is a typed view over a Backend. Values are stored as JSON.
type Namespace[T any] struct {
	name    string
	backend Backend
}

// NewNamespace wraps backend under the given namespace name.
func NewNamespace[T any](name string, backend Backend) *Namespace[T] {
	return &Namespace[T]{name: name, backend: backend}
}

// Name returns the namespace name.
func (n *Namespace[T]) Name() string {
	return n.name
}

// Get decodes the value under key. ok is false when the key is absent.
func (n *Namespace[T]) Get(ctx context.Context, key string) (value T, ok bool, err error) {
	raw, ok, err := n.backend.Get(ctx, key)
	if err != nil || !ok {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("%s: decode %q: %w", n.name, key, err)
	}
	return value, true, nil
}

// Set encodes and stores value under key.
func (n *Namespace[T]) Set(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: encode %q: %w", n.name, key, err)
	}
	return n.backend.Set(ctx, key, raw)
}

// Delete removes key.
func (n *Namespace[T]) Delete(ctx context.Context, key string) error {
	return n.backend.Delete(ctx, key)
}

// Keys lists every key in the namespace.
func (n *Namespace[T]) Keys(ctx context.Context) ([]string, error) {
	return n.backend.Keys(ctx)
}

// Values decodes every entry. Entries that fail to decode abort the scan.
func (n *Namespace[T]) Values(ctx context.Context) (map[string]T, error) {
	out := make(map[string]T)
	var decodeErr error
	err := n.backend.Range(ctx, func(key string, raw []byte) bool {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			decodeErr = fmt.Errorf("%s: decode %q: %w", n.name, key, err)
			return false
		}
		out[key] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// Close releases the backend.
func (n *Namespace[T]) Close() error {
	return n.backend.Close()
}
