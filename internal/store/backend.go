package store

import "context"

// Backend is a durable key-value namespace.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Range(ctx context.Context, fn func(key string, value []byte) bool) error
	Close() error
}

// Location addresses one namespace of one user.
type Location struct {
	UserID    string
	Dir       string
	Namespace string
}

// Opener opens the backend for a namespace location.
type Opener func(ctx context.Context, loc Location) (Backend, error)
