package store

import (
	"context"
	"fmt"

	"github.com/mediocregopher/radix/v3"
)

// RedisBackend stores a namespace as one Redis hash.
type RedisBackend struct {
	client radix.Client
	hash   string
}

// NewRedisPool dials a radix connection pool.
func NewRedisPool(addr string, size int) (*radix.Pool, error) {
	if size <= 0 {
		size = 10
	}
	pool, err := radix.NewPool("tcp", addr, size)
	if err != nil {
		return nil, fmt.Errorf("dial redis %s: %w", addr, err)
	}
	return pool, nil
}

// RedisOpener returns an Opener that maps each location to the hash
// wpp:<user>:<namespace> on client. The client is shared and not closed by
// the returned backends.
func RedisOpener(client radix.Client) Opener {
	return func(_ context.Context, loc Location) (Backend, error) {
		return &RedisBackend{
			client: client,
			hash:   fmt.Sprintf("wpp:%s:%s", loc.UserID, loc.Namespace),
		}, nil
	}
}

func (r *RedisBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	mn := radix.MaybeNil{Rcv: &value}
	if err := r.client.Do(radix.Cmd(&mn, "HGET", r.hash, key)); err != nil {
		return nil, false, fmt.Errorf("hget %s %q: %w", r.hash, key, err)
	}
	if mn.Nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (r *RedisBackend) Set(_ context.Context, key string, value []byte) error {
	if err := r.client.Do(radix.FlatCmd(nil, "HSET", r.hash, key, value)); err != nil {
		return fmt.Errorf("hset %s %q: %w", r.hash, key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(_ context.Context, key string) error {
	if err := r.client.Do(radix.Cmd(nil, "HDEL", r.hash, key)); err != nil {
		return fmt.Errorf("hdel %s %q: %w", r.hash, key, err)
	}
	return nil
}

func (r *RedisBackend) Keys(_ context.Context) ([]string, error) {
	var keys []string
	if err := r.client.Do(radix.Cmd(&keys, "HKEYS", r.hash)); err != nil {
		return nil, fmt.Errorf("hkeys %s: %w", r.hash, err)
	}
	return keys, nil
}

func (r *RedisBackend) Range(_ context.Context, fn func(key string, value []byte) bool) error {
	var all map[string]string
	if err := r.client.Do(radix.Cmd(&all, "HGETALL", r.hash)); err != nil {
		return fmt.Errorf("hgetall %s: %w", r.hash, err)
	}
	for k, v := range all {
		if !fn(k, []byte(v)) {
			return nil
		}
	}
	return nil
}

// Close is a no-op; the pool belongs to whoever built the Opener.
func (r *RedisBackend) Close() error {
	return nil
}
