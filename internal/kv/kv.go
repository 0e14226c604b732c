// Package kv provides the single key-value store that holds persisted state.
//
// Values are opaque byte strings. Writes replace the whole value; there is no
// append, compare-and-swap or locking across processes.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is a minimal key-value store.
type Store interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Dir is the directory used by the file backend.
	Dir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DialTimeout   time.Duration
}

// Open builds the Store described by opts. The returned close function
// releases backend resources and is always non-nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendFile:
		s, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendRedis:
		s := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix, opts.DialTimeout)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

var errEmptyKey = errors.New("kv: empty key")
