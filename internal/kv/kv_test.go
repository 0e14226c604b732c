package kv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docappt/internal/kv"
)

func TestStores(t *testing.T) {
	fileStore, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]kv.Store{
		"file":   fileStore,
		"memory": kv.NewMemoryStore(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "appointments")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "appointments", []byte(`[1]`)))
			v, ok, err := s.Get(ctx, "appointments")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[1]`, string(v))

			require.NoError(t, s.Set(ctx, "appointments", []byte(`[1,2]`)))
			v, _, err = s.Get(ctx, "appointments")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(v))

			_, _, err = s.Get(ctx, "")
			require.Error(t, err)
			require.Error(t, s.Set(ctx, "", nil))
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := kv.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "appointments", []byte(`[]`)))

	info, err := os.Stat(filepath.Join(dir, "appointments.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(dir, ".kv-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOpen(t *testing.T) {
	s, closeFn, err := kv.Open(context.Background(), kv.Options{Backend: kv.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &kv.MemoryStore{}, s)
	assert.NoError(t, closeFn())

	s, _, err = kv.Open(context.Background(), kv.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &kv.FileStore{}, s)

	_, closeFn, err = kv.Open(context.Background(), kv.Options{Backend: "etcd"})
	require.Error(t, err)
	assert.NotNil(t, closeFn)
}

func TestOpenRedisUnreachable(t *testing.T) {
	_, _, err := kv.Open(context.Background(), kv.Options{
		Backend:     kv.BackendRedis,
		RedisAddr:   "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}
