package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testData = map[string][]byte{
	"fs_state_v1":                    {'W', 'V', 'F', 'S', 0, 1},
	"key2":                           []byte("llamas rock"),
	"key://with/slashes#and&chars":   []byte("tough key"),
	"key with space":                 []byte("blargh"),
	"empty value":                    {},
	strings.Repeat("looooong", 5000): []byte("long key"),
}

// storeTester runs the behavior every backend must share
type storeTester struct {
	store.Store
}

func (st *storeTester) Test(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		_, err := st.Get(ctx, "llamas-no-exist")
		assert.True(t, store.IsNotExists(err), "got %v", err)
	})

	t.Run("SetGet", func(t *testing.T) {
		for key, val := range testData {
			for i := 0; i < 3; i++ {
				require.NoError(t, st.Set(ctx, key, val))
			}
		}
		for key, val := range testData {
			out, err := st.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, string(val), string(out))
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "k", []byte("first, and longer")))
		require.NoError(t, st.Set(ctx, "k", []byte("second")))
		out, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "second", string(out))
	})

	t.Run("ValueNotAliased", func(t *testing.T) {
		buf := []byte("original")
		require.NoError(t, st.Set(ctx, "alias", buf))
		buf[0] = 'X'
		out, err := st.Get(ctx, "alias")
		require.NoError(t, err)
		assert.Equal(t, "original", string(out))
	})

	t.Run("CanceledContext", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, st.Set(canceled, "k", []byte("x")), context.Canceled)
		_, err := st.Get(canceled, "k")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	defer s.Close()
	tester := &storeTester{s}
	tester.Test(t)
}

func TestLevelDBStore(t *testing.T) {
	t.Parallel()

	s, err := store.NewLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	tester := &storeTester{s}
	tester.Test(t)
}

func TestDiskStore(t *testing.T) {
	t.Parallel()

	s, err := store.NewDiskStore(filepath.Join(t.TempDir(), "nested", "state"), 1024)
	require.NoError(t, err)
	defer s.Close()

	tester := &storeTester{s}
	tester.Test(t)
}

func TestLevelDBStore_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.NewLevelDBStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "fs_state_v1", []byte("snapshot")))
	require.NoError(t, s.Close())

	s, err = store.NewLevelDBStore(dir)
	require.NoError(t, err)
	defer s.Close()
	out, err := s.Get(ctx, "fs_state_v1")
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(out))
}

func TestDiskStore_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.NewDiskStore(dir, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "fs_state_v1", []byte("snapshot")))

	s2, err := store.NewDiskStore(dir, 0)
	require.NoError(t, err)
	out, err := s2.Get(ctx, "fs_state_v1")
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(out))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		want    any
	}{
		{config.StoreMemory, &store.MemoryStore{}},
		{config.StoreLevelDB, &store.LevelDBStore{}},
		{config.StoreDisk, &store.DiskStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewDefaultConfig()
			cfg.StoreBackend = tt.backend
			cfg.StorePath = t.TempDir()

			s, err := store.Open(cfg)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewDefaultConfig()
		cfg.StoreBackend = "indexeddb"
		_, err := store.Open(cfg)
		assert.ErrorContains(t, err, "unknown store backend")
	})
}
