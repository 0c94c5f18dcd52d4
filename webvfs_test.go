package webvfs

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/mocks"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.StoreBackend = config.StoreLevelDB
	_, err := New(cfg)
	assert.ErrorContains(t, err, "requires a store path")
}

func TestKernel_Reopen(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{config.StoreLevelDB, config.StoreDisk} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			cfg := config.NewDefaultConfig()
			cfg.StoreBackend = backend
			cfg.StorePath = t.TempDir()

			k, err := New(cfg)
			require.NoError(t, err)
			require.NoError(t, k.Boot(ctx))
			require.NoError(t, k.WriteFile(ctx, persist.HomeDir+"/kept.txt", []byte("still here")))
			require.NoError(t, k.Close(ctx))

			k, err = New(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { k.Close(ctx) })
			require.NoError(t, k.Boot(ctx))

			data, err := k.ReadFile(ctx, persist.HomeDir+"/kept.txt")
			require.NoError(t, err)
			assert.Equal(t, "still here", string(data))

			_, err = k.Stat(ctx, persist.MotdPath)
			assert.NoError(t, err, "seeded files survive the restart")
		})
	}
}

func TestKernel_CloseAfterFailedBoot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &mocks.MockStore{}
	st.On("Get", mock.Anything, config.DefaultStateKey).Return(nil, errors.New("unreadable"))
	st.On("Close").Return(errors.New("close failed"))

	k := NewWithStore(st, config.NewDefaultConfig())
	assert.Error(t, k.Boot(ctx))
	assert.EqualError(t, k.Close(ctx), "close failed")
	st.AssertExpectations(t)
}
