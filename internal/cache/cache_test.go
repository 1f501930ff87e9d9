package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/botconsole/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedCache_Memory(t *testing.T) {
	ctx := context.Background()
	shared := newMemoryCache[any]()
	sessions := NewPrefixedCache(shared, "session-", 0)
	other := NewPrefixedCache(shared, "other-", 0)

	_, err := sessions.Get(ctx, "missing")
	require.Error(t, err)

	require.NoError(t, sessions.Set(ctx, "browser-1", []byte(`{"token":"a"}`)))
	require.NoError(t, sessions.Set(ctx, "browser-2", []byte(`{"token":"b"}`)))
	require.NoError(t, other.Set(ctx, "browser-1", []byte("kept")))

	data, err := sessions.Get(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"a"}`, string(data))

	require.NoError(t, sessions.Delete(ctx, "browser-1"))
	_, err = sessions.Get(ctx, "browser-1")
	assert.Error(t, err)

	require.NoError(t, sessions.Clear(ctx))
	_, err = sessions.Get(ctx, "browser-2")
	assert.Error(t, err)

	data, err = other.Get(ctx, "browser-1")
	require.NoError(t, err, "clear must only drop entries of its own prefix")
	assert.Equal(t, "kept", string(data))
}

func TestPrefixedCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewPrefixedCache(newMemoryCache[any](), "session-", 50*time.Millisecond)

	require.NoError(t, c.Set(ctx, "browser-1", []byte("x")))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "browser-1")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestNew(t *testing.T) {
	c, err := New(&config.StoreConfig{Type: config.StoreTypeMemory}, "session-", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(&config.StoreConfig{Type: config.StoreTypeSQLite}, "session-", time.Minute)
	assert.Error(t, err)
}
