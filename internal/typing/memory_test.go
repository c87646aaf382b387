package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryLastWriterWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, 1, Signal{TenantID: "shop-1", IsTyping: true, Name: "Ana", UpdatedAt: t0}))
	require.NoError(t, m.Set(ctx, 1, Signal{TenantID: "shop-1", IsTyping: false, Name: "Ana", UpdatedAt: t0.Add(time.Second)}))

	all, err := m.All(ctx, "shop-1")
	require.NoError(t, err)
	require.Contains(t, all, int64(1))
	assert.False(t, all[1].IsTyping)
}

func TestMemoryClearOnSend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.ClearOnSend(ctx, 9, t0))
	all, _ := m.All(ctx, "")
	assert.NotContains(t, all, int64(9), "clearing does not create a record")

	require.NoError(t, m.Set(ctx, 9, Signal{TenantID: "shop-1", IsTyping: true, FromAdmin: true, Name: "Support", UpdatedAt: t0}))
	require.NoError(t, m.ClearOnSend(ctx, 9, t0.Add(time.Second)))
	all, _ = m.All(ctx, "shop-1")
	assert.Equal(t, Signal{TenantID: "shop-1", IsTyping: false, FromAdmin: true, Name: "Support", UpdatedAt: t0.Add(time.Second)}, all[9])
}

func TestMemoryAllScopesByTenant(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, 1, Signal{TenantID: "shop-1", IsTyping: true}))
	require.NoError(t, m.Set(ctx, 2, Signal{TenantID: "shop-2", IsTyping: true}))

	all, err := m.All(ctx, "shop-2")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, int64(2))

	// mutating the snapshot does not leak back
	delete(all, 2)
	again, _ := m.All(ctx, "shop-2")
	assert.Len(t, again, 1)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(id int64) {
			defer wg.Done()
			_ = m.Set(ctx, id%5, Signal{TenantID: "shop-1", IsTyping: true})
		}(int64(i))
		go func(id int64) {
			defer wg.Done()
			_ = m.ClearOnSend(ctx, id%5, t0)
		}(int64(i))
		go func() {
			defer wg.Done()
			_, _ = m.All(ctx, "shop-1")
		}()
	}
	wg.Wait()

	all, err := m.All(ctx, "shop-1")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
