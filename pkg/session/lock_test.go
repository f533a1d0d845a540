package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/mosaic/pkg/adapters/memory"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (m *Manager) counts() (locks, live int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks), len(m.sessions)
}

func TestManager_LocksReleasedAfterDelete(t *testing.T) {
	mgr := NewManager(domain.Definition{Name: "empty"}, memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_, err := mgr.LoadOrStart(ctx, sid)
		require.NoError(t, err)
		require.NoError(t, mgr.Delete(ctx, sid))
	}

	locks, live := mgr.counts()
	assert.Zero(t, locks, "lock entries leaked after Delete")
	assert.Zero(t, live, "engines still live after Delete")
}

func TestManager_ConcurrentStartSharesEngine(t *testing.T) {
	mgr := NewManager(domain.Definition{Name: "empty"}, memory.NewStore())
	t.Cleanup(func() { _ = mgr.Close() })
	ctx := context.Background()

	var wg sync.WaitGroup
	engines := make(chan any, 16)
	for i := 0; i < cap(engines); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng, err := mgr.LoadOrStart(ctx, "shared")
			assert.NoError(t, err)
			engines <- eng
		}()
	}
	wg.Wait()
	close(engines)

	first := <-engines
	for eng := range engines {
		assert.Same(t, first, eng)
	}
	locks, live := mgr.counts()
	assert.Zero(t, locks)
	assert.Equal(t, 1, live)
}
