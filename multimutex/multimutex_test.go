package multimutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMutexSerializesPerID checks that goroutines locking the same id run one
// at a time while the bookkeeping map is emptied afterwards.
func TestMutexSerializesPerID(t *testing.T) {
	t.Parallel()

	const (
		numIDs     = 4
		perID      = 50
		iterations = 20
	)

	m := NewMutex[int32]()
	counters := make([]int, numIDs)

	var wg sync.WaitGroup
	for id := 0; id < numIDs; id++ {
		for i := 0; i < perID; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()

				for j := 0; j < iterations; j++ {
					m.Lock(int32(id))
					counters[id]++
					m.Unlock(int32(id))
				}
			}(id)
		}
	}
	wg.Wait()

	for id := 0; id < numIDs; id++ {
		require.Equal(t, perID*iterations, counters[id])
	}
	require.Zero(t, m.Len())
}

// TestMutexDoubleUnlock asserts that unlocking an id that isn't held panics.
func TestMutexDoubleUnlock(t *testing.T) {
	t.Parallel()

	m := NewMutex[string]()
	m.Lock("a")
	m.Unlock("a")

	require.Panics(t, func() {
		m.Unlock("a")
	})
}
