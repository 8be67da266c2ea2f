package rag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "TryAcquire succeeds when lock is available",
			testFunc: func(t *testing.T) {
				var lock IndexLock
				assert.True(t, lock.TryAcquire(), "TryAcquire should succeed when lock is available")
				assert.True(t, lock.Held())
				lock.Release()
				assert.False(t, lock.Held())
			},
		},
		{
			name: "TryAcquire fails when lock is held",
			testFunc: func(t *testing.T) {
				var lock IndexLock
				require.True(t, lock.TryAcquire(), "First TryAcquire should succeed")
				assert.False(t, lock.TryAcquire(), "Second TryAcquire should fail while lock is held")
				lock.Release()
			},
		},
		{
			name: "Release makes lock available again",
			testFunc: func(t *testing.T) {
				var lock IndexLock
				require.True(t, lock.TryAcquire())
				lock.Release()
				assert.True(t, lock.TryAcquire(), "Lock should be available after Release")
				lock.Release()
			},
		},
		{
			name: "Concurrent goroutines attempting acquisition",
			testFunc: func(t *testing.T) {
				var lock IndexLock
				const numGoroutines = 100

				acquired := make([]bool, numGoroutines)
				var wg sync.WaitGroup
				wg.Add(numGoroutines)
				for i := 0; i < numGoroutines; i++ {
					go func(idx int) {
						defer wg.Done()
						acquired[idx] = lock.TryAcquire()
					}(i)
				}
				wg.Wait()

				successCount := 0
				for _, success := range acquired {
					if success {
						successCount++
					}
				}
				assert.Equal(t, 1, successCount, "Exactly one goroutine should acquire the lock")
				lock.Release()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}
