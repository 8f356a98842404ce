package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Lock(t *testing.T) {
	t.Run("serializes access to the same key", func(t *testing.T) {
		r := NewRegistry()
		counter := 0

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := r.Lock("sku-1|wh-east")
				counter++
				unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, counter)
	})

	t.Run("releases entries once unused", func(t *testing.T) {
		r := NewRegistry()

		unlock := r.Lock("sku-1|wh-east")
		unlock()

		r.mu.Lock()
		defer r.mu.Unlock()
		assert.Empty(t, r.locks)
	})

	t.Run("distinct keys do not block each other", func(t *testing.T) {
		r := NewRegistry()

		unlockA := r.Lock("sku-1|wh-east")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB := r.Lock("sku-1|wh-west")
			unlockB()
			close(done)
		}()
		<-done
	})
}

func TestRegistry_LockPair(t *testing.T) {
	t.Run("opposite orderings do not deadlock", func(t *testing.T) {
		r := NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unlock := r.LockPair("sku-1|wh-east", "sku-1|wh-west")
				unlock()
			}()
			go func() {
				defer wg.Done()
				unlock := r.LockPair("sku-1|wh-west", "sku-1|wh-east")
				unlock()
			}()
		}
		wg.Wait()
	})

	t.Run("identical keys collapse to a single lock", func(t *testing.T) {
		r := NewRegistry()
		unlock := r.LockPair("sku-1|wh-east", "sku-1|wh-east")
		unlock()

		r.mu.Lock()
		defer r.mu.Unlock()
		assert.Empty(t, r.locks)
	})
}
