package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherPreservesOrder(t *testing.T) {
	t.Parallel()

	d := newDispatcher()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		i := i
		d.enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	d.close()

	assert.Len(t, order, 100)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestDispatcherCloseDrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	d := newDispatcher()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		d.enqueue(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	d.close()
	assert.Equal(t, 10, ran)

	// Tasks enqueued after close are dropped
	d.enqueue(func() {
		mu.Lock()
		ran++
		mu.Unlock()
	})
	assert.Equal(t, 10, ran)
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	d.enqueue(func() {})
	d.close()
	d.close()
}
