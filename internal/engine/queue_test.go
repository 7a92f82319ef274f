package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mosaic/internal/ir"
)

func testRequest(caller string) request {
	return request{
		ctx:   context.Background(),
		cmd:   Command{Op: OpReserve, Caller: ir.Caller(caller)},
		reply: make(chan reply, 1),
	}
}

func TestRequestQueue_EnqueueDequeue(t *testing.T) {
	q := newRequestQueue()

	require.True(t, q.Enqueue(testRequest("alice")), "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, OpReserve, got.cmd.Op)
	assert.Equal(t, ir.Caller("alice"), got.cmd.Caller)
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for _, c := range []string{"a", "b", "c"} {
		q.Enqueue(testRequest(c))
	}

	for _, want := range []string{"a", "b", "c"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, ir.Caller(want), r.cmd.Caller)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_TryDequeue_Empty(t *testing.T) {
	q := newRequestQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newRequestQueue()

	q.Enqueue(testRequest("a"))
	q.Enqueue(testRequest("b"))

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal after enqueue")
	}

	// Signals coalesce: both requests are still there after one wakeup.
	assert.Equal(t, 2, q.Len())
}

func TestRequestQueue_CloseReturnsPending(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(testRequest("a"))
	q.Enqueue(testRequest("b"))

	pending := q.Close()
	require.Len(t, pending, 2)
	assert.Equal(t, ir.Caller("a"), pending[0].cmd.Caller)
	assert.True(t, q.Closed())
	assert.Equal(t, 0, q.Len())

	assert.False(t, q.Enqueue(testRequest("c")), "enqueue after close should fail")
	assert.Nil(t, q.Close(), "second close returns nothing")

	// A buffered signal may precede the close.
	for i := 0; i < 2; i++ {
		select {
		case _, open := <-q.Wait():
			if !open {
				return
			}
		default:
			t.Fatal("wait channel should be closed")
		}
	}
	t.Fatal("wait channel still open after close")
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newRequestQueue()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(testRequest("c"))
		}()
	}
	wg.Wait()

	n := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 100, n)
}
