package threading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestQueueOrder(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, 5, q.Added())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
	assert.Equal(t, 5, q.Unfinished()) // taken but not done
}

func TestQueueIdle(t *testing.T) {
	q := NewQueue[string]()
	assert.True(t, closed(q.Idle()))

	q.Put("a")
	q.Put("b")
	idle := q.Idle()
	assert.False(t, closed(idle))

	ctx := context.Background()
	_, err := q.Get(ctx)
	require.NoError(t, err)
	q.Done()
	assert.False(t, closed(idle))

	// an empty queue with a job in flight is not idle
	_, err = q.Get(ctx)
	require.NoError(t, err)
	assert.True(t, q.Empty())
	assert.False(t, closed(idle))

	q.Done()
	assert.True(t, closed(idle))
	assert.Equal(t, 0, q.Unfinished())

	q.Put("c")
	assert.False(t, closed(q.Idle()))
}

func TestQueueDoneTooOften(t *testing.T) {
	q := NewQueue[int]()
	assert.Panics(t, func() { q.Done() })
}

func TestQueueGetCancel(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue[int]()
	got := make(chan int)
	go func() {
		v, err := q.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.Put(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
}

func TestQueueExactlyOnce(t *testing.T) {
	const items = 2000
	const consumers = 8
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[int]int{}
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Get(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
				q.Done()
			}
		}()
	}
	for i := 0; i < items; i++ {
		q.Put(i)
	}

	select {
	case <-q.Idle():
	case <-time.After(5 * time.Second):
		t.Fatal("queue never drained")
	}
	cancel()
	wg.Wait()

	require.Len(t, seen, items)
	for i := 0; i < items; i++ {
		assert.Equal(t, 1, seen[i], "item %d", i)
	}
}

func TestPoolStop(t *testing.T) {
	p := NewPool(3)
	p.Start(context.Background(), func(ctx context.Context, id int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, []bool{true, true, true}, p.Liveness())
	assert.True(t, p.Alive())
	assert.False(t, closed(p.Failed()))
	assert.NoError(t, p.Context().Err())

	require.NoError(t, p.Stop())
	assert.ErrorIs(t, p.Context().Err(), context.Canceled)
	assert.Len(t, p.Dead(), 3)
	assert.False(t, p.Alive())
}

func TestPoolWorkerError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(2)
	p.Start(context.Background(), func(ctx context.Context, id int) error {
		if id == 1 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case <-p.Failed():
	case <-time.After(time.Second):
		t.Fatal("pool did not report the failure")
	}
	assert.ErrorIs(t, p.Stop(), boom)
	assert.ErrorIs(t, p.Workers[1].Err(), boom)
	assert.ErrorIs(t, p.Workers[0].Err(), context.Canceled)
}

func TestPoolWorkerPanic(t *testing.T) {
	p := NewPool(1)
	p.Start(context.Background(), func(ctx context.Context, id int) error {
		panic("bad table")
	})

	select {
	case <-p.Failed():
	case <-time.After(time.Second):
		t.Fatal("pool did not report the panic")
	}
	dead := p.Dead()
	require.Len(t, dead, 1)
	assert.ErrorContains(t, dead[0].Err(), "worker 0 panic: bad table")
	assert.Error(t, p.Stop())
}

func TestPoolWorkerExit(t *testing.T) {
	p := NewPool(2)
	p.Start(context.Background(), func(ctx context.Context, id int) error {
		if id == 0 {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	})

	require.Eventually(t, func() bool { return !p.Workers[0].Alive() }, time.Second, 5*time.Millisecond)
	// a clean exit is not a failure, only liveness shows it
	assert.False(t, closed(p.Failed()))
	assert.Equal(t, []bool{false, true}, p.Liveness())
	assert.NoError(t, p.Workers[0].Err())
	assert.NoError(t, p.Stop())
}

func TestPoolStopNotStarted(t *testing.T) {
	p := NewPool(1)
	assert.NoError(t, p.Stop())
	assert.Panics(t, func() { NewPool(0) })
}
