package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/merge"
)

var (
	_ merge.Locker = (*Local)(nil)
	_ merge.Locker = (*Redis)(nil)
)

func TestLocalServesAsFlowLocker(t *testing.T) {
	var locker merge.Locker = &Local{}

	unlock, err := locker.Lock(context.Background(), "owner-1")
	require.NoError(t, err)
	unlock()

	unlock, err = locker.Lock(context.Background(), "owner-1")
	require.NoError(t, err)
	unlock()
}

func TestLocalSerialisesSameOwner(t *testing.T) {
	var l Local
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "owner-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInside.Load())
	require.Zero(t, l.held())
}

func TestLocalDifferentOwnersDoNotBlock(t *testing.T) {
	var l Local
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalHonoursContext(t *testing.T) {
	var l Local
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	require.Zero(t, l.held())
}
