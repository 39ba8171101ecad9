package lanes

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "regionsync/pkg/domain-errors"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "Candidate/c-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))

	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()), "double release is a no-op")

	release2, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, release2(context.Background()))
}

func TestLocalPending(t *testing.T) {
	p := NewLocalPending()
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, "k"))
	require.NoError(t, p.Add(ctx, "k"))
	n, _ := p.Pending(ctx, "k")
	assert.Equal(t, int64(2), n)

	require.NoError(t, p.Done(ctx, "k"))
	require.NoError(t, p.Done(ctx, "k"))
	require.NoError(t, p.Done(ctx, "k"))
	n, _ = p.Pending(ctx, "k")
	assert.Zero(t, n)
}
