package lanes

import (
	"context"
	"sync"

	dErrors "regionsync/pkg/domain-errors"
)

// numShards bounds memory for the local locker. Distinct keys hashing to the
// same shard serialize, which only costs throughput.
const numShards = 128

// LocalLocker is an in-process Locker over FNV-sharded channel mutexes.
type LocalLocker struct {
	shards [numShards]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	l := &LocalLocker{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, ErrLockTimeout.Error())
	}
	shard := l.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, ErrLockTimeout.Error())
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-shard })
		return nil
	}, nil
}

// hashKey uses FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// LocalPending is an in-process PendingTracker.
type LocalPending struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewLocalPending() *LocalPending {
	return &LocalPending{counts: make(map[string]int64)}
}

func (p *LocalPending) Add(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[key]++
	return nil
}

func (p *LocalPending) Done(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[key] <= 1 {
		delete(p.counts, key)
		return nil
	}
	p.counts[key]--
	return nil
}

func (p *LocalPending) Pending(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[key], nil
}
