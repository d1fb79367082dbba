package services

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLock serializes work per key using a fixed set of mutex stripes. Two
// keys may share a stripe; that only costs concurrency, never correctness.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

// Lock acquires the stripe for key and returns its unlock func.
func (k *keyLock) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &k.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
