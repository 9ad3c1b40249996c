package rewardd

import (
	"sync"
	"time"
)

// nonceAllocator hands out unique transaction nonces for the shared
// distributor key. The counter is seeded from the wall clock so that nonces
// stay unique across process restarts without persistence.
type nonceAllocator struct {
	mu   sync.Mutex
	last uint64
}

func newNonceAllocator() *nonceAllocator {
	return &nonceAllocator{last: uint64(time.Now().UnixNano())}
}

func (n *nonceAllocator) Next() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last++
	return n.last
}
