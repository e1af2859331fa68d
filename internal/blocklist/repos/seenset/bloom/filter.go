package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter adapts a bits-and-blooms BloomFilter to seenset.BloomFilter.
// TestOrAdd mutates the filter, so every call takes the lock.
type filter struct {
	mu sync.Mutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) TestOrAdd(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.TestOrAddString(key)
}
