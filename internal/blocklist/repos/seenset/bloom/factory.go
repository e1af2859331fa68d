package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
)

// factory implements seenset.BloomFactory using internal sizing formulas.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() seenset.BloomFactory { return factory{} }

// New constructs a filter sized for capacity keys at the target false-positive rate.
func (factory) New(capacity uint64, fpRate float64) seenset.BloomFilter {
	m, k := NewSizer().Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
