// Package seenset tracks which lines have already been seen during a pass.
//
// Set is exact and backs every operation that writes output. Estimator is a
// Bloom filter counter for reports that only need a distinct count: it keeps
// a fixed bit array sized from the expected line count instead of every
// distinct string.
package seenset

// DefaultFPRate is the false-positive target used when sizing an Estimator.
const DefaultFPRate = 0.0001

// BloomFilter is the minimal interface the estimator needs from a Bloom filter.
type BloomFilter interface {
	// TestOrAdd reports whether key may have been added before, adding it
	// when it was not.
	TestOrAdd(key string) bool
}

// BloomFactory creates Bloom filters sized for an expected number of keys.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// Set is an exact membership set preserving nothing but membership; callers
// write lines in the order Add first reports them.
//
// Set is not safe for concurrent use.
type Set struct {
	exact map[string]struct{}
}

// New returns a Set expecting roughly capacity distinct lines.
func New(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{exact: make(map[string]struct{}, min(capacity, 1<<16))}
}

// Add records line and reports whether it had not been seen before.
func (s *Set) Add(line string) bool {
	if _, ok := s.exact[line]; ok {
		return false
	}
	s.exact[line] = struct{}{}
	return true
}

// Len returns the number of distinct lines added.
func (s *Set) Len() int {
	return len(s.exact)
}

// Estimator counts distinct lines approximately. A false positive makes a
// new line look seen, so Count never exceeds the true distinct count and
// undercounts by roughly the false-positive rate.
type Estimator struct {
	filter BloomFilter
	count  int
}

// NewEstimator returns an Estimator sized for capacity lines at fpRate.
// A non-positive fpRate selects DefaultFPRate.
func NewEstimator(capacity int, fpRate float64, factory BloomFactory) *Estimator {
	if capacity < 0 {
		capacity = 0
	}
	if fpRate <= 0 {
		fpRate = DefaultFPRate
	}
	return &Estimator{filter: factory.New(uint64(capacity), fpRate)}
}

// Add records line and reports whether it is probably new.
func (e *Estimator) Add(line string) bool {
	if e.filter.TestOrAdd(line) {
		return false
	}
	e.count++
	return true
}

// Count returns the number of lines Add reported as new.
func (e *Estimator) Count() int {
	return e.count
}
