package seenset_test

import (
	"fmt"
	"testing"

	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset/bloom"
)

func benchLines(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("d%06d.bench.test", i)
	}
	return out
}

// BenchmarkSet_AddDistinct measures inserts when every line is new, the
// common case for a well-maintained list.
func BenchmarkSet_AddDistinct(b *testing.B) {
	lines := benchLines(100_000)
	s := seenset.New(len(lines))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Add(lines[i%len(lines)])
	}
}

func BenchmarkSet_AddDuplicates(b *testing.B) {
	lines := benchLines(1000)
	s := seenset.New(len(lines))
	for _, l := range lines {
		s.Add(l)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Add(lines[i%len(lines)])
	}
}

func BenchmarkEstimator_Add(b *testing.B) {
	lines := benchLines(100_000)
	e := seenset.NewEstimator(len(lines), 0, bloom.NewFactory())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Add(lines[i%len(lines)])
	}
}
