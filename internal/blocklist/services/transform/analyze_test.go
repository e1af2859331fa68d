package transform

import (
	"path/filepath"
	"testing"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	content := `! Title: test list
# comment
:section:

ads.example.com
||tracker.example.com^
||tracker.example.com^
0.0.0.0 ads.example.co.uk
cdn.other.org
||x.other.org^$third-party
`
	in := writeFile(t, t.TempDir(), "list.txt", content)
	sink := &recordingSink{}

	st, err := newTestEngine(0).Analyze(in, 2, sink)
	require.NoError(t, err)

	assert.Equal(t, 10, st.TotalLines)
	assert.Equal(t, 1, st.BlankLines)
	assert.Equal(t, 3, st.CommentLines)
	assert.Equal(t, 6, st.Entries)
	assert.Equal(t, 5, st.DistinctEntries)
	assert.Equal(t, []ApexCount{
		{Apex: "example.com", Count: 2},
		{Apex: "other.org", Count: 2},
	}, st.TopApex)
	assert.Equal(t, progressCall{100, "Complete"}, sink.progress[len(sink.progress)-1])
}

func TestAnalyze_NoApexGrouping(t *testing.T) {
	in := writeFile(t, t.TempDir(), "list.txt", "a.example.com\n")
	st, err := newTestEngine(0).Analyze(in, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, st.TopApex)
	assert.Equal(t, 1, st.DistinctEntries)
}

// saturatedFactory builds filters that claim every key was already added.
type saturatedFactory struct{ capacity uint64 }

func (f *saturatedFactory) New(capacity uint64, _ float64) seenset.BloomFilter {
	f.capacity = capacity
	return saturated{}
}

type saturated struct{}

func (saturated) TestOrAdd(string) bool { return true }

func TestAnalyze_DistinctCountUsesBloomFilter(t *testing.T) {
	in := writeFile(t, t.TempDir(), "list.txt", "a.com\nb.com\n# c\n")
	f := &saturatedFactory{}
	e := New(Options{Logger: log.NewNoopLogger(), Bloom: f})

	st, err := e.Analyze(in, 5, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.capacity, "filter sized from the line count")
	assert.Equal(t, 2, st.Entries)
	assert.Zero(t, st.DistinctEntries)
	assert.Empty(t, st.TopApex)
}

func TestAnalyze_Missing(t *testing.T) {
	_, err := newTestEngine(0).Analyze(filepath.Join(t.TempDir(), "x"), 5, nil)
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestEntryDomain(t *testing.T) {
	tests := map[string]string{
		"ads.example.com":              "ads.example.com",
		"0.0.0.0 ads.example.com":      "ads.example.com",
		"||ads.example.com^":           "ads.example.com",
		"||ads.example.com^$important": "ads.example.com",
	}
	for in, want := range tests {
		got, ok := entryDomain(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := entryDomain("@@||allow.example^")
	assert.False(t, ok)
}
