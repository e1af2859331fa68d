package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestPartName(t *testing.T) {
	assert.Equal(t, "list_part001.txt", PartName("list", 1))
	assert.Equal(t, "list_part012.txt", PartName("list", 12))
	assert.Equal(t, "list_part1234.txt", PartName("list", 1234))
}

func TestSplit_Reconstruction(t *testing.T) {
	tests := []struct {
		name     string
		lines    int
		cap      int
		wantPart int
	}{
		{"exact multiple", 10, 5, 2},
		{"short last part", 11, 5, 3},
		{"single part", 3, 5, 1},
		{"cap of one", 4, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var want []string
			var sb strings.Builder
			for i := 0; i < tt.lines; i++ {
				l := fmt.Sprintf("d%02d.example", i)
				if i%4 == 3 {
					l = "# kept comment"
				}
				want = append(want, l)
				sb.WriteString(l + "\r\n")
			}
			in := writeFile(t, dir, "big.list.txt", sb.String())
			outDir := filepath.Join(dir, "parts")
			sink := &recordingSink{}

			res, err := newTestEngine(0).Split(in, outDir, tt.cap, sink)
			require.NoError(t, err)
			assert.Equal(t, SplitResult{FilesCreated: tt.wantPart, TotalLines: tt.lines, OK: true}, res)

			var got []string
			sum := 0
			for i := 1; i <= tt.wantPart; i++ {
				lines := readLines(t, filepath.Join(outDir, PartName("big.list", i)))
				require.GreaterOrEqual(t, len(lines), 3)
				assert.Equal(t, fmt.Sprintf("# big.list - Part %d of %d", i, tt.wantPart), lines[0])
				assert.Equal(t, "# Generated from: big.list.txt", lines[1])
				body := lines[3:]
				assert.Equal(t, fmt.Sprintf("# Lines: %d", len(body)), lines[2])
				assert.LessOrEqual(t, len(body), tt.cap)
				sum += len(body)
				got = append(got, body...)
			}
			assert.Equal(t, tt.lines, sum)
			assert.Equal(t, want, got)

			_, err = os.Stat(filepath.Join(outDir, PartName("big.list", tt.wantPart+1)))
			assert.True(t, os.IsNotExist(err))

			assert.Contains(t, sink.logs, fmt.Sprintf("Will create %d files", tt.wantPart))
			assert.Contains(t, sink.logs, fmt.Sprintf("Created part %d", tt.wantPart))
			assert.Equal(t, progressCall{100, "Complete"}, sink.progress[len(sink.progress)-1])
		})
	}
}

func TestSplit_DefaultCapAndEmptyInput(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "empty.txt", "")

	res, err := newTestEngine(0).Split(in, filepath.Join(dir, "out"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, SplitResult{OK: true}, res)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplit_Progress(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", strings.Repeat("x.com\n", 20))
	sink := &recordingSink{}

	_, err := newTestEngine(5).Split(in, dir, 7, sink)
	require.NoError(t, err)
	require.Len(t, sink.progress, 5)
	assert.Equal(t, progressCall{25, "Processing... 5/20 lines"}, sink.progress[0])
	assert.Equal(t, progressCall{100, "Complete"}, sink.progress[4])
}

func TestSplit_InputNotFound(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "parts")

	res, err := newTestEngine(0).Split(filepath.Join(dir, "nope.txt"), outDir, 10, nil)
	assert.True(t, errors.Is(err, ErrInputNotFound))
	assert.False(t, res.OK)
	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}
