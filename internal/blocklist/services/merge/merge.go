// Package merge combines every blocklist under a directory tree into one
// deduplicated file.
package merge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/transform"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultPattern selects the files merged when no pattern is given.
const DefaultPattern = "*.txt"

var (
	// ErrNoFilesMatched is returned when discovery finds nothing to merge.
	ErrNoFilesMatched = errors.Base("no files matched")
	// ErrInputNotFound is returned when the source directory does not exist.
	ErrInputNotFound = transform.ErrInputNotFound
)

// Result summarizes a merge run.
type Result struct {
	FilesProcessed int
	// TotalLines is the sum of the per-file counting pass.
	TotalLines  int
	UniqueLines int
	OK          bool
}

// Merger merges files into one deduplicated output.
type Merger struct {
	BatchSize int
	Logger    log.Logger
}

// New returns a Merger with default batch size and logger.
func New() *Merger {
	return &Merger{
		BatchSize: transform.DefaultBatchSize,
		Logger:    log.Component("merge"),
	}
}

var printer = message.NewPrinter(language.English)

// Discover returns the regular files in dir matching pattern, first those
// directly inside dir, then those in any subdirectory. Each file appears once.
// Hidden files and anything under a hidden directory are skipped.
func Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", ErrInputNotFound, dir)
		}
		return nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}

	fsys := os.DirFS(dir)
	direct, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, errors.Errorf("invalid pattern %q: %w", pattern, err)
	}
	nested, err := doublestar.Glob(fsys, "**/"+pattern)
	if err != nil {
		return nil, errors.Errorf("invalid pattern %q: %w", pattern, err)
	}

	seen := make(map[string]struct{}, len(direct)+len(nested))
	var files []string
	for _, rel := range append(direct, nested...) {
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		if hidden(rel) {
			continue
		}

		p := filepath.Join(dir, filepath.FromSlash(rel))
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, p)
	}

	if len(files) == 0 {
		return nil, errors.Errorf("%w: %q in %s", ErrNoFilesMatched, pattern, dir)
	}
	return files, nil
}

func hidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// MergeAndDedupe writes every distinct trimmed line from the files matching
// pattern under dir to outputPath, in discovery order. A file that cannot be
// counted contributes zero to the total; a file that cannot be read is
// logged and skipped but still counts toward FilesProcessed.
func (m *Merger) MergeAndDedupe(dir, outputPath, pattern string, sink domain.Sink) (Result, error) {
	if sink == nil {
		sink = domain.NopSink()
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	logger := m.logger().With(map[string]any{"dir": dir, "output": outputPath, "pattern": pattern})

	files, err := Discover(dir, pattern)
	if errors.Is(err, ErrNoFilesMatched) {
		sink.OnLog(fmt.Sprintf("No files matching '%s' found in %s", pattern, dir))
		logger.Warn(nil, "no files matched")
		return Result{}, err
	}
	if err != nil {
		return Result{}, m.fail(sink, logger, err)
	}
	files = excludePath(files, outputPath)
	if len(files) == 0 {
		sink.OnLog(fmt.Sprintf("No files matching '%s' found in %s", pattern, dir))
		return Result{}, errors.Errorf("%w: %q in %s", ErrNoFilesMatched, pattern, dir)
	}

	sink.OnLog(fmt.Sprintf("Found %d files to process", len(files)))
	for _, f := range files {
		sink.OnLog("  - " + filepath.Base(f))
	}

	counts := make([]int, len(files))
	total := 0
	for i, f := range files {
		n, err := transform.CountLines(f)
		if err != nil {
			sink.OnLog(fmt.Sprintf("Warning: Could not count lines in %s: %v", filepath.Base(f), err))
			logger.Warn(map[string]any{"file": f, "error": err.Error()}, "count failed")
			continue
		}
		counts[i] = n
		total += n
	}
	sink.OnLog(printer.Sprintf("Total lines to process: %d", total))

	out, err := os.Create(outputPath)
	if err != nil {
		return Result{}, m.fail(sink, logger, errors.Errorf("creating output: %w", err))
	}
	w := bufio.NewWriterSize(out, 64*1024)

	st := &mergeState{
		seen:  seenset.New(total),
		w:     w,
		sink:  sink,
		total: total,
		batch: m.batchSize(),
	}
	processed := 0
	for i, f := range files {
		processed++
		name := filepath.Base(f)
		sink.OnLog(printer.Sprintf("Processing %s (%d lines)...", name, counts[i]))
		if err := st.mergeFile(f); err != nil {
			if errors.Is(err, errWrite) {
				out.Close()
				return Result{}, m.fail(sink, logger, err)
			}
			sink.OnLog(fmt.Sprintf("Error reading %s: %v", name, err))
			logger.Warn(map[string]any{"file": f, "error": err.Error()}, "read failed, skipping")
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return Result{}, m.fail(sink, logger, errors.WithStack(err))
	}
	if err := out.Close(); err != nil {
		return Result{}, m.fail(sink, logger, errors.WithStack(err))
	}

	sink.OnProgress(100, "Complete")
	logger.Debug(map[string]any{"files": processed, "total": total, "unique": st.unique}, "merge complete")
	return Result{FilesProcessed: processed, TotalLines: total, UniqueLines: st.unique, OK: true}, nil
}

var errWrite = errors.Base("write failed")

// mergeState carries the run-wide seen set and counters across files.
type mergeState struct {
	seen      *seenset.Set
	w         *bufio.Writer
	sink      domain.Sink
	total     int
	batch     int
	processed int
	unique    int
}

func (s *mergeState) mergeFile(path string) error {
	in, err := transform.OpenLines(path)
	if err != nil {
		return err
	}
	defer in.Close()

	for {
		line, ok, err := in.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		s.processed++

		if t := strings.TrimSpace(line); t != "" && s.seen.Add(t) {
			if _, err := s.w.WriteString(t + "\n"); err != nil {
				return errors.Errorf("%w: %s", errWrite, err.Error())
			}
			s.unique++
		}

		if s.processed%s.batch == 0 && s.total > 0 {
			p := float64(s.processed) / float64(s.total) * 100
			s.sink.OnProgress(min(p, 100), printer.Sprintf("Processed %d/%d lines...", s.processed, s.total))
		}
	}
}

// excludePath drops the output file from the inputs so a merge into the
// source tree never reads its own output.
func excludePath(files []string, path string) []string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return files
	}
	out := files[:0]
	for _, f := range files {
		if fa, err := filepath.Abs(f); err == nil && fa == abs {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (m *Merger) fail(sink domain.Sink, logger log.Logger, err error) error {
	sink.OnLog("Error: " + err.Error())
	logger.Error(map[string]any{"error": err.Error()}, "merge failed")
	return err
}

func (m *Merger) batchSize() int {
	if m.BatchSize <= 0 {
		return transform.DefaultBatchSize
	}
	return m.BatchSize
}

func (m *Merger) logger() log.Logger {
	if m.Logger == nil {
		return log.NewNoopLogger()
	}
	return m.Logger
}
