package transform

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"gitlab.com/tozd/go/errors"
)

// DefaultSplitLines is the part size used when Split is given a non-positive cap.
const DefaultSplitLines = 500000

// SplitResult summarizes a split.
type SplitResult struct {
	FilesCreated int
	TotalLines   int
	OK           bool
}

// PartName returns the file name of the 1-based part index for base.
func PartName(base string, index int) string {
	return fmt.Sprintf("%s_part%03d.txt", base, index)
}

// Split distributes the lines of inputPath over numbered part files in
// outputDir, each holding at most maxLines lines after a three-line header.
// Lines are copied unchanged apart from their terminator, which becomes "\n".
func (e *Engine) Split(inputPath, outputDir string, maxLines int, sink domain.Sink) (SplitResult, error) {
	sink = sinkOrNop(sink)
	logger := e.logger().With(map[string]any{"input": inputPath, "output_dir": outputDir})
	if maxLines <= 0 {
		maxLines = DefaultSplitLines
	}

	if err := checkInput(inputPath); err != nil {
		return SplitResult{}, e.fail(sink, logger, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return SplitResult{}, e.fail(sink, logger, errors.Errorf("creating output directory: %w", err))
	}

	sink.OnLog("Counting lines...")
	total, err := CountLines(inputPath)
	if err != nil {
		return SplitResult{}, e.fail(sink, logger, errors.Errorf("counting lines: %w", err))
	}
	parts := (total + maxLines - 1) / maxLines
	sink.OnLog(printer.Sprintf("Total lines: %d", total))
	sink.OnLog(printer.Sprintf("Splitting into files of ~%d lines each...", maxLines))
	sink.OnLog(fmt.Sprintf("Will create %d files", parts))

	fileName := filepath.Base(inputPath)
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	in, err := OpenLines(inputPath)
	if err != nil {
		return SplitResult{}, e.fail(sink, logger, err)
	}
	defer in.Close()

	var (
		out      *os.File
		w        *bufio.Writer
		created  int
		part     int
		count    int
		batch    = e.batchSize()
		progress int
	)

	closePart := func() error {
		if out == nil {
			return nil
		}
		err := w.Flush()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		out = nil
		if err != nil {
			return errors.WithStack(err)
		}
		created++
		sink.OnLog(fmt.Sprintf("Created part %d", part))
		return nil
	}
	failed := func(err error) (SplitResult, error) {
		if out != nil {
			out.Close()
		}
		return SplitResult{FilesCreated: created, TotalLines: total}, e.fail(sink, logger, err)
	}

	for {
		line, ok, err := in.Next()
		if err != nil {
			return failed(errors.Errorf("reading input: %w", err))
		}
		if !ok {
			break
		}
		progress++

		if out == nil || count >= maxLines {
			if err := closePart(); err != nil {
				return failed(err)
			}
			part++
			out, err = os.Create(filepath.Join(outputDir, PartName(base, part)))
			if err != nil {
				return failed(errors.Errorf("creating part %d: %w", part, err))
			}
			w = bufio.NewWriterSize(out, 64*1024)
			remaining := min(maxLines, total-progress+1)
			fmt.Fprintf(w, "# %s - Part %d of %d\n", base, part, parts)
			fmt.Fprintf(w, "# Generated from: %s\n", fileName)
			printer.Fprintf(w, "# Lines: %d\n", remaining)
			count = 0
		}

		if _, err := w.WriteString(line + "\n"); err != nil {
			return failed(errors.WithStack(err))
		}
		count++

		if progress%batch == 0 && total > 0 {
			sink.OnProgress(percent(progress, total), printer.Sprintf("Processing... %d/%d lines", progress, total))
		}
	}

	if err := closePart(); err != nil {
		return failed(err)
	}

	sink.OnProgress(100, "Complete")
	logger.Debug(map[string]any{"parts": created, "lines": total}, "split complete")
	return SplitResult{FilesCreated: created, TotalLines: total, OK: true}, nil
}
