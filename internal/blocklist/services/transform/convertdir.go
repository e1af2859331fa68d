package transform

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"gitlab.com/tozd/go/errors"
)

// DefaultConvertNames lists the files ConvertDirectory looks for when no
// names are given.
var DefaultConvertNames = []string{
	"BlockList.txt",
	"BlockList_clean.txt",
	"BlockList_unique.txt",
	"Romanian_Complete_Blocklist.txt",
}

// ConvertResult summarizes a directory conversion.
type ConvertResult struct {
	FilesProcessed int
	OK             bool
}

// ConvertDirectory converts each named file found in srcDir into the target
// dialect, writing a file of the same name into dstDir. Missing names are
// skipped. A file that fails to convert is logged and skipped.
func (e *Engine) ConvertDirectory(srcDir, dstDir string, target domain.Dialect, names []string, sink domain.Sink) (ConvertResult, error) {
	sink = sinkOrNop(sink)
	logger := e.logger().With(map[string]any{"source": srcDir, "target": dstDir, "dialect": target.String()})

	if err := checkDir(srcDir); err != nil {
		return ConvertResult{}, e.fail(sink, logger, err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return ConvertResult{}, e.fail(sink, logger, errors.Errorf("creating target directory: %w", err))
	}
	if len(names) == 0 {
		names = DefaultConvertNames
	}

	convert := domain.ConverterFor(target)
	processed := 0
	for _, name := range names {
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); err != nil {
			logger.Debug(map[string]any{"file": name}, "skipping missing file")
			continue
		}

		domain.LogFile(sink, fmt.Sprintf("Converting %s...", name), name)
		kept, err := convertFile(src, filepath.Join(dstDir, name), convert)
		if err != nil {
			sink.OnLog(fmt.Sprintf("Error converting %s: %v", name, err))
			logger.Warn(map[string]any{"file": name, "error": err.Error()}, "conversion failed")
			continue
		}
		logger.Debug(map[string]any{"file": name, "kept": kept}, "converted file")

		processed++
		sink.OnProgress(percent(processed, len(names)), fmt.Sprintf("Converted %d/%d files", processed, len(names)))
	}

	sink.OnProgress(100, "Complete")
	return ConvertResult{FilesProcessed: processed, OK: true}, nil
}

func convertFile(srcPath, dstPath string, convert func(string) (string, bool)) (int, error) {
	in, err := OpenLines(srcPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	w := bufio.NewWriter(out)

	kept := 0
	for {
		line, ok, err := in.Next()
		if err != nil {
			out.Close()
			return kept, err
		}
		if !ok {
			break
		}
		if v, keep := convert(line); keep {
			w.WriteString(v)
			w.WriteByte('\n')
			kept++
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return kept, errors.WithStack(err)
	}
	return kept, errors.WithStack(out.Close())
}
