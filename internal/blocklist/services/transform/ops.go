package transform

import (
	"strings"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
)

// Dedupe writes each distinct trimmed line of inputPath once, in order of
// first appearance. Blank lines are dropped.
func (e *Engine) Dedupe(inputPath, outputPath string, sink domain.Sink) (Result, error) {
	return e.run(inputPath, outputPath, func(total int) DecideFunc {
		seen := seenset.New(total)
		return func(line string) (string, bool) {
			s := strings.TrimSpace(line)
			if s == "" {
				return "", false
			}
			return s, seen.Add(s)
		}
	}, sink)
}

// Clean drops comments and blank lines, writing the remaining lines trimmed.
func (e *Engine) Clean(inputPath, outputPath string, sink domain.Sink) (Result, error) {
	return e.Run(inputPath, outputPath, cleanLine, sink)
}

func cleanLine(line string) (string, bool) {
	if domain.IsCommentOrBlank(line) {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Convert rewrites every line of inputPath into the target dialect, dropping
// lines that do not convert.
func (e *Engine) Convert(inputPath, outputPath string, target domain.Dialect, sink domain.Sink) (Result, error) {
	return e.Run(inputPath, outputPath, DecideFunc(domain.ConverterFor(target)), sink)
}
