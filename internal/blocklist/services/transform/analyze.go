package transform

import (
	"sort"
	"strings"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/utils"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"gitlab.com/tozd/go/errors"
)

// ApexCount is the number of entries sharing one registrable domain.
type ApexCount struct {
	Apex  string
	Count int
}

// Stats describes the composition of a blocklist file.
type Stats struct {
	TotalLines   int
	BlankLines   int
	CommentLines int
	Entries      int
	// DistinctEntries is estimated with a Bloom filter and may undercount
	// by about one entry in ten thousand.
	DistinctEntries int
	// TopApex holds the most frequent registrable domains, highest first.
	TopApex []ApexCount
}

// Analyze reads inputPath once after counting it and classifies every line.
// topN bounds the length of Stats.TopApex; zero disables apex grouping.
func (e *Engine) Analyze(inputPath string, topN int, sink domain.Sink) (Stats, error) {
	sink = sinkOrNop(sink)
	logger := e.logger().With(map[string]any{"input": inputPath})

	if err := checkInput(inputPath); err != nil {
		return Stats{}, e.fail(sink, logger, err)
	}
	total, err := CountLines(inputPath)
	if err != nil {
		return Stats{}, e.fail(sink, logger, errors.Errorf("counting lines: %w", err))
	}
	sink.OnLog(printer.Sprintf("Total lines to process: %d", total))

	in, err := OpenLines(inputPath)
	if err != nil {
		return Stats{}, e.fail(sink, logger, err)
	}
	defer in.Close()

	st := Stats{TotalLines: total}
	seen := e.newEstimator(total)
	apexes := map[string]int{}
	batch := e.batchSize()
	processed := 0
	for {
		line, ok, err := in.Next()
		if err != nil {
			return Stats{}, e.fail(sink, logger, errors.Errorf("reading input: %w", err))
		}
		if !ok {
			break
		}
		processed++

		s := strings.TrimSpace(line)
		switch {
		case s == "":
			st.BlankLines++
		case domain.IsCommentOrBlank(s):
			st.CommentLines++
		default:
			st.Entries++
			if seen.Add(s) {
				st.DistinctEntries++
				if topN > 0 {
					if d, ok := entryDomain(s); ok {
						apexes[utils.ApexDomain(d)]++
					}
				}
			}
		}

		if processed%batch == 0 && total > 0 {
			sink.OnProgress(percent(processed, total), printer.Sprintf("Processed %d lines...", processed))
		}
	}

	st.TopApex = topApex(apexes, topN)
	sink.OnProgress(100, "Complete")
	return st, nil
}

// entryDomain extracts the bare domain from an entry in either dialect.
func entryDomain(line string) (string, bool) {
	if v, ok := domain.ToAdGuard(line); ok {
		return domain.ToPiHole(v)
	}
	return domain.ToPiHole(line)
}

func topApex(counts map[string]int, n int) []ApexCount {
	if n <= 0 || len(counts) == 0 {
		return nil
	}
	out := make([]ApexCount, 0, len(counts))
	for apex, c := range counts {
		out = append(out, ApexCount{Apex: apex, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Apex < out[j].Apex
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
