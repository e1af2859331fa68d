// Package transform implements the two-pass streaming line transformer and
// the operations built on it: dedupe, clean, convert, split and analyze.
package transform

import (
	"bufio"
	"os"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/seenset/bloom"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultBatchSize is the number of lines between progress notifications.
const DefaultBatchSize = 10000

// DecideFunc maps an input line to an output line. The second result reports
// whether the line is kept.
type DecideFunc func(line string) (string, bool)

// Result summarizes a single-file transform.
type Result struct {
	// LinesRead is the line count from the counting pass.
	LinesRead int
	// LinesKept is the number of lines written to the output.
	LinesKept int
	OK        bool
}

// Options configures an Engine.
type Options struct {
	BatchSize int
	Logger    log.Logger
	// Bloom backs the distinct-entry estimate in Analyze. Nil selects the
	// bits-and-blooms backed factory.
	Bloom seenset.BloomFactory
}

// Engine runs file-to-file transforms. The zero value is usable.
type Engine struct {
	BatchSize int
	Logger    log.Logger

	bloom seenset.BloomFactory
}

// New returns an Engine configured from opts.
func New(opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Component("transform")
	}
	if opts.Bloom == nil {
		opts.Bloom = bloom.NewFactory()
	}
	return &Engine{BatchSize: opts.BatchSize, Logger: opts.Logger, bloom: opts.Bloom}
}

var printer = message.NewPrinter(language.English)

// Run streams inputPath to outputPath, writing each line decide keeps.
// The input is counted first so progress can be reported as a percentage.
func (e *Engine) Run(inputPath, outputPath string, decide DecideFunc, sink domain.Sink) (Result, error) {
	return e.run(inputPath, outputPath, func(int) DecideFunc { return decide }, sink)
}

// run is Run with the decide function built after the counting pass, so
// stateful deciders can be sized from the total.
func (e *Engine) run(inputPath, outputPath string, build func(total int) DecideFunc, sink domain.Sink) (Result, error) {
	sink = sinkOrNop(sink)
	logger := e.logger().With(map[string]any{"input": inputPath, "output": outputPath})

	if err := checkInput(inputPath); err != nil {
		return Result{}, e.fail(sink, logger, err)
	}

	total, err := CountLines(inputPath)
	if err != nil {
		return Result{}, e.fail(sink, logger, errors.Errorf("counting lines: %w", err))
	}
	sink.OnLog(printer.Sprintf("Total lines to process: %d", total))
	logger.Debug(map[string]any{"lines": total}, "counted input")

	decide := build(total)

	in, err := OpenLines(inputPath)
	if err != nil {
		return Result{}, e.fail(sink, logger, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return Result{}, e.fail(sink, logger, errors.Errorf("creating output: %w", err))
	}
	w := bufio.NewWriterSize(out, 64*1024)

	batch := e.batchSize()
	processed, kept := 0, 0
	for {
		line, ok, err := in.Next()
		if err != nil {
			out.Close()
			return Result{}, e.fail(sink, logger, errors.Errorf("reading input: %w", err))
		}
		if !ok {
			break
		}
		processed++

		if v, keep := decide(line); keep {
			if _, err := w.WriteString(v); err != nil {
				out.Close()
				return Result{}, e.fail(sink, logger, errors.WithStack(err))
			}
			if err := w.WriteByte('\n'); err != nil {
				out.Close()
				return Result{}, e.fail(sink, logger, errors.WithStack(err))
			}
			kept++
		}

		if processed%batch == 0 && total > 0 {
			sink.OnProgress(percent(processed, total), printer.Sprintf("Processed %d lines...", processed))
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return Result{}, e.fail(sink, logger, errors.WithStack(err))
	}
	if err := out.Close(); err != nil {
		return Result{}, e.fail(sink, logger, errors.WithStack(err))
	}

	sink.OnProgress(100, "Complete")
	logger.Debug(map[string]any{"read": total, "kept": kept}, "transform complete")
	return Result{LinesRead: total, LinesKept: kept, OK: true}, nil
}

// fail reports err through the sink and the logger and returns it.
func (e *Engine) fail(sink domain.Sink, logger log.Logger, err error) error {
	sink.OnLog("Error: " + err.Error())
	logger.Error(map[string]any{"error": err.Error()}, "transform failed")
	return err
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) logger() log.Logger {
	if e.Logger == nil {
		return log.NewNoopLogger()
	}
	return e.Logger
}

func (e *Engine) newEstimator(capacity int) *seenset.Estimator {
	if e.bloom == nil {
		return seenset.NewEstimator(capacity, seenset.DefaultFPRate, bloom.NewFactory())
	}
	return seenset.NewEstimator(capacity, seenset.DefaultFPRate, e.bloom)
}

func sinkOrNop(s domain.Sink) domain.Sink {
	if s == nil {
		return domain.NopSink()
	}
	return s
}

// percent returns done/total*100 clamped to [0,100].
func percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}
