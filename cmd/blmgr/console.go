package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	errorColor = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	fileColor  = color.New(color.FgCyan)
)

// consoleSink renders engine notifications on a terminal: log lines are
// printed as they arrive, progress drives a pterm progress bar.
type consoleSink struct {
	out      io.Writer
	progress bool

	bar  *pterm.ProgressbarPrinter
	last int
}

func newConsoleSink(out io.Writer, progress bool) *consoleSink {
	return &consoleSink{out: out, progress: progress}
}

func (s *consoleSink) OnProgress(percent float64, msg string) {
	if !s.progress {
		return
	}
	if s.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle(msg).
			WithWriter(s.out).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			s.progress = false
			return
		}
		s.bar = bar
	}

	p := int(percent)
	if p > s.last {
		s.bar.Add(p - s.last)
		s.last = p
	}
	s.bar.UpdateTitle(msg)
	if p >= 100 {
		s.Close()
	}
}

func (s *consoleSink) OnLog(msg string) {
	switch {
	case strings.HasPrefix(msg, "Error"):
		errorColor.Fprintln(s.out, msg)
	case strings.HasPrefix(msg, "Warning"), strings.HasPrefix(msg, "No "):
		warnColor.Fprintln(s.out, msg)
	default:
		fmt.Fprintln(s.out, msg)
	}
}

func (s *consoleSink) OnFileLog(msg, file string) {
	s.OnLog(strings.Replace(msg, file, fileColor.Sprint(file), 1))
}

// Close stops the progress bar, if one is running.
func (s *consoleSink) Close() {
	if s.bar != nil {
		_, _ = s.bar.Stop()
		s.bar = nil
		s.last = 0
	}
}
