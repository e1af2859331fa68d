package domain

// Sink receives progress and status notifications from long-running
// operations. Calls are made synchronously from the processing loop, so
// implementations must return quickly.
type Sink interface {
	// OnProgress reports percent complete in [0,100] with a status line.
	OnProgress(percent float64, msg string)
	// OnLog reports a free-form, human-readable status line.
	OnLog(msg string)
}

// FileLogger is implemented by sinks that want the file name a log line
// refers to as a separate token, e.g. to highlight it.
type FileLogger interface {
	OnFileLog(msg, file string)
}

// SinkFuncs adapts plain functions to a Sink. Nil functions are skipped.
type SinkFuncs struct {
	Progress func(percent float64, msg string)
	Log      func(msg string)
}

func (f SinkFuncs) OnProgress(percent float64, msg string) {
	if f.Progress != nil {
		f.Progress(percent, msg)
	}
}

func (f SinkFuncs) OnLog(msg string) {
	if f.Log != nil {
		f.Log(msg)
	}
}

// NopSink returns a Sink that discards everything.
func NopSink() Sink {
	return SinkFuncs{}
}

// LogFile sends msg to s, passing file as a separate token when s supports it.
func LogFile(s Sink, msg, file string) {
	if fl, ok := s.(FileLogger); ok && file != "" {
		fl.OnFileLog(msg, file)
		return
	}
	s.OnLog(msg)
}
