package log

// Sink adapts a Logger to the progress/log sink contract used by the
// transform, merge and fetch operations. Progress is logged at debug level,
// status lines at info level.
type Sink struct {
	logger Logger
}

// NewSink wraps l as a sink. A nil logger falls back to the global logger.
func NewSink(l Logger) *Sink {
	if l == nil {
		l = GetLogger()
	}
	return &Sink{logger: l}
}

func (s *Sink) OnProgress(percent float64, msg string) {
	s.logger.Debug(map[string]any{"percent": percent}, msg)
}

func (s *Sink) OnLog(msg string) {
	s.logger.Info(nil, msg)
}

// OnFileLog attaches the file name as a structured field.
func (s *Sink) OnFileLog(msg, file string) {
	s.logger.Info(map[string]any{"file": file}, msg)
}
