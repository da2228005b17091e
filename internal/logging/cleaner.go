package logging

// WithWorker returns a new Logger with the worker_id field attached.
func (l *Logger) WithWorker(workerID int) *Logger {
	return l.With(map[string]any{"worker_id": workerID})
}

// WithPass returns a new Logger with the pass_id field attached.
func (l *Logger) WithPass(passID uint64) *Logger {
	return l.With(map[string]any{"pass_id": passID})
}
