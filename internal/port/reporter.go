package port

// ProgressReporter forwards run progress to the host mirror process
type ProgressReporter interface {
	// Progress reports overall completion in percent (0-100)
	Progress(percent int) error

	// ErrorOccurred reports a fatal failure of the run
	ErrorOccurred(info string) error

	Close() error
}
