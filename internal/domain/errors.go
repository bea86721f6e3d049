package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pauses before another whole attempt
const (
	StallRetryAfter    = 30 * time.Second
	TransferRetryAfter = 10 * time.Second
)

// Common domain errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientSpace = errors.New("insufficient space")

	// Item outcome errors
	ErrBadTarget       = errors.New("page redirected away from requested target")
	ErrNotAvailable    = errors.New("download is disabled for this item")
	ErrRemoteNotFound  = errors.New("remote artifact not found")
	ErrDownloadStalled = errors.New("download stalled")
	ErrTransferFailed  = errors.New("transfer failed")

	// ErrReporterFailed means the control socket could not be written.
	// It is fatal for the run and never retried.
	ErrReporterFailed = errors.New("control socket write failed")
)

// SkippableError represents an error that can be logged and skipped.
// Processing can continue with the next item when this error occurs.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// RetryableError represents an error that should trigger a retry of the
// whole download attempt.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// TransferError is returned when the external fetch tool exits with a code
// that is not recognized as success or "not found".
type TransferError struct {
	ExitCode int
	Output   string
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("fetch tool exited with code %d", e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap lets errors.Is match ErrTransferFailed
func (e *TransferError) Unwrap() error {
	return ErrTransferFailed
}

// NewBadTargetError reports that requestedURL ended up somewhere else.
func NewBadTargetError(requestedURL, currentURL string) *SkippableError {
	return NewSkippableError(ErrBadTarget, fmt.Sprintf("requested %s, landed on %s", requestedURL, currentURL))
}

// NewNotAvailableError reports an item whose download is disabled by the site.
func NewNotAvailableError(gameID string) *SkippableError {
	return NewSkippableError(ErrNotAvailable, "game "+gameID)
}

// NewRemoteNotFoundError reports an artifact URL the fetch tool could not find.
func NewRemoteNotFoundError(url string) *SkippableError {
	return NewSkippableError(ErrRemoteNotFound, url)
}

// NewStalledError reports a download the watcher gave up on.
func NewStalledError(reason string) *RetryableError {
	return NewRetryableError(fmt.Errorf("%w: %s", ErrDownloadStalled, reason), StallRetryAfter)
}

// NewTransferError wraps a fetch tool failure as retryable.
func NewTransferError(exitCode int, output string) *RetryableError {
	return NewRetryableError(&TransferError{ExitCode: exitCode, Output: output}, TransferRetryAfter)
}
