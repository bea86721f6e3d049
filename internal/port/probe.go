package port

import "context"

// Observation is one poll of a download in progress
type Observation struct {
	// PartialName is the in-progress file name; empty when none exists
	PartialName string

	// PartialSize is the size (or progress proxy) of the partial file
	PartialSize int64

	// CompletePath is a finished, non-partial file; empty when none exists
	CompletePath string
}

// DownloadProbe samples the state of a browser-initiated download
type DownloadProbe interface {
	Observe(ctx context.Context) (Observation, error)
}
