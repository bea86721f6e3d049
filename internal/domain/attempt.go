package domain

import (
	"time"

	"github.com/google/uuid"
)

// DownloadAttempt is the watcher's view of one browser-initiated download.
// It lives from the click that starts the download until the artifact is
// finalized or the attempt is abandoned.
type DownloadAttempt struct {
	ID              string
	TargetDirectory string

	// ExpectedArtifactName is known only after the item page was scraped
	ExpectedArtifactName string

	// Polling state
	PartialMarkerFile string
	LastObservedName  string
	LastObservedSize  int64
	StableCount       int
	IdleCount         int
	Polls             int

	StartedAt time.Time
}

// NewDownloadAttempt creates an attempt watching targetDir
func NewDownloadAttempt(targetDir, expectedName string) *DownloadAttempt {
	return &DownloadAttempt{
		ID:                   uuid.NewString(),
		TargetDirectory:      targetDir,
		ExpectedArtifactName: expectedName,
		StartedAt:            time.Now(),
	}
}

// ObservePartial records a partial file sighting and returns true when the
// sighting belongs to a different file than the previous one.
func (a *DownloadAttempt) ObservePartial(name string, size int64) (renamed bool) {
	a.IdleCount = 0
	if name != a.LastObservedName {
		a.PartialMarkerFile = name
		a.LastObservedName = name
		a.LastObservedSize = size
		a.StableCount = 0
		return true
	}
	if size != a.LastObservedSize {
		a.LastObservedSize = size
		a.StableCount = 0
		return false
	}
	a.StableCount++
	return false
}

// ObserveNothing records a poll where no file at all was present
func (a *DownloadAttempt) ObserveNothing() {
	a.IdleCount++
}
