package domain

import "time"

// Item status constants
const (
	ItemStatusPending      = "pending"
	ItemStatusInProgress   = "in_progress"
	ItemStatusDownloaded   = "downloaded"
	ItemStatusNotAvailable = "not_available"
	ItemStatusBadTarget    = "bad_target"
	ItemStatusFailed       = "failed"
)

// Download modes
const (
	ModeBrowser = "browser"
	ModeFetch   = "fetch"
)

// Item is the ledger record of one catalog entry
type Item struct {
	GameID       string
	Status       string
	ArtifactName string
	FilePath     string
	Attempts     int
	LastError    string

	CheckedAt *time.Time
	UpdatedAt time.Time
}

// NewItem creates a pending ledger record
func NewItem(gameID string) *Item {
	return &Item{GameID: gameID, Status: ItemStatusPending}
}

// MarkInProgress marks the item as being worked on
func (i *Item) MarkInProgress() {
	i.Status = ItemStatusInProgress
	i.Attempts++
}

// MarkDownloaded records a finalized artifact
func (i *Item) MarkDownloaded(artifactName, filePath string) {
	now := time.Now()
	i.Status = ItemStatusDownloaded
	i.ArtifactName = artifactName
	i.FilePath = filePath
	i.LastError = ""
	i.CheckedAt = &now
}

// MarkChecked records a refresh check that found the mirrored copy current
func (i *Item) MarkChecked() {
	now := time.Now()
	i.Status = ItemStatusDownloaded
	i.CheckedAt = &now
	i.LastError = ""
}

// MarkSkipped records an expected, non-fatal outcome (bad target, not available)
func (i *Item) MarkSkipped(status string, reason string) {
	now := time.Now()
	i.Status = status
	i.LastError = reason
	i.CheckedAt = &now
}

// MarkKept records a failed re-download of an item whose mirrored copy
// is still in place
func (i *Item) MarkKept(reason string) {
	now := time.Now()
	i.Status = ItemStatusDownloaded
	i.LastError = reason
	i.CheckedAt = &now
}

// MarkFailed records a failed attempt
func (i *Item) MarkFailed(err string) {
	now := time.Now()
	i.Status = ItemStatusFailed
	i.LastError = err
	i.CheckedAt = &now
}

// DueForRecheck reports whether a skipped item should be tried again
func (i *Item) DueForRecheck(after time.Duration, now time.Time) bool {
	switch i.Status {
	case ItemStatusNotAvailable, ItemStatusBadTarget:
		if i.CheckedAt == nil {
			return true
		}
		return now.Sub(*i.CheckedAt) >= after
	default:
		return true
	}
}

// AttemptRecord is one row of the attempt history
type AttemptRecord struct {
	ID         string
	GameID     string
	Mode       string
	Resumed    bool
	Outcome    string
	Bytes      int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ItemStats summarizes the ledger
type ItemStats struct {
	Downloaded   int
	NotAvailable int
	BadTarget    int
	Failed       int
	Pending      int
}
