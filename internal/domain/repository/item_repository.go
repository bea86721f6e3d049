package repository

import (
	"time"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

// ItemRepository defines the interface for the per-item ledger
type ItemRepository interface {
	// GetItem retrieves an item by game id
	// Returns nil if the item has never been seen
	GetItem(gameID string) (*domain.Item, error)

	// SaveItem inserts or updates an item
	SaveItem(item *domain.Item) error

	// ListByStatus returns all items with the given status
	ListByStatus(status string) ([]*domain.Item, error)

	// ReleaseInProgressItems resets items left in_progress by a crashed run
	ReleaseInProgressItems() (int, error)

	// GetItemStats returns counts per status
	GetItemStats() (*domain.ItemStats, error)
}

// AttemptRepository defines the interface for the attempt history
type AttemptRepository interface {
	// RecordAttempt stores a finished attempt
	RecordAttempt(rec *domain.AttemptRecord) error

	// ListAttempts returns the attempts of a game, newest first
	ListAttempts(gameID string) ([]*domain.AttemptRecord, error)

	// CleanupOldAttempts removes attempts that finished before now-olderThan
	CleanupOldAttempts(olderThan time.Duration) (int, error)
}
