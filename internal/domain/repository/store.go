package repository

// Store combines all repository interfaces
type Store interface {
	ItemRepository
	AttemptRepository

	// Close closes the database connection
	Close() error
}
