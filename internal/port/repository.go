package port

import (
	"github.com/vertextoedge/romhustler-mirror/internal/domain/repository"
)

// ItemRepository is an alias to domain repository interface
type ItemRepository = repository.ItemRepository

// AttemptRepository is an alias to domain repository interface
type AttemptRepository = repository.AttemptRepository

// Store is an alias to domain repository interface
type Store = repository.Store
