package sqlite

import (
	"database/sql"
	"time"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

const itemColumns = `game_id, status, artifact_name, file_path, attempts, last_error, checked_at, updated_at`

// GetItem retrieves an item by game id
func (s *Store) GetItem(gameID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE game_id = ?`
	return s.scanItem(s.db.QueryRow(query, gameID))
}

// SaveItem inserts or updates an item
func (s *Store) SaveItem(item *domain.Item) error {
	query := `
		INSERT INTO items (game_id, status, artifact_name, file_path, attempts, last_error, checked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			status = excluded.status,
			artifact_name = excluded.artifact_name,
			file_path = excluded.file_path,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			checked_at = excluded.checked_at,
			updated_at = excluded.updated_at
	`

	var artifactName, filePath, lastError sql.NullString
	var checkedAt sql.NullTime

	if item.ArtifactName != "" {
		artifactName = sql.NullString{String: item.ArtifactName, Valid: true}
	}
	if item.FilePath != "" {
		filePath = sql.NullString{String: item.FilePath, Valid: true}
	}
	if item.LastError != "" {
		lastError = sql.NullString{String: item.LastError, Valid: true}
	}
	if item.CheckedAt != nil {
		checkedAt = sql.NullTime{Time: *item.CheckedAt, Valid: true}
	}

	item.UpdatedAt = time.Now()
	_, err := s.db.Exec(query,
		item.GameID, item.Status, artifactName, filePath, item.Attempts,
		lastError, checkedAt, item.UpdatedAt)
	return err
}

// ListByStatus returns all items with the given status
func (s *Store) ListByStatus(status string) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE status = ? ORDER BY game_id`

	rows, err := s.db.Query(query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReleaseInProgressItems resets items stuck in in_progress state
func (s *Store) ReleaseInProgressItems() (int, error) {
	result, err := s.db.Exec(
		`UPDATE items SET status = ?, updated_at = ? WHERE status = ?`,
		domain.ItemStatusPending, time.Now(), domain.ItemStatusInProgress)
	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}

// GetItemStats returns item counts per status
func (s *Store) GetItemStats() (*domain.ItemStats, error) {
	stats := &domain.ItemStats{}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		switch status {
		case domain.ItemStatusDownloaded:
			stats.Downloaded = count
		case domain.ItemStatusNotAvailable:
			stats.NotAvailable = count
		case domain.ItemStatusBadTarget:
			stats.BadTarget = count
		case domain.ItemStatusFailed:
			stats.Failed = count
		case domain.ItemStatusPending, domain.ItemStatusInProgress:
			stats.Pending += count
		}
	}

	return stats, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans a single item row
func (s *Store) scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var artifactName, filePath, lastError sql.NullString
	var checkedAt sql.NullTime

	err := row.Scan(
		&item.GameID, &item.Status, &artifactName, &filePath, &item.Attempts,
		&lastError, &checkedAt, &item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if artifactName.Valid {
		item.ArtifactName = artifactName.String
	}
	if filePath.Valid {
		item.FilePath = filePath.String
	}
	if lastError.Valid {
		item.LastError = lastError.String
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		item.CheckedAt = &t
	}

	return item, nil
}
