package sqlite

import (
	"database/sql"
	"time"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

// RecordAttempt stores a finished attempt
func (s *Store) RecordAttempt(rec *domain.AttemptRecord) error {
	query := `
		INSERT INTO attempts (id, game_id, mode, resumed, outcome, bytes, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	_, err := s.db.Exec(query,
		rec.ID, rec.GameID, rec.Mode, rec.Resumed, rec.Outcome, rec.Bytes,
		errMsg, rec.StartedAt, rec.FinishedAt)
	return err
}

// ListAttempts returns the attempts of a game, newest first
func (s *Store) ListAttempts(gameID string) ([]*domain.AttemptRecord, error) {
	query := `
		SELECT id, game_id, mode, resumed, outcome, bytes, error, started_at, finished_at
		FROM attempts
		WHERE game_id = ?
		ORDER BY finished_at DESC
	`

	rows, err := s.db.Query(query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AttemptRecord
	for rows.Next() {
		rec := &domain.AttemptRecord{}
		var errMsg sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.GameID, &rec.Mode, &rec.Resumed, &rec.Outcome, &rec.Bytes,
			&errMsg, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CleanupOldAttempts removes attempts older than the specified duration
func (s *Store) CleanupOldAttempts(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec("DELETE FROM attempts WHERE finished_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}
