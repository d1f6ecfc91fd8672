package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

// BeginTransfer inserts an in-progress record and sets its ID
func (s *Store) BeginTransfer(rec *domain.TransferRecord) error {
	query := `
		INSERT INTO transfers (
			run_id, file_id, filename, dest_path, url, declared_size, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		rec.RunID, rec.FileID, rec.Filename, rec.DestPath, rec.URL,
		rec.DeclaredSize, rec.Status, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	rec.ID = id
	return nil
}

// FinishTransfer stores the final state of a record
func (s *Store) FinishTransfer(rec *domain.TransferRecord) error {
	query := `
		UPDATE transfers
		SET declared_size = ?, status = ?, bytes_downloaded = ?, resumed_from = ?,
			passes = ?, error_counts = ?, last_error = ?, finished_at = ?
		WHERE id = ?
	`

	errorCounts, err := encodeErrors(rec.Errors)
	if err != nil {
		return err
	}

	var lastError sql.NullString
	var finishedAt sql.NullTime

	if rec.LastError != "" {
		lastError = sql.NullString{String: rec.LastError, Valid: true}
	}
	if rec.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *rec.FinishedAt, Valid: true}
	}

	result, err := s.db.Exec(query,
		rec.DeclaredSize, rec.Status, rec.BytesDownloaded, rec.ResumedFrom,
		rec.Passes, errorCounts, lastError, finishedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transfer %d not found", rec.ID)
	}
	return nil
}

// ListRun returns the records of a run in insertion order
func (s *Store) ListRun(runID string) ([]*domain.TransferRecord, error) {
	query := `
		SELECT id, run_id, file_id, filename, dest_path, url, declared_size,
			   status, bytes_downloaded, resumed_from, passes, error_counts,
			   last_error, started_at, finished_at
		FROM transfers
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetRunStats aggregates the records of a run by status
func (s *Store) GetRunStats(runID string) (*domain.RunStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(bytes_downloaded), 0)
		FROM transfers
		WHERE run_id = ?
		GROUP BY status
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.RunStats{}
	for rows.Next() {
		var status string
		var count int
		var bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return nil, err
		}

		stats.TotalBytes += bytes
		switch status {
		case domain.TransferStatusComplete:
			stats.Complete = count
		case domain.TransferStatusSkipped:
			stats.Skipped = count
		case domain.TransferStatusFailed:
			stats.Failed = count
		case domain.TransferStatusInterrupted:
			stats.Interrupted = count
		case domain.TransferStatusInProgress:
			stats.InProgress = count
		}
	}

	return stats, rows.Err()
}

// scanTransfer scans a transfer row
func scanTransfer(rows *sql.Rows) (*domain.TransferRecord, error) {
	rec := &domain.TransferRecord{}
	var errorCounts, lastError sql.NullString
	var finishedAt sql.NullTime

	err := rows.Scan(
		&rec.ID, &rec.RunID, &rec.FileID, &rec.Filename, &rec.DestPath, &rec.URL,
		&rec.DeclaredSize, &rec.Status, &rec.BytesDownloaded, &rec.ResumedFrom,
		&rec.Passes, &errorCounts, &lastError, &rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorCounts.Valid && errorCounts.String != "" {
		rec.Errors = make(domain.ErrorHistogram)
		if err := json.Unmarshal([]byte(errorCounts.String), &rec.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode error counts of transfer %d: %w", rec.ID, err)
		}
	}
	if lastError.Valid {
		rec.LastError = lastError.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}

	return rec, nil
}

func encodeErrors(h domain.ErrorHistogram) (sql.NullString, error) {
	if len(h) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode error counts: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
