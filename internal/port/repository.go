package port

import "github.com/vertextoedge/gdc-fetch/internal/domain"

// TransferJournal records what each run did with each task
type TransferJournal interface {
	// BeginTransfer inserts an in-progress record and sets its ID
	BeginTransfer(rec *domain.TransferRecord) error

	// FinishTransfer stores the final state of a record
	FinishTransfer(rec *domain.TransferRecord) error

	// ListRun returns the records of a run in insertion order
	ListRun(runID string) ([]*domain.TransferRecord, error)

	// GetRunStats aggregates the records of a run by status
	GetRunStats(runID string) (*domain.RunStats, error)
}
