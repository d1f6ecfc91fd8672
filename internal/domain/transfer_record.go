package domain

import "time"

// Transfer status constants
const (
	TransferStatusInProgress  = "in_progress"
	TransferStatusComplete    = "complete"
	TransferStatusSkipped     = "skipped"
	TransferStatusFailed      = "failed"
	TransferStatusInterrupted = "interrupted"
)

// TransferRecord is the journal entry for one task within one run
type TransferRecord struct {
	ID    int64
	RunID string

	FileID       string
	Filename     string
	DestPath     string
	URL          string
	DeclaredSize int64

	Status          string
	BytesDownloaded int64
	ResumedFrom     int64
	Passes          int
	Errors          ErrorHistogram
	LastError       string

	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewTransferRecord creates an in-progress record for a task
func NewTransferRecord(runID string, task *DownloadTask) *TransferRecord {
	return &TransferRecord{
		RunID:        runID,
		FileID:       task.ID,
		Filename:     task.Filename(),
		DestPath:     task.Path,
		URL:          task.URL,
		DeclaredSize: task.Size,
		Status:       TransferStatusInProgress,
		StartedAt:    time.Now().UTC(),
	}
}

// ApplyResult copies the outcome of a download into the record
func (r *TransferRecord) ApplyResult(res *DownloadResult) {
	if res == nil {
		return
	}
	r.DeclaredSize = res.DeclaredSize
	r.BytesDownloaded = res.BytesWritten
	r.ResumedFrom = res.ResumedFrom
	r.Passes = res.Passes
	r.Errors = res.Errors
}

// Finish marks the record finished with the given status
func (r *TransferRecord) Finish(status string, err error) {
	r.Status = status
	if err != nil {
		r.LastError = err.Error()
	}
	now := time.Now().UTC()
	r.FinishedAt = &now
}

// RunStats aggregates the journal of one run
type RunStats struct {
	Complete    int
	Skipped     int
	Failed      int
	Interrupted int
	InProgress  int
	TotalBytes  int64
}
