package domain

// DownloadResult represents the result of a file download operation
type DownloadResult struct {
	// Path is the local destination path
	Path string

	// DeclaredSize is the size the destination had to reach
	DeclaredSize int64

	// BytesWritten is the number of bytes written by this run
	BytesWritten int64

	// Skipped indicates the destination was already complete
	Skipped bool

	// Resumed indicates whether the download was resumed from a previous attempt
	Resumed bool

	// ResumedFrom is the byte position from which the download was resumed
	ResumedFrom int64

	// Passes is the number of streaming passes it took
	Passes int

	// Errors is the transient error histogram of the task
	Errors ErrorHistogram
}
