package domain

// DownloadResult represents the result of a single download attempt
type DownloadResult struct {
	// Path is the local path of the finished artifact (still inside the temp dir)
	Path string

	// BytesWritten is the size of the artifact on disk
	BytesWritten int64

	// Resumed indicates whether the download continued a previous partial file
	Resumed bool

	// ResumedFrom is the partial file size the resume started from
	ResumedFrom int64
}
