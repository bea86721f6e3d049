package port

import "time"

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// FileSystem defines the interface for data directory operations
type FileSystem interface {
	// RootDir returns the data directory
	RootDir() string

	// TargetDir returns <root>/<gameID>
	TargetDir(gameID string) string

	// TargetExists reports whether a game has already been mirrored
	TargetExists(gameID string) bool

	// Workspace returns the temp download directory of this data dir
	Workspace() Workspace

	// Finalize moves a finished artifact into <root>/<gameID>/<filename>,
	// replacing any previous content of the target directory.
	// Returns the final path.
	Finalize(gameID, artifactPath string) (string, error)

	// GetDataSize returns total size of mirrored files
	GetDataSize() (int64, error)

	// GetDiskUsage returns disk usage statistics
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes partial files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)

	// CleanStaleStaging removes directories left by an interrupted Finalize
	CleanStaleStaging() error
}

// Workspace is the temp directory a single download attempt works in.
// It holds the freshness marker and the partial or finished artifact.
type Workspace interface {
	// Dir returns the absolute directory path
	Dir() string

	// Path returns the absolute path of a file inside the workspace
	Path(name string) string

	// Ensure creates the directory if needed
	Ensure() error

	// Purge removes every entry of the directory but keeps the directory
	Purge() error

	// Remove deletes the directory and its content
	Remove() error

	// ReadMarker returns the stored artifact name; ok is false if no marker exists
	ReadMarker() (name string, ok bool, err error)

	// WriteMarker stores the artifact name
	WriteMarker(name string) error

	// Exists reports whether a file exists inside the workspace
	Exists(name string) bool

	// FileSize returns the size of a file inside the workspace
	FileSize(name string) (int64, error)

	// Rename renames a file inside the workspace
	Rename(from, to string) error
}
