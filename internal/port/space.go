package port

// SpaceCheckResult contains detailed space availability information
type SpaceCheckResult struct {
	HasSpace           bool
	AvailableBytes     int64
	DataSizeBytes      int64
	MaxDataSizeBytes   int64
	DiskUsedPct        float64
	MaxDiskUsagePct    float64
	LimitedByDataSize  bool
	LimitedByDiskUsage bool
}

// SpaceManager defines the interface for space management operations
type SpaceManager interface {
	// CheckSpace checks if there's enough space for a file of the given size
	// and returns detailed information about space availability
	CheckSpace(fileSize int64) (*SpaceCheckResult, error)
}
