// Package space guards the data directory against running out of room.
package space

import (
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Manager handles space availability checks for the data directory
type Manager struct {
	fs              port.FileSystem
	maxDataSize     int64
	maxDiskUsagePct float64
}

// NewManager creates a new Manager. A maxDataSize of 0 disables the
// data size limit; the disk usage limit always applies.
func NewManager(fs port.FileSystem, maxDataSize int64, maxDiskUsagePct float64) *Manager {
	return &Manager{
		fs:              fs,
		maxDataSize:     maxDataSize,
		maxDiskUsagePct: maxDiskUsagePct,
	}
}

// CheckSpace checks if there's room for a file of the given size.
// Artifact sizes are unknown before the download, so callers usually pass 0
// and only learn whether a limit has already been reached.
func (sm *Manager) CheckSpace(fileSize int64) (*port.SpaceCheckResult, error) {
	result := &port.SpaceCheckResult{
		MaxDataSizeBytes: sm.maxDataSize,
		MaxDiskUsagePct:  sm.maxDiskUsagePct,
	}

	if sm.maxDataSize > 0 {
		dataSize, err := sm.fs.GetDataSize()
		if err != nil {
			return nil, err
		}
		result.DataSizeBytes = dataSize
		result.AvailableBytes = sm.maxDataSize - dataSize

		if dataSize+fileSize > sm.maxDataSize {
			result.LimitedByDataSize = true
			return result, nil
		}
	}

	// Check disk usage limit
	usage, err := sm.fs.GetDiskUsage()
	if err != nil {
		return nil, err
	}
	result.DiskUsedPct = usage.UsedPct

	if usage.UsedPct >= sm.maxDiskUsagePct {
		result.LimitedByDiskUsage = true
		return result, nil
	}

	// Check if adding this file would exceed disk limit
	if usage.Total > 0 {
		newUsedPct := float64(usage.Used+uint64(fileSize)) / float64(usage.Total) * 100
		if newUsedPct >= sm.maxDiskUsagePct {
			result.LimitedByDiskUsage = true
			return result, nil
		}
	}

	result.HasSpace = true
	return result, nil
}

// Ensure Manager implements port.SpaceManager
var _ port.SpaceManager = (*Manager)(nil)
