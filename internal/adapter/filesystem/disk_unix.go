//go:build !windows

package filesystem

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// GetDiskUsage returns disk usage for the data directory
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.rootDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free

	usage := &port.DiskUsage{
		Total: total,
		Used:  used,
		Free:  free,
	}
	if total > 0 {
		usage.UsedPct = float64(used) / float64(total) * 100
	}
	return usage, nil
}
