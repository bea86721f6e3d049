//go:build windows

package filesystem

import (
	"errors"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// GetDiskUsage is not supported on windows
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	return nil, errors.New("disk usage is not supported on windows")
}
