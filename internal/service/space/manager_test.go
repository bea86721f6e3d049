package space

import (
	"errors"
	"testing"
	"time"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

const gb = int64(1024 * 1024 * 1024)

// mockFileSystem implements port.FileSystem for testing
type mockFileSystem struct {
	dataSize       int64
	diskUsage      *port.DiskUsage
	err            error
	dataSizeCalled int
}

func (m *mockFileSystem) GetDataSize() (int64, error) {
	m.dataSizeCalled++
	return m.dataSize, m.err
}

func (m *mockFileSystem) GetDiskUsage() (*port.DiskUsage, error) {
	return m.diskUsage, m.err
}

// Stub implementations for other FileSystem methods
func (m *mockFileSystem) RootDir() string                                        { return "" }
func (m *mockFileSystem) TargetDir(gameID string) string                         { return "" }
func (m *mockFileSystem) TargetExists(gameID string) bool                        { return false }
func (m *mockFileSystem) Workspace() port.Workspace                              { return nil }
func (m *mockFileSystem) Finalize(gameID, artifactPath string) (string, error)   { return "", nil }
func (m *mockFileSystem) CleanOldTempFiles(olderThan time.Duration) (int, error) { return 0, nil }
func (m *mockFileSystem) CleanStaleStaging() error                               { return nil }

func usagePct(usedGB int64, pct float64) *port.DiskUsage {
	return &port.DiskUsage{
		Total:   uint64(1000 * gb),
		Used:    uint64(usedGB * gb),
		Free:    uint64((1000 - usedGB) * gb),
		UsedPct: pct,
	}
}

func TestManager_CheckSpace(t *testing.T) {
	tests := []struct {
		name            string
		maxDataSize     int64
		maxDiskUsagePct float64
		dataSize        int64
		diskUsage       *port.DiskUsage
		fileSize        int64
		wantHasSpace    bool
		wantLimitedData bool
		wantLimitedDisk bool
	}{
		{
			name:            "has space - well under limits",
			maxDataSize:     100 * gb,
			maxDiskUsagePct: 80,
			dataSize:        10 * gb,
			diskUsage:       usagePct(400, 40),
			fileSize:        1 * gb,
			wantHasSpace:    true,
		},
		{
			name:            "limited by data size",
			maxDataSize:     50 * gb,
			maxDiskUsagePct: 80,
			dataSize:        49 * gb,
			diskUsage:       usagePct(400, 40),
			fileSize:        2 * gb,
			wantLimitedData: true,
		},
		{
			name:            "limited by current disk usage",
			maxDataSize:     100 * gb,
			maxDiskUsagePct: 50,
			dataSize:        10 * gb,
			diskUsage:       usagePct(500, 50),
			fileSize:        1 * gb,
			wantLimitedDisk: true,
		},
		{
			name:            "limited by projected disk usage",
			maxDataSize:     100 * gb,
			maxDiskUsagePct: 50,
			dataSize:        10 * gb,
			diskUsage:       usagePct(450, 45),
			fileSize:        60 * gb,
			wantLimitedDisk: true,
		},
		{
			name:            "exactly at data limit - still ok",
			maxDataSize:     50 * gb,
			maxDiskUsagePct: 80,
			dataSize:        49 * gb,
			diskUsage:       usagePct(400, 40),
			fileSize:        1 * gb,
			wantHasSpace:    true,
		},
		{
			name:            "no data limit",
			maxDataSize:     0,
			maxDiskUsagePct: 95,
			dataSize:        5000 * gb,
			diskUsage:       usagePct(900, 90),
			fileSize:        0,
			wantHasSpace:    true,
		},
		{
			name:            "no data limit but disk full",
			maxDataSize:     0,
			maxDiskUsagePct: 95,
			diskUsage:       usagePct(960, 96),
			wantLimitedDisk: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &mockFileSystem{
				dataSize:  tt.dataSize,
				diskUsage: tt.diskUsage,
			}

			sm := NewManager(fs, tt.maxDataSize, tt.maxDiskUsagePct)
			result, err := sm.CheckSpace(tt.fileSize)

			if err != nil {
				t.Fatalf("CheckSpace() error = %v", err)
			}

			if result.HasSpace != tt.wantHasSpace {
				t.Errorf("HasSpace = %v, want %v", result.HasSpace, tt.wantHasSpace)
			}

			if result.LimitedByDataSize != tt.wantLimitedData {
				t.Errorf("LimitedByDataSize = %v, want %v", result.LimitedByDataSize, tt.wantLimitedData)
			}

			if result.LimitedByDiskUsage != tt.wantLimitedDisk {
				t.Errorf("LimitedByDiskUsage = %v, want %v", result.LimitedByDiskUsage, tt.wantLimitedDisk)
			}

			if result.MaxDataSizeBytes != tt.maxDataSize {
				t.Errorf("MaxDataSizeBytes = %v, want %v", result.MaxDataSizeBytes, tt.maxDataSize)
			}

			if result.MaxDiskUsagePct != tt.maxDiskUsagePct {
				t.Errorf("MaxDiskUsagePct = %v, want %v", result.MaxDiskUsagePct, tt.maxDiskUsagePct)
			}
		})
	}
}

func TestManager_NoDataLimitSkipsWalk(t *testing.T) {
	fs := &mockFileSystem{diskUsage: usagePct(100, 10)}
	sm := NewManager(fs, 0, 95)

	if _, err := sm.CheckSpace(0); err != nil {
		t.Fatalf("CheckSpace() error = %v", err)
	}
	if fs.dataSizeCalled != 0 {
		t.Errorf("GetDataSize called %d times, want 0", fs.dataSizeCalled)
	}
}

func TestManager_AvailableBytes(t *testing.T) {
	fs := &mockFileSystem{
		dataSize:  30 * gb,
		diskUsage: usagePct(400, 40),
	}

	sm := NewManager(fs, 50*gb, 80)

	result, err := sm.CheckSpace(1)
	if err != nil {
		t.Fatalf("CheckSpace() error = %v", err)
	}

	if result.AvailableBytes != 20*gb {
		t.Errorf("AvailableBytes = %v, want %v", result.AvailableBytes, 20*gb)
	}
}

func TestManager_Error(t *testing.T) {
	fs := &mockFileSystem{err: errors.New("statfs failed")}
	sm := NewManager(fs, 0, 80)

	if _, err := sm.CheckSpace(0); err == nil {
		t.Error("expected error from disk usage")
	}
}
