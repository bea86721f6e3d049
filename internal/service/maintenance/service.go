package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// TempFileMaxAge is the maximum age of partial files before cleanup
	TempFileMaxAge time.Duration

	// AttemptMaxAge is the maximum age of attempt history rows
	AttemptMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		TempFileMaxAge: 72 * time.Hour,
		AttemptMaxAge:  30 * 24 * time.Hour,
	}
}

// SweepResult counts what a sweep removed or reset
type SweepResult struct {
	ReleasedItems  int
	PrunedAttempts int
	RemovedTemp    int
	StagingCleaned bool
}

// Service cleans up after previous runs before a new run starts
type Service struct {
	config   *Config
	items    port.ItemRepository
	attempts port.AttemptRepository
	fs       port.FileSystem
	logger   *zap.Logger
}

// New creates a new maintenance Service
func New(cfg *Config, items port.ItemRepository, attempts port.AttemptRepository, fs port.FileSystem, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 72 * time.Hour
	}
	if cfg.AttemptMaxAge == 0 {
		cfg.AttemptMaxAge = 30 * 24 * time.Hour
	}

	return &Service{
		config:   cfg,
		items:    items,
		attempts: attempts,
		fs:       fs,
		logger:   logger,
	}
}

// Sweep runs every cleanup step once. Failures are logged and do not stop
// the remaining steps; the run that follows can cope with leftovers.
func (s *Service) Sweep(ctx context.Context) *SweepResult {
	result := &SweepResult{}

	steps := []func(*SweepResult){
		s.releaseInProgressItems,
		s.cleanupAttempts,
		s.cleanupTempFiles,
		s.cleanupStaging,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		step(result)
	}

	s.logger.Info("maintenance sweep finished",
		zap.Int("released_items", result.ReleasedItems),
		zap.Int("pruned_attempts", result.PrunedAttempts),
		zap.Int("removed_temp_files", result.RemovedTemp))
	return result
}

// releaseInProgressItems resets items a crashed run left in progress
func (s *Service) releaseInProgressItems(result *SweepResult) {
	released, err := s.items.ReleaseInProgressItems()
	if err != nil {
		s.logger.Error("failed to release in-progress items", zap.Error(err))
	} else if released > 0 {
		s.logger.Info("released in-progress items", zap.Int("count", released))
	}
	result.ReleasedItems = released
}

// cleanupAttempts removes old attempt history
func (s *Service) cleanupAttempts(result *SweepResult) {
	cleared, err := s.attempts.CleanupOldAttempts(s.config.AttemptMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old attempts", zap.Error(err))
	} else if cleared > 0 {
		s.logger.Info("cleaned up old attempts", zap.Int("count", cleared))
	}
	result.PrunedAttempts = cleared
}

// cleanupTempFiles removes old partial files from the workspace
func (s *Service) cleanupTempFiles(result *SweepResult) {
	fileCount, err := s.fs.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if fileCount > 0 {
		s.logger.Info("cleaned up old temp files from filesystem", zap.Int("count", fileCount))
	}
	result.RemovedTemp = fileCount
}

// cleanupStaging removes directories of interrupted finalize steps
func (s *Service) cleanupStaging(result *SweepResult) {
	if err := s.fs.CleanStaleStaging(); err != nil {
		s.logger.Error("failed to cleanup staging directories", zap.Error(err))
		return
	}
	result.StagingCleaned = true
}
