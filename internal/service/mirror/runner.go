// Package mirror runs one pass of the plugin: it mirrors the popular games
// that are still missing, then re-checks a random sample of mirrored games
// for newer artifacts.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vertextoedge/romhustler-mirror/internal/catalog"
	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
	"github.com/vertextoedge/romhustler-mirror/internal/service/resumer"
	"github.com/vertextoedge/romhustler-mirror/internal/service/watcher"
)

// Unknown error policies
const (
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

// Probe kinds used in browser mode
const (
	ProbeDirectory = "directory"
	ProbeManager   = "manager"
)

// stage1Weight is the share of overall progress taken by the popular list
const stage1Weight = 50

// Config contains runner configuration
type Config struct {
	BaseURL string

	// Mode is domain.ModeBrowser or domain.ModeFetch
	Mode string

	// Probe selects the browser mode observation source
	Probe string

	// MaxAttempts bounds whole-attempt retries of stalled or failed transfers
	MaxAttempts int

	// MaxRetryDelay caps the pause an error asks for before the next attempt
	MaxRetryDelay time.Duration

	// OnError decides what an unclassified item error does to the run
	OnError string

	// RecheckAfter keeps unavailable items from being scraped on every run
	RecheckAfter time.Duration

	// LinkTimeout bounds the wait for the final download link
	LinkTimeout time.Duration

	// LinkPollInterval paces looking for the download link
	LinkPollInterval time.Duration

	// RequestsPerMinute paces page loads; 0 disables pacing
	RequestsPerMinute int

	RefreshEnabled bool
	RefreshMin     int
	RefreshMax     int
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://romhustler.org/roms",
		Mode:              domain.ModeBrowser,
		Probe:             ProbeDirectory,
		MaxAttempts:       2,
		MaxRetryDelay:     time.Minute,
		OnError:           OnErrorAbort,
		RecheckAfter:      24 * time.Hour,
		LinkTimeout:       2 * time.Minute,
		LinkPollInterval:  time.Second,
		RequestsPerMinute: 20,
		RefreshEnabled:    true,
		RefreshMin:        10,
		RefreshMax:        100,
	}
}

// Deps are the collaborators of a Runner
type Deps struct {
	Sessions port.SessionFactory
	FS       port.FileSystem
	Items    port.ItemRepository
	Attempts port.AttemptRepository
	Space    port.SpaceManager
	Reporter port.ProgressReporter
	Watcher  *watcher.Watcher
	Resumer  *resumer.Resumer

	// DirProbe builds the workspace directory probe for browser mode
	DirProbe func() port.DownloadProbe

	// Rand and Now are optional
	Rand *rand.Rand
	Now  func() time.Time
}

// Summary counts the outcomes of a run
type Summary struct {
	Existing     int
	Downloaded   int
	Skipped      int
	Failed       int
	Refreshed    int
	Unchanged    int
	NotRechecked int
}

// Runner mirrors catalog entries one at a time
type Runner struct {
	config  Config
	deps    Deps
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new runner
func New(cfg Config, deps Deps, logger *zap.Logger) *Runner {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Probe == "" {
		cfg.Probe = def.Probe
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.OnError == "" {
		cfg.OnError = def.OnError
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = def.LinkTimeout
	}
	if cfg.LinkPollInterval <= 0 {
		cfg.LinkPollInterval = def.LinkPollInterval
	}

	if deps.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Runner{
		config:  cfg,
		deps:    deps,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Run mirrors gameIDs and then refreshes a sample of mirrored games.
// Progress goes to the reporter; a returned error ends the run.
func (r *Runner) Run(ctx context.Context, gameIDs []string) (*Summary, error) {
	summary := &Summary{}
	start := r.deps.Now()

	r.logger.Info("Mirror run started",
		zap.Int("games", len(gameIDs)),
		zap.String("mode", r.config.Mode))

	if err := r.runPopular(ctx, gameIDs, summary); err != nil {
		return summary, err
	}

	if r.config.RefreshEnabled {
		if err := r.runRefresh(ctx, summary); err != nil {
			return summary, err
		}
	}

	if err := r.deps.Reporter.Progress(100); err != nil {
		return summary, err
	}

	r.logger.Info("Mirror run finished",
		zap.Int("existing", summary.Existing),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("unchanged", summary.Unchanged),
		zap.Duration("elapsed", r.deps.Now().Sub(start)))

	return summary, nil
}

// runPopular is stage 1: every listed game that is not mirrored yet
func (r *Runner) runPopular(ctx context.Context, gameIDs []string, summary *Summary) error {
	if len(gameIDs) == 0 {
		return r.deps.Reporter.Progress(stage1Weight)
	}

	for i, gameID := range gameIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.mirrorMissing(ctx, gameID, summary); err != nil {
			return err
		}
		if err := r.deps.Reporter.Progress(stage1Weight * (i + 1) / len(gameIDs)); err != nil {
			return err
		}
	}
	return nil
}

// mirrorMissing downloads gameID unless it is already mirrored or was
// found unavailable recently
func (r *Runner) mirrorMissing(ctx context.Context, gameID string, summary *Summary) error {
	logger := r.logger.With(zap.String("game_id", gameID))

	if r.deps.FS.TargetExists(gameID) {
		logger.Debug("Game already mirrored")
		summary.Existing++
		return nil
	}

	item, err := r.deps.Items.GetItem(gameID)
	if err != nil {
		return fmt.Errorf("failed to load item %s: %w", gameID, err)
	}
	if item == nil {
		item = domain.NewItem(gameID)
	}
	if !item.DueForRecheck(r.config.RecheckAfter, r.deps.Now()) {
		logger.Debug("Skipping recently checked item", zap.String("status", item.Status))
		summary.NotRechecked++
		return nil
	}

	if item.Status == domain.ItemStatusFailed {
		r.logLastAttempt(logger, gameID)
	}

	if err := r.checkSpace(); err != nil {
		return err
	}

	return r.processItem(ctx, item, summary)
}

// logLastAttempt says how the previous try of a failed item ended
func (r *Runner) logLastAttempt(logger *zap.Logger, gameID string) {
	attempts, err := r.deps.Attempts.ListAttempts(gameID)
	if err != nil {
		logger.Warn("Failed to load attempt history", zap.Error(err))
		return
	}
	if len(attempts) == 0 {
		return
	}
	last := attempts[0]
	logger.Info("Retrying previously failed item",
		zap.Int("attempts", len(attempts)),
		zap.String("last_outcome", last.Outcome),
		zap.String("last_error", last.Error),
		zap.Time("last_finished_at", last.FinishedAt))
}

// runRefresh is stage 2: re-scrape a random sample of mirrored games and
// download again the ones whose artifact changed
func (r *Runner) runRefresh(ctx context.Context, summary *Summary) error {
	// any status can sit over a mirrored copy: a failed re-download keeps
	// the old one, and a crashed run releases in_progress items to pending
	statuses := []string{
		domain.ItemStatusDownloaded,
		domain.ItemStatusFailed,
		domain.ItemStatusPending,
		domain.ItemStatusInProgress,
		domain.ItemStatusNotAvailable,
		domain.ItemStatusBadTarget,
	}
	var mirrored []*domain.Item
	for _, status := range statuses {
		items, err := r.deps.Items.ListByStatus(status)
		if err != nil {
			return fmt.Errorf("failed to list %s items: %w", status, err)
		}
		mirrored = append(mirrored, items...)
	}

	ids := make([]string, 0, len(mirrored))
	byID := make(map[string]*domain.Item, len(mirrored))
	for _, item := range mirrored {
		if r.deps.FS.TargetExists(item.GameID) {
			ids = append(ids, item.GameID)
			byID[item.GameID] = item
		}
	}

	n := catalog.SampleSize(r.deps.Rand, r.config.RefreshMin, r.config.RefreshMax, len(ids))
	sample := catalog.Sample(r.deps.Rand, ids, n)

	r.logger.Info("Refreshing mirrored games",
		zap.Int("candidates", len(ids)),
		zap.Int("sample", len(sample)))

	for i, gameID := range sample {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.refreshItem(ctx, byID[gameID], summary); err != nil {
			return err
		}
		progress := stage1Weight + (100-stage1Weight)*(i+1)/len(sample)
		if err := r.deps.Reporter.Progress(progress); err != nil {
			return err
		}
	}
	return nil
}

// refreshItem compares the current artifact name with the mirrored one
func (r *Runner) refreshItem(ctx context.Context, item *domain.Item, summary *Summary) error {
	logger := r.logger.With(zap.String("game_id", item.GameID))

	page, err := r.scrape(ctx, item.GameID)
	if err != nil {
		if r.isFatal(ctx, err) {
			return err
		}
		// the mirrored copy stays; the site may be down or the item withdrawn
		logger.Warn("Refresh check failed, keeping mirrored copy", zap.Error(err))
		return nil
	}

	if page.Available && page.ArtifactName != item.ArtifactName {
		logger.Info("Artifact changed, downloading again",
			zap.String("old", item.ArtifactName),
			zap.String("new", page.ArtifactName))
		if err := r.checkSpace(); err != nil {
			return err
		}
		before := summary.Downloaded
		if err := r.processItem(ctx, item, summary); err != nil {
			return err
		}
		if summary.Downloaded > before {
			summary.Downloaded--
			summary.Refreshed++
		}
		return nil
	}

	item.MarkChecked()
	if err := r.deps.Items.SaveItem(item); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.GameID, err)
	}
	summary.Unchanged++
	return nil
}

// processItem runs whole download attempts for an item until one succeeds,
// the outcome is final, or MaxAttempts is used up
func (r *Runner) processItem(ctx context.Context, item *domain.Item, summary *Summary) error {
	logger := r.logger.With(zap.String("game_id", item.GameID))

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		item.MarkInProgress()
		if err := r.deps.Items.SaveItem(item); err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.GameID, err)
		}

		rec := &domain.AttemptRecord{
			ID:        uuid.NewString(),
			GameID:    item.GameID,
			Mode:      r.config.Mode,
			StartedAt: r.deps.Now(),
		}

		res, err := r.downloadOnce(ctx, item.GameID, rec)
		if err == nil {
			return r.finish(item, res, rec, summary)
		}

		rec.Error = err.Error()

		switch {
		case r.isFatal(ctx, err):
			rec.Outcome = "cancelled"
			r.record(rec)
			return err

		case domain.IsSkippable(err):
			status := domain.ItemStatusNotAvailable
			if errors.Is(err, domain.ErrBadTarget) {
				status = domain.ItemStatusBadTarget
			}
			rec.Outcome = status
			r.record(rec)
			if r.deps.FS.TargetExists(item.GameID) {
				logger.Info("New version unavailable, keeping mirrored copy", zap.Error(err))
				item.MarkKept(err.Error())
			} else {
				logger.Info("Item skipped", zap.String("status", status), zap.Error(err))
				item.MarkSkipped(status, err.Error())
			}
			if err := r.deps.Items.SaveItem(item); err != nil {
				return fmt.Errorf("failed to save item %s: %w", item.GameID, err)
			}
			r.removeWorkspace()
			summary.Skipped++
			return nil

		case r.isRetryable(ctx, err):
			rec.Outcome = "retry"
			r.record(rec)
			logger.Warn("Download attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.config.MaxAttempts),
				zap.Error(err))
			lastErr = err
			if attempt < r.config.MaxAttempts {
				if err := r.waitBeforeRetry(ctx, err); err != nil {
					return err
				}
			}

		default:
			rec.Outcome = domain.ItemStatusFailed
			r.record(rec)
			item.MarkFailed(err.Error())
			if saveErr := r.deps.Items.SaveItem(item); saveErr != nil {
				return fmt.Errorf("failed to save item %s: %w", item.GameID, saveErr)
			}
			summary.Failed++
			if r.config.OnError == OnErrorSkip {
				logger.Error("Item failed, continuing", zap.Error(err))
				return nil
			}
			return fmt.Errorf("item %s: %w", item.GameID, err)
		}
	}

	// the workspace is kept so the next run can resume
	logger.Error("Giving up on item", zap.Error(lastErr))
	item.MarkFailed(lastErr.Error())
	if err := r.deps.Items.SaveItem(item); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.GameID, err)
	}
	summary.Failed++
	return nil
}

// finish moves a downloaded artifact into place and records the success
func (r *Runner) finish(item *domain.Item, res *downloaded, rec *domain.AttemptRecord, summary *Summary) error {
	finalPath, err := r.deps.FS.Finalize(item.GameID, res.Path)
	if err != nil {
		rec.Outcome = domain.ItemStatusFailed
		rec.Error = err.Error()
		r.record(rec)
		return fmt.Errorf("failed to finalize %s: %w", item.GameID, err)
	}

	rec.Outcome = domain.ItemStatusDownloaded
	r.record(rec)

	item.MarkDownloaded(res.ArtifactName, finalPath)
	if err := r.deps.Items.SaveItem(item); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.GameID, err)
	}
	r.removeWorkspace()

	r.logger.Info("Game mirrored",
		zap.String("game_id", item.GameID),
		zap.String("artifact", res.ArtifactName),
		zap.String("path", finalPath),
		zap.Int64("bytes", res.Bytes),
		zap.Bool("resumed", res.Resumed))
	summary.Downloaded++
	return nil
}

// checkSpace stops the run once the data directory is full
func (r *Runner) checkSpace() error {
	if r.deps.Space == nil {
		return nil
	}
	result, err := r.deps.Space.CheckSpace(0)
	if err != nil {
		return fmt.Errorf("failed to check space: %w", err)
	}
	if !result.HasSpace {
		r.logger.Warn("Data directory is full",
			zap.Int64("data_size", result.DataSizeBytes),
			zap.Float64("disk_used_pct", result.DiskUsedPct),
			zap.Bool("limited_by_data_size", result.LimitedByDataSize),
			zap.Bool("limited_by_disk_usage", result.LimitedByDiskUsage))
		return domain.ErrInsufficientSpace
	}
	return nil
}

// isFatal reports errors that end the whole run
func (r *Runner) isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrReporterFailed) ||
		errors.Is(err, domain.ErrInsufficientSpace)
}

// isRetryable reports errors worth another whole attempt. Timeouts of
// single browser steps count as well as stalls and transfer failures.
func (r *Runner) isRetryable(ctx context.Context, err error) bool {
	if domain.IsRetryable(err) {
		return true
	}
	return ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}

// retryDelay is the pause err asks for, capped by MaxRetryDelay and spread
// over [d/2, 3d/2] so retries against the site do not line up
func (r *Runner) retryDelay(err error) time.Duration {
	d, _ := domain.GetRetryAfter(err)
	d = min(d, r.config.MaxRetryDelay)
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(r.deps.Rand.Int64N(int64(d)+1))
}

func (r *Runner) waitBeforeRetry(ctx context.Context, err error) error {
	delay := r.retryDelay(err)
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) record(rec *domain.AttemptRecord) {
	rec.FinishedAt = r.deps.Now()
	if err := r.deps.Attempts.RecordAttempt(rec); err != nil {
		r.logger.Warn("Failed to record attempt", zap.String("game_id", rec.GameID), zap.Error(err))
	}
}

func (r *Runner) removeWorkspace() {
	if err := r.deps.FS.Workspace().Remove(); err != nil {
		r.logger.Warn("Failed to remove workspace", zap.Error(err))
	}
}
