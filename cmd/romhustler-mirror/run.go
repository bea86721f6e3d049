package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/adapter/browser"
	"github.com/vertextoedge/romhustler-mirror/internal/adapter/fetchtool"
	"github.com/vertextoedge/romhustler-mirror/internal/adapter/filesystem"
	"github.com/vertextoedge/romhustler-mirror/internal/adapter/sqlite"
	"github.com/vertextoedge/romhustler-mirror/internal/catalog"
	"github.com/vertextoedge/romhustler-mirror/internal/config"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
	"github.com/vertextoedge/romhustler-mirror/internal/service/maintenance"
	"github.com/vertextoedge/romhustler-mirror/internal/service/mirror"
	"github.com/vertextoedge/romhustler-mirror/internal/service/resumer"
	"github.com/vertextoedge/romhustler-mirror/internal/service/space"
	"github.com/vertextoedge/romhustler-mirror/internal/service/watcher"
)

// run wires the services and performs one mirror pass
func run(ctx context.Context, cfg *config.Config, reporter port.ProgressReporter, zapLogger *zap.Logger) error {
	// Initialize filesystem manager
	fsManager, err := filesystem.NewManagerWithOptions(cfg.DataDir, &filesystem.Options{
		TempDirName:       cfg.Download.TempDirName,
		PartialExtensions: cfg.Download.PartialExtensions,
	})
	if err != nil {
		return fmt.Errorf("failed to create filesystem manager: %w", err)
	}

	// Open database
	dbPath := cfg.GetDatabasePath()
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	defer store.Close()

	// Clean up after an interrupted previous run
	maintenanceService := maintenance.New(&maintenance.Config{
		TempFileMaxAge: cfg.Maintenance.GetTempFileMaxAge(),
		AttemptMaxAge:  cfg.Maintenance.GetAttemptMaxAge(),
	}, store, store, fsManager, zapLogger)
	maintenanceService.Sweep(ctx)

	gameIDs, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	zapLogger.Info("catalog loaded", zap.Int("games", len(gameIDs)))

	sessions := browser.NewFactory(browser.Config{
		Bin:             cfg.Browser.Bin,
		Headless:        cfg.Browser.Headless,
		NoSandbox:       cfg.Browser.NoSandbox,
		NavigateTimeout: cfg.Browser.GetNavigateTimeout(),
		PollInterval:    cfg.Watcher.GetPollInterval(),
	}, zapLogger)

	downloadWatcher := watcher.New(watcher.Config{
		PollInterval:        cfg.Watcher.GetPollInterval(),
		StallPolls:          cfg.Watcher.StallPolls,
		IdlePolls:           cfg.Watcher.IdlePolls,
		MaxWait:             cfg.Watcher.GetMaxWait(),
		ProgressLogInterval: cfg.Watcher.GetProgressLogInterval(),
	}, zapLogger)

	fetchTool := fetchtool.New(fetchtool.Config{
		Command:           cfg.Fetch.Command,
		Args:              cfg.Fetch.Args,
		ResumeArgs:        cfg.Fetch.ResumeArgs,
		NotFoundExitCodes: cfg.Fetch.NotFoundExitCodes,
		RetryWait:         cfg.Fetch.GetRetryWait(),
	}, zapLogger)

	spaceManager := space.NewManager(fsManager, cfg.Space.GetMaxSizeBytes(), float64(cfg.Space.MaxDiskUsagePercent))

	runner := mirror.New(mirror.Config{
		BaseURL:           cfg.Site.BaseURL,
		Mode:              cfg.Download.Mode,
		Probe:             cfg.Download.Probe,
		MaxAttempts:       cfg.Download.MaxAttempts,
		MaxRetryDelay:     cfg.Download.GetMaxRetryDelay(),
		OnError:           cfg.Download.OnError,
		RecheckAfter:      cfg.Download.GetRecheckAfter(),
		LinkTimeout:       cfg.Site.GetLinkTimeout(),
		RequestsPerMinute: cfg.Site.RequestsPerMinute,
		RefreshEnabled:    cfg.Refresh.Enabled,
		RefreshMin:        cfg.Refresh.Min,
		RefreshMax:        cfg.Refresh.Max,
	}, mirror.Deps{
		Sessions: sessions,
		FS:       fsManager,
		Items:    store,
		Attempts: store,
		Space:    spaceManager,
		Reporter: reporter,
		Watcher:  downloadWatcher,
		Resumer:  resumer.New(fetchTool, zapLogger),
		DirProbe: fsManager.DownloadProbe,
	}, zapLogger)

	if _, err := runner.Run(ctx, gameIDs); err != nil {
		return err
	}

	if stats, err := store.GetItemStats(); err == nil {
		zapLogger.Info("ledger",
			zap.Int("downloaded", stats.Downloaded),
			zap.Int("not_available", stats.NotAvailable),
			zap.Int("bad_target", stats.BadTarget),
			zap.Int("failed", stats.Failed),
			zap.Int("pending", stats.Pending))
	}
	return nil
}

// loadCatalog reads the game list minus the exclude list. Both default to
// files next to the executable.
func loadCatalog(cfg *config.Config) ([]string, error) {
	listFile := cfg.Catalog.ListFile
	excludeFile := cfg.Catalog.ExcludeFile
	if listFile == "" || excludeFile == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		dir := filepath.Dir(exe)
		if listFile == "" {
			listFile = filepath.Join(dir, catalog.DefaultListFile)
		}
		if excludeFile == "" {
			excludeFile = filepath.Join(dir, catalog.DefaultExcludeFile)
		}
	}

	ids, err := catalog.ReadFile(listFile)
	if err != nil {
		return nil, err
	}
	excluded, err := catalog.ReadOptionalFile(excludeFile)
	if err != nil {
		return nil, err
	}
	return catalog.Exclude(ids, excluded), nil
}
