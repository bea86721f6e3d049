package mirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/adapter/site"
	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// browserDirName is where the browser saves in fetch mode, so its own
// download never mixes with the fetch tool's files
const browserDirName = ".browser"

// downloaded is a finished artifact still inside the workspace
type downloaded struct {
	Path         string
	ArtifactName string
	Resumed      bool
	Bytes        int64
}

// scrape loads the item page in a throwaway session
func (r *Runner) scrape(ctx context.Context, gameID string) (*site.GamePage, error) {
	ws := r.deps.FS.Workspace()
	session, err := r.openSession(ctx, ws.Path(browserDirName))
	if err != nil {
		return nil, err
	}
	defer r.closeSession(session)

	return r.loadGamePage(ctx, session, gameID)
}

// downloadOnce is one whole attempt: open the item page, start the
// download and wait for the artifact
func (r *Runner) downloadOnce(ctx context.Context, gameID string, rec *domain.AttemptRecord) (*downloaded, error) {
	ws := r.deps.FS.Workspace()
	if err := ws.Ensure(); err != nil {
		return nil, err
	}

	downloadDir := ws.Path(browserDirName)
	if r.config.Mode == domain.ModeBrowser {
		// leftovers of an earlier attempt would look like a finished download
		if err := ws.Purge(); err != nil {
			return nil, err
		}
		downloadDir = ws.Dir()
	}

	session, err := r.openSession(ctx, downloadDir)
	if err != nil {
		return nil, err
	}
	defer r.closeSession(session)

	page, err := r.loadGamePage(ctx, session, gameID)
	if err != nil {
		return nil, err
	}
	if !page.Available {
		return nil, domain.NewNotAvailableError(gameID)
	}

	found, err := session.ClickLinkText(ctx, site.DownloadPageLinkText)
	if err != nil {
		return nil, fmt.Errorf("failed to open download page: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("download page link not found for %s", gameID)
	}

	if err := r.clickDownloadLink(ctx, session); err != nil {
		return nil, err
	}

	if r.config.Mode == domain.ModeFetch {
		return r.fetchStarted(ctx, session, ws, page.ArtifactName, rec)
	}
	return r.watchStarted(ctx, session, ws, page.ArtifactName, rec)
}

// watchStarted waits for the browser's own download to finish
func (r *Runner) watchStarted(ctx context.Context, session port.BrowserSession, ws port.Workspace, name string, rec *domain.AttemptRecord) (*downloaded, error) {
	probe := r.deps.DirProbe()
	if r.config.Probe == ProbeManager {
		probe = session.DownloadProbe()
	}

	attempt := domain.NewDownloadAttempt(ws.Dir(), name)
	result, err := r.deps.Watcher.Watch(ctx, probe, attempt)
	if err != nil {
		return nil, err
	}

	size, err := ws.FileSize(filepath.Base(result.Path))
	if err != nil {
		return nil, err
	}
	rec.Bytes = size
	return &downloaded{Path: result.Path, ArtifactName: name, Bytes: size}, nil
}

// fetchStarted takes the URL of the browser's download, cancels it and
// hands the transfer to the fetch tool
func (r *Runner) fetchStarted(ctx context.Context, session port.BrowserSession, ws port.Workspace, name string, rec *domain.AttemptRecord) (*downloaded, error) {
	infoCtx, cancel := context.WithTimeout(ctx, r.config.LinkTimeout)
	info, err := session.DownloadInfo(infoCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewStalledError("download manager never listed the download")
		}
		return nil, fmt.Errorf("failed to read download manager: %w", err)
	}

	if err := session.CancelDownload(ctx); err != nil {
		r.logger.Warn("Failed to cancel browser download", zap.Error(err))
	}
	r.closeSession(session)

	artifact := domain.Artifact{
		Name:     name,
		FileName: filepath.Base(info.FileName),
		URL:      info.URL,
	}
	res, err := r.deps.Resumer.Fetch(ctx, ws, artifact)
	if err != nil {
		return nil, err
	}

	rec.Resumed = res.Resumed
	rec.Bytes = res.BytesWritten
	return &downloaded{
		Path:         res.Path,
		ArtifactName: name,
		Resumed:      res.Resumed,
		Bytes:        res.BytesWritten,
	}, nil
}

// clickDownloadLink waits for the final download link to appear and clicks
// it. The link is revealed by a countdown, so the page is scrolled and
// searched until LinkTimeout.
func (r *Runner) clickDownloadLink(ctx context.Context, session port.BrowserSession) error {
	deadline := time.Now().Add(r.config.LinkTimeout)
	ticker := time.NewTicker(r.config.LinkPollInterval)
	defer ticker.Stop()

	for {
		if err := session.ScrollToEnd(ctx); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		found, err := session.ClickLinkText(ctx, site.DownloadLinkText)
		if err != nil {
			return fmt.Errorf("failed to click download link: %w", err)
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return domain.NewStalledError("download link did not appear")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// loadGamePage navigates to the item page and parses it
func (r *Runner) loadGamePage(ctx context.Context, session port.BrowserSession, gameID string) (*site.GamePage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := site.GameURL(r.config.BaseURL, gameID)
	if err := session.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	current, err := session.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	if err := site.CheckTarget(url, current); err != nil {
		return nil, err
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return site.ParseGamePage(html)
}

func (r *Runner) openSession(ctx context.Context, downloadDir string) (port.BrowserSession, error) {
	session, err := r.deps.Sessions.Open(ctx, downloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	return session, nil
}

func (r *Runner) closeSession(session port.BrowserSession) {
	if err := session.Close(); err != nil {
		r.logger.Debug("Failed to close browser", zap.Error(err))
	}
}
