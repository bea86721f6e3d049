package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vertextoedge/romhustler-mirror/internal/adapter/filesystem"
	"github.com/vertextoedge/romhustler-mirror/internal/adapter/site"
	"github.com/vertextoedge/romhustler-mirror/internal/adapter/sqlite"
	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
	"github.com/vertextoedge/romhustler-mirror/internal/service/resumer"
	"github.com/vertextoedge/romhustler-mirror/internal/service/watcher"
)

const testBaseURL = "https://roms.example/roms"

// fakePage scripts what the browser sees for one game
type fakePage struct {
	name        string
	unavailable bool
	redirect    string

	// fileName is what the browser saves when the download link is clicked
	fileName string

	// stuck leaves a partial file that never grows
	stuck bool

	// linkMisses is how many searches for the download link fail first
	linkMisses int

	// vanishAfter makes the page unavailable after that many visits
	vanishAfter int
	visits      int
}

func (p *fakePage) html() string {
	if p.unavailable || (p.vanishAfter > 0 && p.visits > p.vanishAfter) {
		return `<html><body><div>Sorry, download is disabled for this rom</div></body></html>`
	}
	return fmt.Sprintf(`<html><body><h1 itemprop="name">%s</h1></body></html>`, p.name)
}

type fakeFactory struct {
	pages   map[string]*fakePage
	openErr error

	opened    []string
	closed    int
	cancelled int
}

func (f *fakeFactory) Open(_ context.Context, downloadDir string) (port.BrowserSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return nil, err
	}
	f.opened = append(f.opened, downloadDir)
	return &fakeSession{factory: f, dir: downloadDir}, nil
}

type fakeSession struct {
	factory *fakeFactory
	dir     string
	url     string
	page    *fakePage
	closed  bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.url = url
	id := strings.TrimPrefix(url, testBaseURL+"/")
	page, ok := s.factory.pages[id]
	if !ok {
		return fmt.Errorf("no page for %s", id)
	}
	s.page = page
	page.visits++
	return nil
}

func (s *fakeSession) Click(context.Context, string) error { return nil }

func (s *fakeSession) ClickLinkText(_ context.Context, text string) (bool, error) {
	if text == site.DownloadPageLinkText {
		return true, nil
	}
	if s.page.linkMisses > 0 {
		s.page.linkMisses--
		return false, nil
	}
	name := s.page.fileName
	if s.page.stuck {
		name += ".crdownload"
	}
	return true, os.WriteFile(filepath.Join(s.dir, name), []byte("rom:"+s.page.name), 0644)
}

func (s *fakeSession) CurrentURL(context.Context) (string, error) {
	if s.page != nil && s.page.redirect != "" {
		return s.page.redirect, nil
	}
	return s.url, nil
}

func (s *fakeSession) EvalScript(context.Context, string) (string, error) { return "null", nil }

func (s *fakeSession) HTML(context.Context) (string, error) { return s.page.html(), nil }

func (s *fakeSession) ScrollToEnd(context.Context) error { return nil }

func (s *fakeSession) DownloadInfo(context.Context) (*port.DownloadInfo, error) {
	return &port.DownloadInfo{
		URL:      "https://cdn.example/" + s.page.fileName,
		FileName: filepath.Join("/home/user/Downloads", s.page.fileName),
	}, nil
}

func (s *fakeSession) CancelDownload(context.Context) error {
	s.factory.cancelled++
	return nil
}

func (s *fakeSession) DownloadProbe() port.DownloadProbe { return nil }

func (s *fakeSession) Close() error {
	if !s.closed {
		s.closed = true
		s.factory.closed++
	}
	return nil
}

type fakeReporter struct {
	progress []int
	err      error
}

func (r *fakeReporter) Progress(percent int) error {
	if r.err != nil {
		return r.err
	}
	r.progress = append(r.progress, percent)
	return nil
}

func (r *fakeReporter) ErrorOccurred(string) error { return nil }
func (r *fakeReporter) Close() error               { return nil }

// fakeTool writes payload to the requested path, appending on resume
type fakeTool struct {
	requests []port.FetchRequest
	payload  string
}

func (f *fakeTool) Fetch(_ context.Context, req port.FetchRequest) error {
	f.requests = append(f.requests, req)
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if req.Resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(req.Path, flags, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(f.payload)
	return err
}

type harness struct {
	fs       *filesystem.Manager
	store    *sqlite.Store
	factory  *fakeFactory
	reporter *fakeReporter
	tool     *fakeTool
}

func newHarness(t *testing.T, pages map[string]*fakePage) *harness {
	t.Helper()
	root := t.TempDir()

	fs, err := filesystem.NewManagerWithOptions(root, nil)
	require.NoError(t, err)

	store, err := sqlite.Open(filepath.Join(root, "_mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &harness{
		fs:       fs,
		store:    store,
		factory:  &fakeFactory{pages: pages},
		reporter: &fakeReporter{},
		tool:     &fakeTool{payload: "0123456789"},
	}
}

func (h *harness) runner(cfg Config) *Runner {
	cfg.BaseURL = testBaseURL
	cfg.LinkPollInterval = time.Millisecond
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = time.Millisecond
	}
	if cfg.LinkTimeout == 0 {
		cfg.LinkTimeout = time.Second
	}
	w := watcher.New(watcher.Config{
		PollInterval: time.Millisecond,
		StallPolls:   3,
		IdlePolls:    3,
		MaxWait:      5 * time.Second,
	}, zap.NewNop())

	return New(cfg, Deps{
		Sessions: h.factory,
		FS:       h.fs,
		Items:    h.store,
		Attempts: h.store,
		Reporter: h.reporter,
		Watcher:  w,
		Resumer:  resumer.New(h.tool, zap.NewNop()),
		DirProbe: h.fs.DownloadProbe,
		Rand:     rand.New(rand.NewPCG(1, 2)),
	}, zap.NewNop())
}

func (h *harness) mirror(t *testing.T, gameID, fileName string) {
	t.Helper()
	dir := h.fs.TargetDir(gameID)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("old"), 0644))
}

func TestRun_BrowserModeMirrorsMissingGames(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/zelda": {name: "Zelda", fileName: "zelda.zip", linkMisses: 2},
	})
	h.mirror(t, "snes/mario", "mario.zip")

	r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 2})
	summary, err := r.Run(context.Background(), []string{"snes/mario", "snes/zelda"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Existing)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, []int{25, 50, 100}, h.reporter.progress)

	data, err := os.ReadFile(filepath.Join(h.fs.TargetDir("snes/zelda"), "zelda.zip"))
	require.NoError(t, err)
	assert.Equal(t, "rom:Zelda", string(data))

	item, err := h.store.GetItem("snes/zelda")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, domain.ItemStatusDownloaded, item.Status)
	assert.Equal(t, "Zelda", item.ArtifactName)

	attempts, err := h.store.ListAttempts("snes/zelda")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.ItemStatusDownloaded, attempts[0].Outcome)
	assert.NotEmpty(t, attempts[0].ID)

	_, err = os.Stat(h.fs.Workspace().Dir())
	assert.True(t, os.IsNotExist(err), "workspace should be removed after success")
	assert.Equal(t, len(h.factory.opened), h.factory.closed)
}

func TestRun_SkipsUnavailableAndRedirectedGames(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"gone":    {unavailable: true},
		"moved":   {name: "Moved", redirect: testBaseURL + "/"},
		"snes/ok": {name: "Ok", fileName: "ok.zip"},
	})

	r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 2})
	summary, err := r.Run(context.Background(), []string{"gone", "moved", "snes/ok"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Downloaded)

	gone, err := h.store.GetItem("gone")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusNotAvailable, gone.Status)
	assert.Equal(t, 1, gone.Attempts)

	moved, err := h.store.GetItem("moved")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusBadTarget, moved.Status)

	assert.False(t, h.fs.TargetExists("gone"))
	assert.False(t, h.fs.TargetExists("moved"))
}

func TestRun_SkipsRecentlyCheckedItems(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{})

	item := domain.NewItem("gone")
	item.MarkSkipped(domain.ItemStatusNotAvailable, "disabled")
	require.NoError(t, h.store.SaveItem(item))

	r := h.runner(Config{Mode: domain.ModeBrowser, RecheckAfter: time.Hour})
	summary, err := r.Run(context.Background(), []string{"gone"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NotRechecked)
	assert.Empty(t, h.factory.opened)
}

func TestRun_RetriesStalledDownloadThenGivesUp(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/stuck": {name: "Stuck", fileName: "stuck.zip", stuck: true},
	})

	r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 2})
	summary, err := r.Run(context.Background(), []string{"snes/stuck"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, h.factory.opened, 2)

	item, err := h.store.GetItem("snes/stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusFailed, item.Status)
	assert.Equal(t, 2, item.Attempts)
	assert.Contains(t, item.LastError, "stalled")

	attempts, err := h.store.ListAttempts("snes/stuck")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, "retry", a.Outcome)
	}

	// kept for the next run
	assert.True(t, h.fs.Workspace().Exists("stuck.zip.crdownload"))
	assert.False(t, h.fs.TargetExists("snes/stuck"))
}

func TestRun_LinkTimeoutIsRetried(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/slow": {name: "Slow", fileName: "slow.zip", linkMisses: 1 << 30},
	})

	r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 1, LinkTimeout: 20 * time.Millisecond})
	summary, err := r.Run(context.Background(), []string{"snes/slow"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}

func TestRun_UnknownErrorPolicy(t *testing.T) {
	tests := []struct {
		name    string
		onError string
		wantErr bool
	}{
		{name: "abort", onError: OnErrorAbort, wantErr: true},
		{name: "skip", onError: OnErrorSkip, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, map[string]*fakePage{})
			h.factory.openErr = errors.New("chrome not installed")

			r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 3, OnError: tt.onError})
			summary, err := r.Run(context.Background(), []string{"a", "b"})

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "chrome not installed")
				assert.Equal(t, 1, summary.Failed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Failed)
			assert.Equal(t, []int{25, 50, 100}, h.reporter.progress)
		})
	}
}

func TestRun_ReporterFailureIsFatal(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{})
	h.mirror(t, "a", "a.zip")
	h.reporter.err = fmt.Errorf("%w: broken pipe", domain.ErrReporterFailed)

	r := h.runner(Config{Mode: domain.ModeBrowser, OnError: OnErrorSkip})
	_, err := r.Run(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReporterFailed)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"a": {name: "A", fileName: "a.zip"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := h.runner(Config{Mode: domain.ModeBrowser})
	_, err := r.Run(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.factory.opened)
}

func TestRun_FetchModeHandsOffToFetchTool(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"psx/ff7": {name: "Final Fantasy VII", fileName: "ff7.7z"},
	})

	r := h.runner(Config{Mode: domain.ModeFetch, MaxAttempts: 1})
	summary, err := r.Run(context.Background(), []string{"psx/ff7"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)

	require.Len(t, h.tool.requests, 1)
	req := h.tool.requests[0]
	assert.Equal(t, "https://cdn.example/ff7.7z", req.URL)
	assert.False(t, req.Resume)
	assert.Equal(t, 1, h.factory.cancelled)

	data, err := os.ReadFile(filepath.Join(h.fs.TargetDir("psx/ff7"), "ff7.7z"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	// the browser's own download directory is not mirrored
	_, err = os.Stat(filepath.Join(h.fs.TargetDir("psx/ff7"), browserDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_FetchModeResumesMatchingPartial(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"psx/ff7": {name: "Final Fantasy VII", fileName: "ff7.7z"},
	})
	ws := h.fs.Workspace()
	require.NoError(t, ws.Ensure())
	require.NoError(t, ws.WriteMarker("Final Fantasy VII"))
	require.NoError(t, os.WriteFile(ws.Path("ff7.7z.part"), []byte("abc"), 0644))

	r := h.runner(Config{Mode: domain.ModeFetch, MaxAttempts: 1})
	_, err := r.Run(context.Background(), []string{"psx/ff7"})
	require.NoError(t, err)

	require.Len(t, h.tool.requests, 1)
	assert.True(t, h.tool.requests[0].Resume)

	data, err := os.ReadFile(filepath.Join(h.fs.TargetDir("psx/ff7"), "ff7.7z"))
	require.NoError(t, err)
	assert.Equal(t, "abc0123456789", string(data))

	attempts, err := h.store.ListAttempts("psx/ff7")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Resumed)
	assert.Equal(t, int64(13), attempts[0].Bytes)
}

func TestRun_RefreshRedownloadsChangedArtifacts(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/changed": {name: "Changed v2", fileName: "changed-v2.zip"},
		"snes/same":    {name: "Same", fileName: "same.zip"},
	})
	for id, name := range map[string]string{"snes/changed": "Changed v1", "snes/same": "Same"} {
		h.mirror(t, id, "old.zip")
		item := domain.NewItem(id)
		item.MarkDownloaded(name, filepath.Join(h.fs.TargetDir(id), "old.zip"))
		require.NoError(t, h.store.SaveItem(item))
	}

	r := h.runner(Config{
		Mode:           domain.ModeBrowser,
		MaxAttempts:    1,
		RefreshEnabled: true,
		RefreshMin:     10,
		RefreshMax:     10,
	})
	summary, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Refreshed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 0, summary.Downloaded)
	assert.Equal(t, []int{50, 75, 100, 100}, h.reporter.progress)

	changed, err := h.store.GetItem("snes/changed")
	require.NoError(t, err)
	assert.Equal(t, "Changed v2", changed.ArtifactName)

	entries, err := os.ReadDir(h.fs.TargetDir("snes/changed"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "changed-v2.zip", entries[0].Name())

	same, err := h.store.GetItem("snes/same")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusDownloaded, same.Status)
	assert.True(t, h.fs.TargetExists("snes/same"))
}

func TestRun_RefreshKeepsMirroredCopyWhenNewVersionVanishes(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/zelda": {name: "Zelda v2", fileName: "zelda-v2.zip", vanishAfter: 1},
	})
	h.mirror(t, "snes/zelda", "zelda-v1.zip")
	item := domain.NewItem("snes/zelda")
	item.MarkDownloaded("Zelda v1", filepath.Join(h.fs.TargetDir("snes/zelda"), "zelda-v1.zip"))
	require.NoError(t, h.store.SaveItem(item))

	refresh := Config{Mode: domain.ModeBrowser, MaxAttempts: 1, RefreshEnabled: true, RefreshMin: 1, RefreshMax: 1}
	_, err := h.runner(refresh).Run(context.Background(), nil)
	require.NoError(t, err)

	got, err := h.store.GetItem("snes/zelda")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusDownloaded, got.Status)
	assert.Equal(t, "Zelda v1", got.ArtifactName)
	assert.NotEmpty(t, got.LastError)

	entries, err := os.ReadDir(h.fs.TargetDir("snes/zelda"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "zelda-v1.zip", entries[0].Name())

	// the next run still samples it
	h.factory.pages["snes/zelda"] = &fakePage{name: "Zelda v1", fileName: "zelda-v1.zip"}
	summary, err := h.runner(refresh).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unchanged)
}

func TestRun_RefreshSamplesMirroredGamesInAnyStatus(t *testing.T) {
	pages := map[string]*fakePage{}
	for _, status := range []string{
		domain.ItemStatusPending,
		domain.ItemStatusInProgress,
		domain.ItemStatusNotAvailable,
		domain.ItemStatusBadTarget,
	} {
		pages["snes/"+status] = &fakePage{name: "Same", fileName: "same.zip"}
	}
	h := newHarness(t, pages)
	for id := range pages {
		h.mirror(t, id, "same.zip")
		item := domain.NewItem(id)
		item.ArtifactName = "Same"
		item.Status = strings.TrimPrefix(id, "snes/")
		require.NoError(t, h.store.SaveItem(item))
	}
	// no mirrored copy, so not a candidate
	require.NoError(t, h.store.SaveItem(domain.NewItem("snes/never")))

	r := h.runner(Config{Mode: domain.ModeBrowser, RefreshEnabled: true, RefreshMin: 10, RefreshMax: 10})
	summary, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, len(pages), summary.Unchanged)

	for id := range pages {
		item, err := h.store.GetItem(id)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusDownloaded, item.Status, id)
	}
}

func TestRun_LogsLastAttemptOfFailedItem(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/zelda": {name: "Zelda", fileName: "zelda.zip"},
	})
	item := domain.NewItem("snes/zelda")
	item.MarkFailed("download stalled")
	require.NoError(t, h.store.SaveItem(item))
	require.NoError(t, h.store.RecordAttempt(&domain.AttemptRecord{
		ID:         "a1",
		GameID:     "snes/zelda",
		Mode:       domain.ModeBrowser,
		Outcome:    "retry",
		Error:      "download stalled",
		StartedAt:  time.Now().Add(-time.Hour),
		FinishedAt: time.Now().Add(-time.Hour),
	}))

	core, logs := observer.New(zap.InfoLevel)
	r := h.runner(Config{Mode: domain.ModeBrowser})
	r.logger = zap.New(core)

	summary, err := r.Run(context.Background(), []string{"snes/zelda"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)

	entries := logs.FilterMessage("Retrying previously failed item").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "retry", fields["last_outcome"])
	assert.Equal(t, "download stalled", fields["last_error"])
	assert.Equal(t, "snes/zelda", fields["game_id"])
}

func TestRun_StopsWhenDataDirIsFull(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"a": {name: "A", fileName: "a.zip"},
	})

	r := h.runner(Config{Mode: domain.ModeBrowser})
	r.deps.Space = fullSpace{}
	_, err := r.Run(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrInsufficientSpace)
	assert.Empty(t, h.factory.opened)
}

type fullSpace struct{}

func (fullSpace) CheckSpace(int64) (*port.SpaceCheckResult, error) {
	return &port.SpaceCheckResult{HasSpace: false, LimitedByDiskUsage: true, DiskUsedPct: 99}, nil
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{}, Deps{}, zap.NewNop())
	assert.Equal(t, DefaultConfig().BaseURL, r.config.BaseURL)
	assert.Equal(t, domain.ModeBrowser, r.config.Mode)
	assert.Equal(t, 1, r.config.MaxAttempts)
	assert.Equal(t, OnErrorAbort, r.config.OnError)
	assert.NotNil(t, r.deps.Rand)
	assert.NotNil(t, r.deps.Now)
}

func TestRun_CancelledWhileWaitingToRetry(t *testing.T) {
	h := newHarness(t, map[string]*fakePage{
		"snes/stuck": {name: "Stuck", fileName: "stuck.zip", stuck: true},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	r := h.runner(Config{Mode: domain.ModeBrowser, MaxAttempts: 3, MaxRetryDelay: time.Hour})
	_, err := r.Run(ctx, []string{"snes/stuck"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, h.factory.opened, 1)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		maxDelay time.Duration
		err      error
		lo, hi   time.Duration
	}{
		{
			name:     "stall",
			maxDelay: time.Minute,
			err:      domain.NewStalledError("no growth"),
			lo:       domain.StallRetryAfter / 2,
			hi:       domain.StallRetryAfter * 3 / 2,
		},
		{
			name:     "capped",
			maxDelay: 4 * time.Second,
			err:      domain.NewTransferError(4, ""),
			lo:       2 * time.Second,
			hi:       6 * time.Second,
		},
		{
			name:     "no pause requested",
			maxDelay: time.Minute,
			err:      context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{MaxRetryDelay: tt.maxDelay}, Deps{Rand: rand.New(rand.NewPCG(3, 4))}, zap.NewNop())
			for i := 0; i < 50; i++ {
				d := r.retryDelay(tt.err)
				assert.GreaterOrEqual(t, d, tt.lo)
				assert.LessOrEqual(t, d, tt.hi)
			}
		})
	}
}
