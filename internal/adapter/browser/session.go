// Package browser drives a Chrome instance through the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Config holds browser configuration
type Config struct {
	// Bin is the Chrome binary; empty looks it up or lets rod download one
	Bin string

	Headless  bool
	NoSandbox bool

	// NavigateTimeout bounds a single page load
	NavigateTimeout time.Duration

	// PollInterval paces waiting for the download manager
	PollInterval time.Duration
}

// DefaultConfig returns the default browser configuration
func DefaultConfig() Config {
	return Config{
		Headless:        true,
		NoSandbox:       true,
		NavigateTimeout: 60 * time.Second,
		PollInterval:    time.Second,
	}
}

// Factory launches one browser per session
type Factory struct {
	config Config
	logger *zap.Logger
}

// Ensure Factory implements port.SessionFactory
var _ port.SessionFactory = (*Factory)(nil)

// NewFactory creates a new session factory
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Factory{config: cfg, logger: logger}
}

// Open launches Chrome with downloads allowed into downloadDir
func (f *Factory) Open(ctx context.Context, downloadDir string) (port.BrowserSession, error) {
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	l := launcher.New().Context(ctx).Headless(f.config.Headless)
	if f.config.NoSandbox {
		l = l.Set("no-sandbox")
	}
	if f.config.Bin != "" {
		l = l.Bin(f.config.Bin)
	} else if path, found := launcher.LookPath(); found {
		l = l.Bin(path)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	s := &Session{
		launcher:    l,
		browser:     browser,
		downloadDir: downloadDir,
		config:      f.config,
		logger:      f.logger,
	}

	err = proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: downloadDir,
	}.Call(browser)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to allow downloads: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	f.logger.Debug("Browser session opened",
		zap.String("control_url", controlURL),
		zap.String("download_dir", downloadDir))

	return s, nil
}

// Session is one launched browser with a single page
type Session struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *rod.Page
	downloadDir string
	config      Config
	logger      *zap.Logger
}

// Ensure Session implements port.BrowserSession
var _ port.BrowserSession = (*Session)(nil)

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.config.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.NavigateTimeout)
		defer cancel()
	}

	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	return nil
}

// Click waits for an element matching selector and clicks it
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickLinkText clicks the first anchor whose text is exactly text
func (s *Session) ClickLinkText(ctx context.Context, text string) (bool, error) {
	pattern := `^\s*` + regexp.QuoteMeta(text) + `\s*$`
	found, el, err := s.page.Context(ctx).HasR("a", pattern)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return true, fmt.Errorf("click %q: %w", text, err)
	}
	return true, nil
}

// CurrentURL returns the URL the page ended up on
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// EvalScript evaluates a JavaScript function expression
func (s *Session) EvalScript(ctx context.Context, expr string) (string, error) {
	res, err := s.page.Context(ctx).Eval(expr)
	if err != nil {
		return "", fmt.Errorf("eval script: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// HTML returns the rendered document
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// ScrollToEnd scrolls to the bottom of the document
func (s *Session) ScrollToEnd(ctx context.Context) error {
	_, err := s.EvalScript(ctx, scrollToEndJS)
	return err
}

// DownloadInfo opens the download manager and waits until its first entry
// has a URL and a file name
func (s *Session) DownloadInfo(ctx context.Context) (*port.DownloadInfo, error) {
	if err := s.Navigate(ctx, DownloadsURL); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		raw, err := s.EvalScript(ctx, downloadEntryJS)
		if err != nil {
			return nil, err
		}
		text, err := decodeScriptResult(raw)
		if err != nil {
			return nil, err
		}
		entry, err := parseDownloadEntry(text)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.URL != "" && entry.FileName != "" {
			return &port.DownloadInfo{URL: entry.URL, FileName: entry.FileName}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CancelDownload cancels the first entry of the download manager
func (s *Session) CancelDownload(ctx context.Context) error {
	raw, err := s.EvalScript(ctx, cancelDownloadJS)
	if err != nil {
		return err
	}
	text, err := decodeScriptResult(raw)
	if err != nil {
		return err
	}
	if text != "true" {
		return errors.New("no cancellable download in download manager")
	}
	return nil
}

// DownloadProbe returns a probe backed by this session's download manager
func (s *Session) DownloadProbe() port.DownloadProbe {
	return NewManagerProbe(s, s.downloadDir)
}

// Close shuts the browser down and removes its profile
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		// the session context may already be cancelled
		err = s.browser.Context(context.Background()).Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return err
}
