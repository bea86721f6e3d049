package port

import "context"

// DownloadInfo is what the browser's download manager knows about the
// download it just started
type DownloadInfo struct {
	URL      string
	FileName string
}

// BrowserSession is one browser instance driving one item's pages.
// Sessions are opened per item and must be closed on every exit path.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error

	// ClickLinkText clicks the first anchor whose visible text equals text.
	// found is false when no such anchor exists yet.
	ClickLinkText(ctx context.Context, text string) (found bool, err error)

	CurrentURL(ctx context.Context) (string, error)

	// EvalScript evaluates a JavaScript expression and returns its value
	// encoded as JSON
	EvalScript(ctx context.Context, expr string) (string, error)

	HTML(ctx context.Context) (string, error)
	ScrollToEnd(ctx context.Context) error

	// DownloadInfo opens the download manager and waits for the first entry
	DownloadInfo(ctx context.Context) (*DownloadInfo, error)

	// CancelDownload cancels the first entry of the download manager
	CancelDownload(ctx context.Context) error

	// DownloadProbe returns a probe reading progress from the download manager
	DownloadProbe() DownloadProbe

	Close() error
}

// SessionFactory opens browser sessions that save downloads into downloadDir
type SessionFactory interface {
	Open(ctx context.Context, downloadDir string) (BrowserSession, error)
}
