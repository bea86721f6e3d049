package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// partialSuffix is what Chrome appends to a file it is still writing
const partialSuffix = ".crdownload"

// scriptRunner is the part of a session the manager probe needs
type scriptRunner interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	EvalScript(ctx context.Context, expr string) (string, error)
}

// ManagerProbe reads download progress from chrome://downloads.
//
// The manager shows a percentage and a status line instead of a byte
// count, so the probe reports a progress counter as the partial size: it
// advances whenever either value changes. A download that stops moving
// therefore looks like a partial file of constant size to the watcher.
type ManagerProbe struct {
	runner      scriptRunner
	downloadDir string

	lastPercent float64
	lastStatus  string
	ticks       int64
	seen        bool
}

// Ensure ManagerProbe implements port.DownloadProbe
var _ port.DownloadProbe = (*ManagerProbe)(nil)

// NewManagerProbe creates a probe for downloads saved into downloadDir
func NewManagerProbe(runner scriptRunner, downloadDir string) *ManagerProbe {
	return &ManagerProbe{runner: runner, downloadDir: downloadDir}
}

// Observe samples the first download manager entry
func (p *ManagerProbe) Observe(ctx context.Context) (port.Observation, error) {
	current, err := p.runner.CurrentURL(ctx)
	if err != nil {
		return port.Observation{}, err
	}
	if !strings.HasPrefix(current, "chrome://downloads") {
		if err := p.runner.Navigate(ctx, DownloadsURL); err != nil {
			return port.Observation{}, fmt.Errorf("failed to open download manager: %w", err)
		}
	}

	raw, err := p.runner.EvalScript(ctx, downloadEntryJS)
	if err != nil {
		return port.Observation{}, err
	}
	text, err := decodeScriptResult(raw)
	if err != nil {
		return port.Observation{}, err
	}
	entry, err := parseDownloadEntry(text)
	if err != nil {
		return port.Observation{}, err
	}
	if entry == nil || entry.FileName == "" {
		return port.Observation{}, nil
	}

	switch {
	case entry.failed():
		return port.Observation{}, domain.NewStalledError("browser reported download " + strings.ToLower(entry.State))
	case entry.complete():
		return port.Observation{CompletePath: filepath.Join(p.downloadDir, entry.FileName)}, nil
	}

	if !p.seen || entry.Percent != p.lastPercent || entry.Status != p.lastStatus {
		if p.seen {
			p.ticks++
		}
		p.seen = true
		p.lastPercent = entry.Percent
		p.lastStatus = entry.Status
	}

	return port.Observation{
		PartialName: entry.FileName + partialSuffix,
		PartialSize: p.ticks,
	}, nil
}
