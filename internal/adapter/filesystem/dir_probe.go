package filesystem

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// DirProbe observes a directory a browser downloads into
type DirProbe struct {
	ws *Workspace
}

// Ensure DirProbe implements port.DownloadProbe
var _ port.DownloadProbe = (*DirProbe)(nil)

// NewDirProbe creates a probe over the workspace directory.
// Dotfiles (the freshness marker, browser scratch files) and
// subdirectories are ignored.
func NewDirProbe(ws *Workspace) *DirProbe {
	return &DirProbe{ws: ws}
}

// Observe lists the directory once
func (p *DirProbe) Observe(ctx context.Context) (port.Observation, error) {
	if err := ctx.Err(); err != nil {
		return port.Observation{}, err
	}

	entries, err := os.ReadDir(p.ws.Dir())
	if os.IsNotExist(err) {
		return port.Observation{}, nil
	}
	if err != nil {
		return port.Observation{}, fmt.Errorf("failed to list %s: %w", p.ws.Dir(), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var obs port.Observation
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if p.ws.IsPartial(name) {
			if obs.PartialName != "" {
				continue
			}
			info, err := e.Info()
			if err != nil {
				// removed between listing and stat
				continue
			}
			obs.PartialName = name
			obs.PartialSize = info.Size()
			continue
		}
		if obs.CompletePath == "" {
			obs.CompletePath = p.ws.Path(name)
		}
	}
	return obs, nil
}
