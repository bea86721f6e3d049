// Package resumer decides whether leftover partial data can be continued
// and delegates the byte transfer to an external fetch tool.
package resumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Decision is what the resumer does with a workspace
type Decision int

const (
	// DecisionRestart purges the workspace and fetches from scratch
	DecisionRestart Decision = iota
	// DecisionResume continues the existing partial file
	DecisionResume
	// DecisionDone means the complete artifact is already present
	DecisionDone
)

func (d Decision) String() string {
	switch d {
	case DecisionRestart:
		return "restarting"
	case DecisionResume:
		return "resuming"
	case DecisionDone:
		return "done"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// FreshDownloadNeeded reports whether the workspace must be purged before
// fetching artifact. Leftover data is only trusted when the freshness
// marker names the same artifact and the file or its partial exists.
func FreshDownloadNeeded(ws port.Workspace, artifact domain.Artifact) (bool, error) {
	stored, ok, err := ws.ReadMarker()
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	if !artifact.MarkerMatches(stored) {
		return true, nil
	}
	if !ws.Exists(artifact.FileName) && !ws.Exists(artifact.PartialName()) {
		return true, nil
	}
	return false, nil
}

// Resumer fetches artifacts into a workspace, continuing partial files
// where the freshness marker allows it
type Resumer struct {
	tool   port.FetchTool
	logger *zap.Logger
}

// New creates a new resumer
func New(tool port.FetchTool, logger *zap.Logger) *Resumer {
	return &Resumer{
		tool:   tool,
		logger: logger,
	}
}

// Plan inspects the workspace and picks a decision without touching it
func (r *Resumer) Plan(ws port.Workspace, artifact domain.Artifact) (Decision, error) {
	fresh, err := FreshDownloadNeeded(ws, artifact)
	if err != nil {
		return DecisionRestart, err
	}
	if fresh {
		return DecisionRestart, nil
	}
	if ws.Exists(artifact.FileName) {
		return DecisionDone, nil
	}
	return DecisionResume, nil
}

// Fetch brings artifact into the workspace. The returned result points at
// the complete file inside the workspace.
//
// The fetch tool writes into FileName.part; the file is renamed to
// FileName only after the tool exits successfully. Tool failures are
// returned as they are: retrying is left to the caller.
func (r *Resumer) Fetch(ctx context.Context, ws port.Workspace, artifact domain.Artifact) (*domain.DownloadResult, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	if err := ws.Ensure(); err != nil {
		return nil, err
	}

	decision, err := r.Plan(ws, artifact)
	if err != nil {
		r.logger.Warn("Failed to read freshness marker, restarting",
			zap.String("artifact", artifact.Name),
			zap.Error(err))
		decision = DecisionRestart
	}

	logger := r.logger.With(
		zap.String("artifact", artifact.Name),
		zap.String("file", artifact.FileName),
		zap.Stringer("decision", decision))

	result := &domain.DownloadResult{Path: ws.Path(artifact.FileName)}

	switch decision {
	case DecisionDone:
		size, err := ws.FileSize(artifact.FileName)
		if err != nil {
			return nil, err
		}
		logger.Info("Artifact already complete in workspace")
		result.BytesWritten = size
		result.Resumed = true
		result.ResumedFrom = size
		return result, nil

	case DecisionResume:
		size, err := ws.FileSize(artifact.PartialName())
		if err != nil {
			return nil, err
		}
		result.Resumed = true
		result.ResumedFrom = size
		logger.Info("Resuming partial download", zap.Int64("offset", size))

	default:
		if err := ws.Purge(); err != nil {
			return nil, err
		}
		if err := ws.WriteMarker(artifact.Name); err != nil {
			return nil, err
		}
		logger.Info("Starting fresh download")
	}

	err = r.tool.Fetch(ctx, port.FetchRequest{
		URL:    artifact.URL,
		Path:   ws.Path(artifact.PartialName()),
		Resume: result.Resumed,
	})
	if err != nil {
		return nil, err
	}

	if err := ws.Rename(artifact.PartialName(), artifact.FileName); err != nil {
		return nil, fmt.Errorf("failed to finish %s: %w", artifact.FileName, err)
	}

	size, err := ws.FileSize(artifact.FileName)
	if err != nil {
		return nil, err
	}
	result.BytesWritten = size

	logger.Info("Fetch finished",
		zap.Int64("size", size),
		zap.Int64("resumed_from", result.ResumedFrom))

	return result, nil
}
