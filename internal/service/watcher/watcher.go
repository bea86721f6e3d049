// Package watcher decides when a browser-initiated download is finished.
//
// The browser offers no completion callback, so the watcher polls an
// observation source and runs a small state machine over the samples: a
// partial file that keeps changing is in progress, a partial file that
// stops changing has stalled, a finished file is complete, and a source
// that stays empty means the download never started.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
	"github.com/vertextoedge/romhustler-mirror/internal/util/ratelimiter"
)

// Config holds watcher configuration
type Config struct {
	PollInterval time.Duration

	// StallPolls is how many poll intervals a partial file may stay
	// unchanged before the download counts as stalled
	StallPolls int

	// IdlePolls is how many empty polls are tolerated before the download
	// counts as never started
	IdlePolls int

	// MaxWait bounds the whole attempt regardless of progress; it is
	// always enforced
	MaxWait time.Duration

	// ProgressLogInterval throttles progress log lines
	ProgressLogInterval time.Duration
}

// DefaultConfig returns default watcher configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:        time.Second,
		StallPolls:          30,
		IdlePolls:           30,
		MaxWait:             6 * time.Hour,
		ProgressLogInterval: 30 * time.Second,
	}
}

// State is the verdict of one poll
type State int

const (
	StateInProgress State = iota
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of feeding one observation to the state machine
type Outcome struct {
	State State

	// Path of the finished file when State is StateComplete
	Path string

	// Reason describes a failure
	Reason string
}

// Result describes a completed download
type Result struct {
	Path    string
	Polls   int
	Elapsed time.Duration
}

// Watcher polls a download probe until the download completes or fails
type Watcher struct {
	config Config
	logger *zap.Logger
}

// New creates a new watcher
func New(cfg Config, logger *zap.Logger) *Watcher {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StallPolls <= 0 {
		cfg.StallPolls = def.StallPolls
	}
	if cfg.IdlePolls <= 0 {
		cfg.IdlePolls = def.IdlePolls
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.ProgressLogInterval <= 0 {
		cfg.ProgressLogInterval = def.ProgressLogInterval
	}
	return &Watcher{
		config: cfg,
		logger: logger,
	}
}

// Step advances the attempt by one observation.
//
// A partial file takes precedence over a finished one. The stall verdict
// is reached on the sample that completes StallPolls unchanged intervals,
// so StallPolls+1 identical samples fail and the verdict is given once:
// callers stop polling on StateFailed.
func (w *Watcher) Step(attempt *domain.DownloadAttempt, obs port.Observation) Outcome {
	attempt.Polls++

	if obs.PartialName != "" {
		attempt.ObservePartial(obs.PartialName, obs.PartialSize)
		if attempt.StableCount >= w.config.StallPolls {
			return Outcome{
				State: StateFailed,
				Reason: fmt.Sprintf("%s stopped growing at %s for %d polls",
					obs.PartialName, humanize.Bytes(uint64(max(obs.PartialSize, 0))), attempt.StableCount),
			}
		}
		return Outcome{State: StateInProgress}
	}

	if obs.CompletePath != "" {
		return Outcome{State: StateComplete, Path: obs.CompletePath}
	}

	attempt.ObserveNothing()
	if attempt.IdleCount > w.config.IdlePolls {
		return Outcome{
			State:  StateFailed,
			Reason: fmt.Sprintf("no download started after %d polls", attempt.IdleCount),
		}
	}
	return Outcome{State: StateInProgress}
}

// Watch polls probe until the download completes, stalls, MaxWait passes
// or ctx is cancelled. Stalls and the MaxWait deadline return a retryable
// ErrDownloadStalled; cancellation of ctx returns ctx.Err().
func (w *Watcher) Watch(ctx context.Context, probe port.DownloadProbe, attempt *domain.DownloadAttempt) (*Result, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, w.config.MaxWait)
	defer cancel()

	logger := w.logger.With(
		zap.String("attempt_id", attempt.ID),
		zap.String("dir", attempt.TargetDirectory))
	progressLog := ratelimiter.New(w.config.ProgressLogInterval)

	logger.Debug("Watching download",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("stall_polls", w.config.StallPolls),
		zap.Int("idle_polls", w.config.IdlePolls))

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		obs, err := probe.Observe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, w.contextError(parent, ctx)
			}
			return nil, fmt.Errorf("observe download: %w", err)
		}

		out := w.Step(attempt, obs)
		switch out.State {
		case StateComplete:
			elapsed := time.Since(attempt.StartedAt)
			logger.Info("Download complete",
				zap.String("path", out.Path),
				zap.Int("polls", attempt.Polls),
				zap.Duration("elapsed", elapsed))
			return &Result{Path: out.Path, Polls: attempt.Polls, Elapsed: elapsed}, nil

		case StateFailed:
			logger.Warn("Download stalled",
				zap.String("reason", out.Reason),
				zap.Int("polls", attempt.Polls))
			return nil, domain.NewStalledError(out.Reason)
		}

		if obs.PartialName != "" {
			progressLog.Do(func(suppressed int) {
				logger.Info("Download in progress",
					zap.String("file", obs.PartialName),
					zap.String("size", humanize.Bytes(uint64(max(obs.PartialSize, 0)))),
					zap.Int("stable_polls", attempt.StableCount),
					zap.Int("suppressed", suppressed))
			})
		}

		select {
		case <-ctx.Done():
			return nil, w.contextError(parent, ctx)
		case <-ticker.C:
		}
	}
}

// contextError tells a MaxWait expiry apart from cancellation by the caller
func (w *Watcher) contextError(parent, ctx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return domain.NewStalledError(fmt.Sprintf("no completion within %s: %v", w.config.MaxWait, ctx.Err()))
}
