// Package fetchtool runs an external download program (wget by default)
// and maps its exit status onto domain errors.
package fetchtool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Placeholders substituted in argument templates
const (
	PlaceholderURL       = "{url}"
	PlaceholderFile      = "{file}"
	PlaceholderWaitRetry = "{waitretry}"
)

// outputTailLines is how many trailing output lines a TransferError carries
const outputTailLines = 10

// Config holds fetch tool configuration
type Config struct {
	// Command is the program to execute
	Command string

	// Args is the argument template; {url}, {file} and {waitretry} are substituted
	Args []string

	// ResumeArgs are inserted before Args when resuming a partial file
	ResumeArgs []string

	// NotFoundExitCodes map to ErrRemoteNotFound instead of a transfer failure
	NotFoundExitCodes []int

	// RetryWait is the mean of {waitretry}. Each invocation draws a value
	// in [RetryWait/2, 3*RetryWait/2], in whole seconds.
	RetryWait time.Duration
}

// DefaultConfig returns the wget invocation used by the mirror
func DefaultConfig() Config {
	return Config{
		Command: "wget",
		Args: []string{
			"--tries=0",
			// wget backs off linearly up to this many seconds between retries
			"--waitretry=" + PlaceholderWaitRetry,
			"--random-wait",
			"--wait=2",
			"--timeout=60",
			"--passive-ftp",
			"--no-verbose",
			"-O", PlaceholderFile,
			PlaceholderURL,
		},
		ResumeArgs: []string{"--continue"},
		// wget: server issued an error response
		NotFoundExitCodes: []int{8},
		RetryWait:         10 * time.Second,
	}
}

// Tool implements port.FetchTool by running an external command
type Tool struct {
	config Config
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Ensure Tool implements port.FetchTool
var _ port.FetchTool = (*Tool)(nil)

// New creates a new fetch tool
func New(cfg Config, logger *zap.Logger) *Tool {
	if cfg.Command == "" {
		cfg = DefaultConfig()
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultConfig().RetryWait
	}
	seed := uint64(time.Now().UnixNano())
	return &Tool{
		config: cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// waitRetrySeconds draws the retry wait for one invocation
func (t *Tool) waitRetrySeconds() int64 {
	base := int64(t.config.RetryWait / time.Second)
	if base < 1 {
		base = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return max(base/2+t.rng.Int64N(base+1), 1)
}

// BuildArgs expands the argument template for a request
func (t *Tool) BuildArgs(req port.FetchRequest) []string {
	args := make([]string, 0, len(t.config.ResumeArgs)+len(t.config.Args))
	if req.Resume {
		args = append(args, t.config.ResumeArgs...)
	}
	waitRetry := strconv.FormatInt(t.waitRetrySeconds(), 10)
	for _, a := range t.config.Args {
		a = strings.ReplaceAll(a, PlaceholderURL, req.URL)
		a = strings.ReplaceAll(a, PlaceholderFile, req.Path)
		a = strings.ReplaceAll(a, PlaceholderWaitRetry, waitRetry)
		args = append(args, a)
	}
	return args
}

// Fetch runs the tool and blocks until it exits
func (t *Tool) Fetch(ctx context.Context, req port.FetchRequest) error {
	args := t.BuildArgs(req)
	cmd := exec.CommandContext(ctx, t.config.Command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	t.logger.Info("Starting fetch tool",
		zap.String("command", t.config.Command),
		zap.String("url", req.URL),
		zap.String("path", req.Path),
		zap.Bool("resume", req.Resume))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", t.config.Command, err)
	}

	tail := newTailBuffer(outputTailLines)
	var g errgroup.Group
	g.Go(func() error { return t.drain(stdout, "stdout", tail) })
	g.Go(func() error { return t.drain(stderr, "stderr", tail) })

	// Pipes must be fully read before Wait closes them
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr == nil {
		if drainErr != nil {
			t.logger.Warn("Failed to read fetch tool output", zap.Error(drainErr))
		}
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("failed to run %s: %w", t.config.Command, waitErr)
	}

	// Killed because the context ended
	if ctx.Err() != nil && (exitErr.ExitCode() < 0 || exitErr.ExitCode() > 128) {
		return ctx.Err()
	}

	code := exitErr.ExitCode()
	for _, nf := range t.config.NotFoundExitCodes {
		if code == nf {
			return domain.NewRemoteNotFoundError(req.URL)
		}
	}
	return domain.NewTransferError(code, tail.String())
}

// drain forwards tool output to the logger line by line
func (t *Tool) drain(r io.Reader, stream string, tail *tailBuffer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tail.Add(line)
		t.logger.Debug("fetch tool output", zap.String("stream", stream), zap.String("line", line))
	}
	return scanner.Err()
}

// tailBuffer keeps the last n lines written to it
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{max: n}
}

func (b *tailBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
