// Package control talks to the host mirror process over its unix socket.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// DefaultSocketPath is where the host mirror process listens
const DefaultSocketPath = "/run/mirrors/api.socket"

// Message names understood by the host
const (
	MessageProgress      = "progress"
	MessageErrorOccurred = "error_occured"
)

// Message is one newline-delimited JSON object sent to the host
type Message struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type progressData struct {
	Progress int `json:"progress"`
}

type errorData struct {
	ExcInfo string `json:"exc_info"`
}

// Reporter implements port.ProgressReporter over a unix stream socket
type Reporter struct {
	mu           sync.Mutex
	conn         net.Conn
	writeTimeout time.Duration
	logger       *zap.Logger
}

// Ensure Reporter implements port.ProgressReporter
var _ port.ProgressReporter = (*Reporter)(nil)

// Dial connects to the host socket
func Dial(ctx context.Context, socketPath string, writeTimeout time.Duration, logger *zap.Logger) (*Reporter, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrReporterFailed, socketPath, err)
	}
	return NewReporter(conn, writeTimeout, logger), nil
}

// NewReporter wraps an established connection
func NewReporter(conn net.Conn, writeTimeout time.Duration, logger *zap.Logger) *Reporter {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Reporter{
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Progress reports overall completion, clamped to 0..100
func (r *Reporter) Progress(percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	r.logger.Debug("Reporting progress", zap.Int("progress", percent))
	return r.send(Message{Message: MessageProgress, Data: progressData{Progress: percent}})
}

// ErrorOccurred reports a fatal failure of the run
func (r *Reporter) ErrorOccurred(info string) error {
	return r.send(Message{Message: MessageErrorOccurred, Data: errorData{ExcInfo: info}})
}

// Close closes the connection
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *Reporter) send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrReporterFailed, msg.Message, err)
	}
	payload = append(payload, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("%w: connection closed", domain.ErrReporterFailed)
	}
	if err := r.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrReporterFailed, err)
	}
	if _, err := r.conn.Write(payload); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrReporterFailed, msg.Message, err)
	}
	return nil
}

// Discard is a reporter that only logs, used when no host socket is configured
type Discard struct {
	logger *zap.Logger
}

// Ensure Discard implements port.ProgressReporter
var _ port.ProgressReporter = (*Discard)(nil)

// NewDiscard creates a logging-only reporter
func NewDiscard(logger *zap.Logger) *Discard {
	return &Discard{logger: logger}
}

func (d *Discard) Progress(percent int) error {
	d.logger.Info("Progress", zap.Int("progress", percent))
	return nil
}

func (d *Discard) ErrorOccurred(info string) error {
	d.logger.Error("Run failed", zap.String("exc_info", info))
	return nil
}

func (d *Discard) Close() error { return nil }
