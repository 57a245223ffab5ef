package cli

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pure-golang/fluentmail/executor"
)

var _ executor.Executor = (*Executor)(nil)

// ErrClosed возвращается при вызове Execute после Close
var ErrClosed = errors.New("executor is closed")

// Executor реализует интерфейс executor.Executor для CLI утилит
type Executor struct {
	cmd    string
	closed bool
	mx     sync.RWMutex
}

// New создаёт новый CLI executor
func New(cfg Config) *Executor {
	return &Executor{
		cmd:    cfg.Command,
		closed: false,
	}
}

// Start проверяет наличие команды в системе
func (e *Executor) Start() error {
	if _, err := exec.LookPath(e.cmd); err != nil {
		return errors.Wrapf(err, "command %s not found", e.cmd)
	}
	return nil
}

// Execute выполняет команду, stderr попадает в текст ошибки
func (e *Executor) Execute(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	start := time.Now()
	stdout, stderr, err := e.executeWithOutput(ctx, stdin, args)
	recordExecution(filepath.Base(e.cmd), status(err), time.Since(start))
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return stdout, errors.Wrapf(err, "command failed: %s", msg)
		}
		return stdout, errors.Wrap(err, "command failed")
	}
	return stdout, nil
}

// executeWithOutput выполняет команду и возвращает stdout и stderr
func (e *Executor) executeWithOutput(ctx context.Context, stdin io.Reader, args []string) ([]byte, []byte, error) {
	ctx, span := tracer.Start(ctx, "executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("executor.command", e.cmd),
		attribute.Int("executor.args", len(args)),
	)

	e.mx.RLock()
	defer e.mx.RUnlock()

	if e.closed {
		recordError(span, ErrClosed)
		return nil, nil, ErrClosed
	}

	cmd := exec.CommandContext(ctx, e.cmd, args...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		recordError(span, err)
		return stdout.Bytes(), stderr.Bytes(), err
	}

	span.SetStatus(codes.Ok, "")
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Close закрывает executor
func (e *Executor) Close() error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
