package executor

import (
	"context"
	"io"
)

// Executor запускает внешнюю команду
type Executor interface {
	// Execute запускает команду с аргументами args, передаёт stdin на вход
	// и возвращает stdout
	Execute(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)
	io.Closer
}
