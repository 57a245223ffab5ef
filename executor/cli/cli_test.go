package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func TestExecutor_Start(t *testing.T) {
	skipShort(t)

	require.NoError(t, New(Config{Command: "sh"}).Start())

	err := New(Config{Command: "definitely-not-a-command"}).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command definitely-not-a-command not found")
}

func TestExecutor_Execute(t *testing.T) {
	skipShort(t)

	e := New(Config{Command: "sh"})
	t.Cleanup(func() { _ = e.Close() })

	before := testutil.ToFloat64(execTotal.WithLabelValues("sh", "ok"))

	out, err := e.Execute(context.Background(), strings.NewReader("hello world\n"), "-c", "cat; echo \"$0 $1\"", "arg0", "arg1")
	require.NoError(t, err)
	assert.Equal(t, "hello world\narg0 arg1\n", string(out))

	assert.Equal(t, before+1, testutil.ToFloat64(execTotal.WithLabelValues("sh", "ok")))
}

func TestExecutor_Execute_Stderr(t *testing.T) {
	skipShort(t)

	e := New(Config{Command: "sh"})
	t.Cleanup(func() { _ = e.Close() })

	out, err := e.Execute(context.Background(), nil, "-c", "echo 'error message' >&2; exit 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed: error message")
	assert.Empty(t, out)
}

func TestExecutor_Execute_NoStderr(t *testing.T) {
	skipShort(t)

	e := New(Config{Command: "sh"})
	t.Cleanup(func() { _ = e.Close() })

	_, err := e.Execute(context.Background(), nil, "-c", "exit 3")
	require.Error(t, err)
	assert.Equal(t, "command failed: exit status 3", err.Error())
}

func TestExecutor_Execute_ContextCanceled(t *testing.T) {
	skipShort(t)

	e := New(Config{Command: "sh"})
	t.Cleanup(func() { _ = e.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, nil, "-c", "sleep 5")
	assert.Error(t, err)
}

func TestExecutor_Close(t *testing.T) {
	e := New(Config{Command: "sh"})

	require.NoError(t, e.Close())
	// второе закрытие без ошибки
	require.NoError(t, e.Close())

	_, err := e.Execute(context.Background(), nil, "-c", "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}
