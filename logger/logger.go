package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/pure-golang/fluentmail/logger/devslog"
	"github.com/pure-golang/fluentmail/logger/noop"
	"github.com/pure-golang/fluentmail/logger/stdjson"
)

type Provider string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/fluentmail/logger")

const (
	ProviderDevSlog Provider = "dev"      // for dev
	ProviderStdJson Provider = "std_json" // for production
	ProviderNoop    Provider = "noop"     // for unit tests
)

// Decode implements envconfig.Decoder.
func (p *Provider) Decode(value string) error {
	switch v := Provider(strings.ToLower(value)); v {
	case ProviderDevSlog, ProviderStdJson, ProviderNoop:
		*p = v
		return nil
	case "":
		*p = ProviderStdJson
		return nil
	default:
		return errors.Errorf("unknown log provider %q", value)
	}
}

// Config selects the slog handler. Level accepts slog names ("debug",
// "info", "warn", "error") with optional offsets like "info+2".
type Config struct {
	Provider Provider   `envconfig:"LOG_PROVIDER" default:"std_json"`
	Level    slog.Level `envconfig:"LOG_LEVEL" default:"info"`
}

// New creates a slog.Logger writing to w.
func New(c Config, w io.Writer) *slog.Logger {
	switch c.Provider {
	case ProviderDevSlog:
		return devslog.New(w, c.Level)
	case ProviderNoop:
		return noop.New()
	default:
		return stdjson.New(w, c.Level)
	}
}

// InitDefault installs a logger writing to stderr as the slog default.
// Stdout is left to command output such as rendered messages.
func InitDefault(c Config) {
	slog.SetDefault(New(c, os.Stderr))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Error(err.Error())
	}))
}

// FromContext extract logger from context if exists or return default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// NewContext pack logger into context.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// FromContextWithErr extract logger from context and attach error field
// and stack trace when the error carries one.
func FromContextWithErr(ctx context.Context, err error) *slog.Logger {
	return appendErr(FromContext(ctx), err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return l
	}

	var stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}
