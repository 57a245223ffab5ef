package smtp

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/pure-golang/fluentmail/mail/smtp")

// startSpan starts the client span of one send with the relay attributes.
func startSpan(ctx context.Context, cfg Config) (context.Context, trace.Span) {
	return tracer.Start(ctx, "SMTP.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("smtp.host", cfg.Host),
			attribute.Int("smtp.port", cfg.ResolvedPort()),
			attribute.String("smtp.security", cfg.Security.String()),
		),
	)
}

// recordError записывает ошибку в спан
func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
