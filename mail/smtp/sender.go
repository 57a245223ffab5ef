package smtp

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/docker/go-units"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pure-golang/fluentmail/logger"
	"github.com/pure-golang/fluentmail/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender implements mail.Sender over one SMTP session per message.
type Sender struct {
	mx        sync.Mutex
	cfg       Config
	transport Transport
	tlsConfig *tls.Config
	closed    bool
}

// Option configures a Sender.
type Option func(*Sender)

// WithTransport replaces the go-smtp transport.
func WithTransport(t Transport) Option {
	return func(s *Sender) { s.transport = t }
}

// WithTLSConfig sets the base TLS config of the default transport,
// e.g. to trust a private CA.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Sender) { s.tlsConfig = cfg }
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config, opts ...Option) *Sender {
	s := &Sender{
		cfg:    cfg,
		closed: false,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = newTransport(cfg, s.tlsConfig)
	}
	return s
}

// Send renders msg with o applied and delivers it to the relay. The
// envelope recipients are the resolved To addresses only.
//
// Credentials stored on msg take precedence over Config.Username and
// Config.Password. Without credentials the configured greeting verb is sent.
func (s *Sender) Send(ctx context.Context, msg *mail.Message, o *mail.Overrides) (err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, s.cfg)
	defer span.End()
	defer func() {
		recordError(span, err)
		recordSend(s.cfg.Security, err, time.Since(start))
	}()

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return ErrClosed
	}

	doc, err := msg.Render(o)
	if err != nil {
		return err
	}
	env, err := msg.Envelope(o)
	if err != nil {
		return err
	}

	creds, auth := msg.Credentials()
	if !auth && s.cfg.Username != "" {
		creds = mail.Credentials{Username: s.cfg.Username, Password: s.cfg.Password}
		auth = true
	}

	span.SetAttributes(
		attribute.String("smtp.from", env.From),
		attribute.Int("smtp.to_count", len(env.To)),
		attribute.Int("smtp.size", len(doc)),
		attribute.Bool("smtp.auth", auth),
	)

	log := logger.FromContext(ctx).With(
		"addr", s.cfg.Addr(),
		"security", s.cfg.Security.String(),
	)

	conn, err := s.transport.Dial(ctx, s.cfg.Security, s.cfg.Addr())
	if err != nil {
		err = sendError("dial", err)
		logger.FromContextWithErr(ctx, err).Error("failed to connect to SMTP server", "addr", s.cfg.Addr())
		return err
	}

	if err = s.session(conn, creds, auth, env, doc); err != nil {
		_ = conn.Close()
		logger.FromContextWithErr(ctx, err).Error("failed to send email", "addr", s.cfg.Addr())
		return err
	}

	if err = conn.Close(); err != nil {
		err = sendError("quit", err)
		logger.FromContextWithErr(ctx, err).Error("failed to close SMTP session", "addr", s.cfg.Addr())
		return err
	}

	log.Info("email sent",
		"from", env.From,
		"recipients", len(env.To),
		"size", units.HumanSize(float64(len(doc))),
	)
	return nil
}

// session runs the greeting or login, then submits the message.
func (s *Sender) session(conn Conn, creds mail.Credentials, auth bool, env mail.Envelope, doc string) error {
	if auth {
		if err := conn.Login(creds.Username, creds.Password); err != nil {
			return loginError(err)
		}
	} else {
		if err := conn.Hello(s.cfg.Verb); err != nil {
			return sendError("hello", err)
		}
	}

	if err := conn.Submit(env.From, env.To, doc); err != nil {
		return sendError("submit", err)
	}
	return nil
}

// Close closes the sender. Sends after Close fail with ErrClosed.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}
