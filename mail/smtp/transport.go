package smtp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/pkg/errors"
)

// Conn is one session with a relay, opened by a Transport.
type Conn interface {
	// Hello sends the greeting verb.
	Hello(verb Verb) error
	// Login authenticates with PLAIN, or LOGIN when only LOGIN is offered.
	Login(username, password string) error
	// Submit runs MAIL FROM, one RCPT TO per address and DATA with doc.
	Submit(from string, to []string, doc string) error
	// Close sends QUIT and closes the connection.
	Close() error
}

// Transport opens sessions with a relay.
type Transport interface {
	Dial(ctx context.Context, security Security, addr string) (Conn, error)
}

var _ Transport = (*smtpTransport)(nil)

// smtpTransport is the go-smtp backed Transport.
type smtpTransport struct {
	localName string
	timeout   time.Duration
	tlsConfig *tls.Config
	insecure  bool
}

func newTransport(cfg Config, tlsConfig *tls.Config) *smtpTransport {
	return &smtpTransport{
		localName: cfg.localName(),
		timeout:   cfg.Timeout,
		tlsConfig: tlsConfig,
		insecure:  cfg.Insecure,
	}
}

func (t *smtpTransport) Dial(ctx context.Context, security Security, addr string) (Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %s", addr)
	}

	dialer := &net.Dialer{Timeout: t.timeout}
	var conn net.Conn
	if security == SecuritySSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.clientTLSConfig(host)}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}

	if t.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.timeout))
	}
	c, err := gosmtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to read server greeting")
	}
	_ = conn.SetDeadline(time.Time{})
	if t.timeout > 0 {
		c.CommandTimeout = t.timeout
	}

	cl := &client{
		c:         c,
		conn:      conn,
		localName: t.localName,
		timeout:   t.timeout,
	}

	if security == SecurityStartTLS {
		if err := cl.startTLS(t.clientTLSConfig(host)); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	return cl, nil
}

func (t *smtpTransport) clientTLSConfig(host string) *tls.Config {
	cfg := &tls.Config{}
	if t.tlsConfig != nil {
		cfg = t.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if t.insecure {
		cfg.InsecureSkipVerify = true // #nosec G402 -- controlled by config, user's responsibility
	}
	return cfg
}

// client adapts *gosmtp.Client to Conn.
//
// gosmtp.Client greets lazily with EHLO before MAIL and QUIT. After a HELO
// greeting those two commands are written to the text connection directly
// so the relay sees only the configured verb.
type client struct {
	c         *gosmtp.Client
	conn      net.Conn
	localName string
	timeout   time.Duration

	greeted bool
	helo    bool
}

func (cl *client) startTLS(cfg *tls.Config) error {
	if err := cl.c.Hello(cl.localName); err != nil {
		return errors.Wrap(err, "failed to greet before STARTTLS")
	}
	cl.greeted = true

	if err := cl.c.StartTLS(cfg); err != nil {
		return errors.Wrap(err, "failed to start TLS")
	}
	return nil
}

func (cl *client) Hello(verb Verb) error {
	if verb == VerbHELO {
		if err := cl.cmd(250, "HELO %s", cl.localName); err != nil {
			return errors.Wrap(err, "HELO failed")
		}
		cl.greeted = true
		cl.helo = true
		return nil
	}

	// STARTTLS already repeated EHLO on the encrypted connection.
	if cl.greeted {
		return nil
	}
	if err := cl.c.Hello(cl.localName); err != nil {
		return errors.Wrap(err, "EHLO failed")
	}
	cl.greeted = true
	return nil
}

func (cl *client) Login(username, password string) error {
	if !cl.greeted {
		if err := cl.c.Hello(cl.localName); err != nil {
			return errors.Wrap(err, "EHLO failed")
		}
		cl.greeted = true
	}

	_, mechs := cl.c.Extension("AUTH")
	return cl.c.Auth(saslClient(mechs, username, password))
}

// saslClient prefers PLAIN and falls back to LOGIN when it is the only
// supported mechanism.
func saslClient(mechs, username, password string) sasl.Client {
	var plain, login bool
	for _, m := range strings.Fields(strings.ToUpper(mechs)) {
		switch m {
		case sasl.Plain:
			plain = true
		case sasl.Login:
			login = true
		}
	}
	if login && !plain {
		return sasl.NewLoginClient(username, password)
	}
	return sasl.NewPlainClient("", username, password)
}

func (cl *client) Submit(from string, to []string, doc string) error {
	var err error
	if cl.helo {
		err = cl.cmd(250, "MAIL FROM:<%s>", from)
	} else {
		err = cl.c.Mail(from, nil)
	}
	if err != nil {
		return errors.Wrapf(err, "MAIL FROM %s failed", from)
	}

	for _, addr := range to {
		if err := cl.c.Rcpt(addr); err != nil {
			return errors.Wrapf(err, "RCPT TO %s failed", addr)
		}
	}

	w, err := cl.c.Data()
	if err != nil {
		return errors.Wrap(err, "DATA failed")
	}
	if _, err := io.WriteString(w, doc); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "failed to write message")
	}
	return errors.Wrap(w.Close(), "message rejected")
}

func (cl *client) Close() error {
	if !cl.helo {
		if err := cl.c.Quit(); err != nil {
			_ = cl.c.Close()
			return errors.Wrap(err, "QUIT failed")
		}
		return nil
	}

	if err := cl.cmd(221, "QUIT"); err != nil {
		_ = cl.c.Close()
		return errors.Wrap(err, "QUIT failed")
	}
	return cl.c.Close()
}

// cmd writes a command on the text connection and reads one reply.
func (cl *client) cmd(expectCode int, format string, args ...any) error {
	if cl.timeout > 0 {
		_ = cl.conn.SetDeadline(time.Now().Add(cl.timeout))
		defer func() { _ = cl.conn.SetDeadline(time.Time{}) }()
	}

	id, err := cl.c.Text.Cmd(format, args...)
	if err != nil {
		return err
	}
	cl.c.Text.StartResponse(id)
	defer cl.c.Text.EndResponse(id)

	_, _, err = cl.c.Text.ReadResponse(expectCode)
	return err
}
