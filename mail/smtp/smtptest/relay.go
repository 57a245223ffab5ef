// Package smtptest provides an in-process SMTP relay that records what
// clients submit to it.
package smtptest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"

	"github.com/pure-golang/fluentmail/logger"
)

// DefaultMaxMessageBytes limits a single DATA payload.
const DefaultMaxMessageBytes = 10 * units.MiB

// Message is one accepted submission.
type Message struct {
	From     string
	To       []string
	Data     string
	Username string
	TLS      bool
}

// Relay is an SMTP server listening on a random 127.0.0.1 port. It accepts
// mail from anyone unless credentials are required, and keeps every
// message in memory.
type Relay struct {
	srv      *smtp.Server
	listener net.Listener
	pool     *x509.CertPool

	username string
	password string

	mu       sync.Mutex
	messages []Message
	wire     bytes.Buffer
}

// Option configures a Relay.
type Option func(*relayOptions)

type relayOptions struct {
	username        string
	password        string
	implicitTLS     bool
	maxMessageBytes int64
}

// WithCredentials requires AUTH with the given pair before MAIL.
func WithCredentials(username, password string) Option {
	return func(o *relayOptions) {
		o.username = username
		o.password = password
	}
}

// WithImplicitTLS serves TLS from the first byte instead of offering STARTTLS.
func WithImplicitTLS() Option {
	return func(o *relayOptions) { o.implicitTLS = true }
}

// WithMaxMessageBytes overrides DefaultMaxMessageBytes.
func WithMaxMessageBytes(n int64) Option {
	return func(o *relayOptions) { o.maxMessageBytes = n }
}

// NewRelay starts a Relay. Close must be called to stop it.
func NewRelay(opts ...Option) (*Relay, error) {
	o := relayOptions{maxMessageBytes: DefaultMaxMessageBytes}
	for _, opt := range opts {
		opt(&o)
	}

	cert, pool, err := GenerateCert()
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "failed to listen")
	}
	if o.implicitTLS {
		ln = tls.NewListener(ln, tlsConfig)
	}

	r := &Relay{
		listener: ln,
		pool:     pool,
		username: o.username,
		password: o.password,
	}

	srv := smtp.NewServer(&backend{relay: r})
	srv.Domain = "localhost"
	srv.MaxMessageBytes = int(o.maxMessageBytes)
	srv.AllowInsecureAuth = true
	srv.Debug = &wireRecorder{relay: r}
	srv.ErrorLog = errorLog{l: logger.FromContext(context.Background())}
	if !o.implicitTLS {
		srv.TLSConfig = tlsConfig
	}
	srv.EnableAuth(sasl.Login, func(conn *smtp.Conn) sasl.Server {
		return sasl.NewLoginServer(func(username, password string) error {
			state := conn.State()
			session, err := srv.Backend.Login(&state, username, password)
			if err != nil {
				return err
			}
			conn.SetSession(session)
			return nil
		})
	})
	r.srv = srv

	go func() {
		_ = srv.Serve(ln)
	}()

	return r, nil
}

// Addr returns the host:port the relay listens on.
func (r *Relay) Addr() string {
	return r.listener.Addr().String()
}

// Host returns the listening IP.
func (r *Relay) Host() string {
	host, _, _ := net.SplitHostPort(r.Addr())
	return host
}

// Port returns the listening port.
func (r *Relay) Port() int {
	_, port, _ := net.SplitHostPort(r.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// ClientTLSConfig trusts the relay certificate.
func (r *Relay) ClientTLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    r.pool,
		MinVersion: tls.VersionTLS12,
	}
}

// Messages returns a copy of the accepted messages in arrival order.
func (r *Relay) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

var commandVerbs = map[string]struct{}{
	"HELO": {}, "EHLO": {}, "STARTTLS": {}, "AUTH": {},
	"MAIL": {}, "RCPT": {}, "DATA": {}, "RSET": {}, "QUIT": {},
}

// Commands returns the verbs of the client commands seen so far, e.g.
// EHLO, AUTH, MAIL. Message content is not included.
func (r *Relay) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var verbs []string
	// awaitingData is set after DATA until the relay replies.
	awaitingData, inData := false, false
	for _, line := range strings.Split(r.wire.String(), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case awaitingData:
			awaitingData = false
			inData = strings.HasPrefix(line, "354")
			continue
		case inData:
			if line == "." {
				inData = false
			}
			continue
		}

		verb, _, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		if _, ok := commandVerbs[verb]; !ok {
			continue
		}
		verbs = append(verbs, verb)
		awaitingData = verb == "DATA"
	}
	return verbs
}

// Close stops the relay and drops open connections.
func (r *Relay) Close() error {
	return errors.Wrap(r.srv.Close(), "failed to close relay")
}

func (r *Relay) accepts(username, password string) bool {
	if r.username == "" {
		return username != ""
	}
	return username == r.username && password == r.password
}

func (r *Relay) store(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

type backend struct {
	relay *Relay
}

func (b *backend) Login(state *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if !b.relay.accepts(username, password) {
		return nil, &smtp.SMTPError{
			Code:         535,
			EnhancedCode: smtp.EnhancedCode{5, 7, 8},
			Message:      "Authentication credentials invalid",
		}
	}
	return &session{relay: b.relay, username: username, tls: state.TLS.HandshakeComplete}, nil
}

func (b *backend) AnonymousLogin(state *smtp.ConnectionState) (smtp.Session, error) {
	if b.relay.username != "" {
		return nil, smtp.ErrAuthRequired
	}
	return &session{relay: b.relay, tls: state.TLS.HandshakeComplete}, nil
}

// session collects one transaction and stores it on DATA.
type session struct {
	relay    *Relay
	username string
	tls      bool

	from string
	to   []string
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error { return nil }

func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.relay.store(Message{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Data:     string(data),
		Username: s.username,
		TLS:      s.tls,
	})
	return nil
}

// wireRecorder keeps the decrypted conversation for Commands.
type wireRecorder struct {
	relay *Relay
}

func (w *wireRecorder) Write(p []byte) (int, error) {
	w.relay.mu.Lock()
	defer w.relay.mu.Unlock()
	return w.relay.wire.Write(p)
}

// errorLog routes go-smtp server errors to slog.
type errorLog struct {
	l *slog.Logger
}

func (e errorLog) Printf(format string, v ...interface{}) {
	e.l.Debug(fmt.Sprintf(format, v...), "component", "smtptest")
}

func (e errorLog) Println(v ...interface{}) {
	e.l.Debug(strings.TrimSuffix(fmt.Sprintln(v...), "\n"), "component", "smtptest")
}
