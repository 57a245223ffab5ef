package smtp

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/fluentmail/mail"
	"github.com/pure-golang/fluentmail/mail/smtp/smtptest"
)

func startRelay(t *testing.T, opts ...smtptest.Option) *smtptest.Relay {
	t.Helper()

	relay, err := smtptest.NewRelay(opts...)
	require.NoError(t, err, "failed to start relay")
	t.Cleanup(func() { _ = relay.Close() })
	return relay
}

func relaySender(relay *smtptest.Relay, cfg Config) *Sender {
	cfg.Host = relay.Host()
	cfg.Port = relay.Port()
	cfg.Timeout = 5 * time.Second
	return NewSender(cfg, WithTLSConfig(relay.ClientTLSConfig()))
}

func TestSender_Relay_EHLO(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "from@example.com", msgs[0].From)
	assert.Equal(t, []string{"to@example.com"}, msgs[0].To)
	assert.False(t, msgs[0].TLS)
	assert.Contains(t, msgs[0].Data, "Subject: Test\r\n")
	assert.Contains(t, msgs[0].Data, "Test body")

	assert.Equal(t, []string{"EHLO", "MAIL", "RCPT", "DATA", "QUIT"}, relay.Commands())
}

func TestSender_Relay_HELO(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{Verb: VerbHELO})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)

	require.Len(t, relay.Messages(), 1)
	assert.Equal(t, []string{"HELO", "MAIL", "RCPT", "DATA", "QUIT"}, relay.Commands())
}

func TestSender_Relay_DocumentIsDelivered(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	msg := testMessage().
		SetBody("<p>hi</p>", mail.AsHTML(true)).
		AddAttachment(path)

	want, err := msg.Render(nil)
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), msg, nil))

	msgs := relay.Messages()
	require.Len(t, msgs, 1)

	// boundaries differ between renders
	stripBoundary := func(doc string) string {
		head, body, _ := strings.Cut(doc, "\r\n")
		_, boundary, _ := strings.Cut(head, "boundary=")
		return strings.ReplaceAll(body, strings.Trim(boundary, `"`), "B")
	}
	assert.Equal(t, stripBoundary(want), stripBoundary(msgs[0].Data))
}

func TestSender_Relay_EnvelopeExcludesCcBcc(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	msg := testMessage().
		AddCc(mail.Single("cc@example.com")).
		AddBcc(mail.List{"bcc1@example.com", "bcc2@example.com"})

	require.NoError(t, sender.Send(context.Background(), msg, nil))

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"to@example.com"}, msgs[0].To)
	assert.Contains(t, msgs[0].Data, "Cc: cc@example.com\r\n")
	assert.Contains(t, msgs[0].Data, "Bcc: bcc1@example.com, bcc2@example.com\r\n")
}

func TestSender_Relay_CcOnlyHasNoEnvelopeRecipients(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	msg := mail.NewMessage().
		SetFrom("from@example.com").
		AddCc(mail.Single("cc@example.com"))

	err := sender.Send(context.Background(), msg, nil)
	assert.ErrorIs(t, err, ErrSend)
	assert.Empty(t, relay.Messages())
}

func TestSender_Relay_Login(t *testing.T) {
	relay := startRelay(t, smtptest.WithCredentials("user", "pwd"))
	sender := relaySender(relay, Config{Verb: VerbHELO})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage().SetCredentials("user", "pwd"), nil)
	require.NoError(t, err)

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Username)

	commands := relay.Commands()
	assert.Equal(t, []string{"EHLO", "AUTH", "MAIL", "RCPT", "DATA", "QUIT"}, commands)
	assert.NotContains(t, commands, "HELO")
}

func TestSender_Relay_AuthenticationRejected(t *testing.T) {
	relay := startRelay(t, smtptest.WithCredentials("user", "pwd"))
	sender := relaySender(relay, Config{Username: "user", Password: "wrong"})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Empty(t, relay.Messages())
}

func TestSender_Relay_AuthRequired(t *testing.T) {
	relay := startRelay(t, smtptest.WithCredentials("user", "pwd"))
	sender := relaySender(relay, Config{})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	assert.ErrorIs(t, err, ErrSend)
	assert.Empty(t, relay.Messages())
}

func TestSender_Relay_StartTLS(t *testing.T) {
	relay := startRelay(t, smtptest.WithCredentials("user", "pwd"))
	sender := relaySender(relay, Config{
		Security: SecurityStartTLS,
		Username: "user",
		Password: "pwd",
	})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].TLS)
	assert.Equal(t, []string{"EHLO", "STARTTLS", "EHLO", "AUTH", "MAIL", "RCPT", "DATA", "QUIT"}, relay.Commands())
}

func TestSender_Relay_StartTLSUntrusted(t *testing.T) {
	relay := startRelay(t)
	sender := NewSender(Config{
		Host:     relay.Host(),
		Port:     relay.Port(),
		Security: SecurityStartTLS,
		Timeout:  5 * time.Second,
	})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	assert.ErrorIs(t, err, ErrSend)
	assert.Empty(t, relay.Messages())
}

func TestSender_Relay_StartTLSInsecure(t *testing.T) {
	relay := startRelay(t)
	sender := NewSender(Config{
		Host:     relay.Host(),
		Port:     relay.Port(),
		Security: SecurityStartTLS,
		Insecure: true,
		Timeout:  5 * time.Second,
	})
	defer sender.Close()

	require.NoError(t, sender.Send(context.Background(), testMessage(), nil))
	require.Len(t, relay.Messages(), 1)
	assert.True(t, relay.Messages()[0].TLS)
}

func TestSender_Relay_SSL(t *testing.T) {
	relay := startRelay(t, smtptest.WithImplicitTLS())
	sender := relaySender(relay, Config{Security: SecuritySSL})
	defer sender.Close()

	err := sender.Send(context.Background(), testMessage(), nil)
	require.NoError(t, err)

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].TLS)
	assert.NotContains(t, relay.Commands(), "STARTTLS")
}

func TestSender_Relay_MessageTooLarge(t *testing.T) {
	relay := startRelay(t, smtptest.WithMaxMessageBytes(512))
	sender := relaySender(relay, Config{})
	defer sender.Close()

	msg := testMessage().SetBody(strings.Repeat("x", 4096))
	err := sender.Send(context.Background(), msg, nil)
	assert.ErrorIs(t, err, ErrSend)
	assert.Empty(t, relay.Messages())
}

func TestSender_Relay_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	sender := NewSender(Config{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second})
	defer sender.Close()

	err = sender.Send(context.Background(), testMessage(), nil)
	assert.ErrorIs(t, err, ErrSend)
}

func TestSender_Relay_ContextCanceled(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, testMessage(), nil)
	assert.ErrorIs(t, err, ErrSend)
}

func TestSender_Relay_Reuse(t *testing.T) {
	relay := startRelay(t)
	sender := relaySender(relay, Config{})
	defer sender.Close()

	msg := testMessage()
	require.NoError(t, sender.Send(context.Background(), msg, nil))
	require.NoError(t, sender.Send(context.Background(), msg, &mail.Overrides{To: mail.Single("other@example.com")}))

	msgs := relay.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"to@example.com"}, msgs[0].To)
	assert.Equal(t, []string{"other@example.com"}, msgs[1].To)
}
