package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedBoundary() string { return "BOUNDARY" }

func newTestMessage() *Message {
	m := NewMessage()
	m.boundary = fixedBoundary
	return m
}

func TestMessage_Defaults(t *testing.T) {
	m := NewMessage()

	assert.Equal(t, DefaultCharset, m.body.charset)
	assert.False(t, m.body.html)
	_, ok := m.Credentials()
	assert.False(t, ok)
}

func TestMessage_Chaining(t *testing.T) {
	m := NewMessage()

	got := m.SetFrom("a@x").
		AddTo(Single("b@x")).
		AddCc(List{"c@x"}).
		AddBcc(List{"d@x"}).
		SetReplyTo(Single("e@x")).
		SetSubject("hi").
		SetBody("text").
		SetAsHTML(true).
		AddAttachment("file.txt").
		SetCredentials("user", "pwd")

	assert.Same(t, m, got)
	assert.Equal(t, "a@x", m.from)
	assert.Equal(t, List{"b@x"}, m.to)
	assert.Equal(t, List{"c@x"}, m.cc)
	assert.Equal(t, List{"d@x"}, m.bcc)
	assert.Equal(t, List{"e@x"}, m.replyTo)
	assert.True(t, m.body.html)
}

func TestMessage_AddressesAccumulate(t *testing.T) {
	m := NewMessage().
		AddTo(Single("a@x")).
		AddTo(List{"b@x", "c@x"}).
		AddTo(Single("d@x"))

	assert.Equal(t, List{"a@x", "b@x", "c@x", "d@x"}, m.to)
}

func TestMessage_ReplyToAppends(t *testing.T) {
	m := NewMessage().
		SetReplyTo(Single("a@x")).
		SetReplyTo(Single("b@x"))

	assert.Equal(t, List{"a@x", "b@x"}, m.replyTo)
}

func TestMessage_InvalidAddressType(t *testing.T) {
	m := NewMessage().
		SetFrom("a@x").
		AddTo(nil).
		AddTo(Single("b@x"))

	_, err := m.Render(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAddressType)

	var typeErr *InvalidAddressTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "<nil>", typeErr.Type)
	assert.Equal(t, "invalid address type: <nil>", err.Error())
}

func TestMessage_SetBodyKeepsHTMLFlag(t *testing.T) {
	m := NewMessage().
		SetBody("hi", AsHTML(true)).
		SetBody("bye")

	assert.Equal(t, "bye", m.body.text)
	assert.Equal(t, DefaultCharset, m.body.charset)
	assert.True(t, m.body.html)
}

func TestMessage_SetBodyReplacesCharset(t *testing.T) {
	m := NewMessage().
		SetBody("hi", WithCharset("iso-8859-1")).
		SetBody("bye")

	assert.Equal(t, DefaultCharset, m.body.charset)

	m.SetBody("again", WithCharset("us-ascii"), AsHTML(false))
	assert.Equal(t, "us-ascii", m.body.charset)
	assert.False(t, m.body.html)
}

func TestMessage_AddAttachment(t *testing.T) {
	m := NewMessage().
		AddAttachment("a.txt").
		AddAttachment("a.txt", WithAttachmentCharset("utf-8"))

	require.Len(t, m.attachments, 2)
	assert.Equal(t, attachment{path: "a.txt"}, m.attachments[0])
	assert.Equal(t, attachment{path: "a.txt", charset: "utf-8"}, m.attachments[1])
}

func TestMessage_Credentials(t *testing.T) {
	m := NewMessage().SetCredentials("user", "pwd")

	creds, ok := m.Credentials()
	require.True(t, ok)
	assert.Equal(t, Credentials{Username: "user", Password: "pwd"}, creds)
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, []string{"a@x"}, Single("a@x").Values())
	assert.Nil(t, Single("").Values())
	assert.Equal(t, "a@x", Single("a@x").Header())
	assert.Equal(t, "a@x, b@x", List{"a@x", "b@x"}.Header())
	assert.Equal(t, "a@x", List{"a@x"}.Header())
}
