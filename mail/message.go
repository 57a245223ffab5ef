package mail

// DefaultCharset is applied to the body when no charset is given.
const DefaultCharset = "utf-8"

// Message accumulates the fields of an email and renders them as a MIME
// document. Mutators return the Message so calls can be chained.
//
// A Message is not safe for concurrent use.
type Message struct {
	from        string
	replyTo     List
	to          List
	cc          List
	bcc         List
	subject     string
	body        body
	attachments []attachment
	credentials *Credentials

	// err is the first invalid address append; Render returns it.
	err error

	boundary func() string
}

type body struct {
	text    string
	charset string
	html    bool
}

type attachment struct {
	path    string
	charset string
}

// NewMessage returns an empty Message with a utf-8 plain text body.
func NewMessage() *Message {
	return &Message{
		body:     body{charset: DefaultCharset},
		boundary: newBoundary,
	}
}

func (m *Message) SetFrom(addr string) *Message {
	m.from = addr
	return m
}

func (m *Message) SetSubject(subject string) *Message {
	m.subject = subject
	return m
}

// SetReplyTo appends to the Reply-To list.
func (m *Message) SetReplyTo(a Addresses) *Message {
	m.appendAddresses(&m.replyTo, a)
	return m
}

func (m *Message) AddTo(a Addresses) *Message {
	m.appendAddresses(&m.to, a)
	return m
}

func (m *Message) AddCc(a Addresses) *Message {
	m.appendAddresses(&m.cc, a)
	return m
}

func (m *Message) AddBcc(a Addresses) *Message {
	m.appendAddresses(&m.bcc, a)
	return m
}

func (m *Message) appendAddresses(dst *List, a Addresses) {
	switch v := a.(type) {
	case Single:
		*dst = append(*dst, string(v))
	case List:
		*dst = append(*dst, v...)
	default:
		if m.err == nil {
			m.err = invalidAddressType(a)
		}
	}
}

// BodyOption configures SetBody.
type BodyOption func(*bodyOptions)

type bodyOptions struct {
	charset string
	html    *bool
}

// WithCharset sets the body charset. The default is DefaultCharset.
func WithCharset(charset string) BodyOption {
	return func(o *bodyOptions) { o.charset = charset }
}

// AsHTML sets the HTML flag together with the body.
func AsHTML(html bool) BodyOption {
	return func(o *bodyOptions) { o.html = &html }
}

// SetBody replaces the body text and charset. The HTML flag is only
// changed when AsHTML is passed; otherwise the previous flag is kept.
func (m *Message) SetBody(text string, opts ...BodyOption) *Message {
	o := bodyOptions{charset: DefaultCharset}
	for _, opt := range opts {
		opt(&o)
	}

	m.body.text = text
	m.body.charset = o.charset
	if o.html != nil {
		m.body.html = *o.html
	}
	return m
}

func (m *Message) SetAsHTML(html bool) *Message {
	m.body.html = html
	return m
}

// AttachmentOption configures AddAttachment.
type AttachmentOption func(*attachment)

// WithAttachmentCharset decodes a text attachment with charset and tags
// the part with it.
func WithAttachmentCharset(charset string) AttachmentOption {
	return func(a *attachment) { a.charset = charset }
}

// AddAttachment appends a file to attach at render time. The file is not
// checked here; missing files are skipped by Render.
func (m *Message) AddAttachment(path string, opts ...AttachmentOption) *Message {
	a := attachment{path: path}
	for _, opt := range opts {
		opt(&a)
	}
	m.attachments = append(m.attachments, a)
	return m
}

func (m *Message) SetCredentials(user, pwd string) *Message {
	m.credentials = &Credentials{Username: user, Password: pwd}
	return m
}

// Credentials returns the stored login pair, if any.
func (m *Message) Credentials() (Credentials, bool) {
	if m.credentials == nil {
		return Credentials{}, false
	}
	return *m.credentials, true
}
