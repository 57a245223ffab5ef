package mail

import (
	"bytes"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// resolved holds the fields used for one render after overrides are applied.
type resolved struct {
	from    string
	to      Addresses
	cc      Addresses
	bcc     Addresses
	replyTo Addresses
	subject string
}

func (m *Message) resolve(o *Overrides) (resolved, error) {
	if m.err != nil {
		return resolved{}, m.err
	}

	r := resolved{
		from:    m.from,
		to:      m.to,
		cc:      m.cc,
		bcc:     m.bcc,
		replyTo: m.replyTo,
		subject: m.subject,
	}
	if o != nil {
		if o.From != nil {
			r.from = *o.From
		}
		if o.To != nil {
			r.to = o.To
		}
		if o.Cc != nil {
			r.cc = o.Cc
		}
		if o.Bcc != nil {
			r.bcc = o.Bcc
		}
		if o.ReplyTo != nil {
			r.replyTo = o.ReplyTo
		}
		if o.Subject != nil {
			r.subject = *o.Subject
		}
	}

	if r.from == "" {
		return resolved{}, ErrMissingSender
	}
	if isEmpty(r.to) && isEmpty(r.cc) && isEmpty(r.bcc) {
		return resolved{}, ErrNoRecipients
	}

	return r, nil
}

// Envelope resolves the SMTP envelope: the from address and the To
// addresses only. Cc and Bcc are rendered into headers but not returned.
func (m *Message) Envelope(o *Overrides) (Envelope, error) {
	r, err := m.resolve(o)
	if err != nil {
		return Envelope{}, err
	}

	var to []string
	if r.to != nil {
		to = append(to, r.to.Values()...)
	}
	return Envelope{From: r.from, To: to}, nil
}

// Render builds the multipart MIME document for the current fields, with
// o substituting stored fields for this call only. The Message is not
// modified.
func (m *Message) Render(o *Overrides) (string, error) {
	r, err := m.resolve(o)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := m.write(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *Message) write(w io.Writer, r resolved) error {
	gen := m.boundary
	if gen == nil {
		gen = newBoundary
	}
	boundary := gen()

	body, hasBody, err := m.bodyPart()
	if err != nil {
		return err
	}

	// go-message writes the most recently added field first.
	var h message.Header
	h.Set("Subject", r.subject)
	setList(&h, "Reply-To", r.replyTo)
	setList(&h, "Bcc", r.bcc)
	setList(&h, "Cc", r.cc)
	setList(&h, "To", r.to)
	h.Set("From", r.from)
	h.Set("MIME-Version", "1.0")
	h.SetContentType("multipart/mixed", map[string]string{"boundary": boundary})

	doc, err := message.CreateWriter(w, h)
	if err != nil {
		return errors.Wrap(err, "failed to write message header")
	}

	mw := textproto.NewMultipartWriter(doc)
	if err := mw.SetBoundary(boundary); err != nil {
		return errors.Wrapf(err, "invalid boundary %q", boundary)
	}

	if hasBody {
		if err := body.write(mw); err != nil {
			return errors.Wrap(err, "failed to write body")
		}
	}

	for _, a := range m.attachments {
		p, ok, err := a.part()
		if err != nil {
			return errors.Wrapf(err, "failed to attach %s", a.path)
		}
		if !ok {
			continue
		}
		if err := p.write(mw); err != nil {
			return errors.Wrapf(err, "failed to write attachment %s", a.path)
		}
	}

	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "failed to close multipart")
	}
	return errors.Wrap(doc.Close(), "failed to close message")
}

func setList(h *message.Header, key string, a Addresses) {
	if isEmpty(a) {
		return
	}
	h.Set(key, a.Header())
}

// bodyPart encodes the body text into its charset. ok is false when there
// is no body text.
func (m *Message) bodyPart() (p part, ok bool, err error) {
	if m.body.text == "" {
		return part{}, false, nil
	}

	subtype := "plain"
	if m.body.html {
		subtype = "html"
	}
	charset := m.body.charset
	if charset == "" {
		charset = DefaultCharset
	}

	data, err := encodeText(m.body.text, charset)
	if err != nil {
		return part{}, false, errors.Wrap(err, "failed to encode body")
	}

	return part{
		mediaType: "text/" + subtype,
		params:    map[string]string{"charset": charset},
		encoding:  encodingQuotedPrintable,
		data:      data,
	}, true, nil
}

func newBoundary() string {
	return "=_" + uuid.NewString()
}
