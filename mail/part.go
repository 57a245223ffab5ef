package mail

import (
	"bufio"
	"bytes"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"
)

const (
	encodingQuotedPrintable = "quoted-printable"
	encodingBase64          = "base64"
)

// part is a single leaf entity of the multipart container.
type part struct {
	mediaType string
	params    map[string]string
	encoding  string
	contentID string
	// filename turns the part into an attachment when set.
	filename string
	data     []byte
}

// header builds the part header. go-message writes the most recently added
// field first, so fields are set from last to first.
func (p part) header() message.Header {
	var h message.Header
	if p.filename != "" {
		h.SetContentDisposition("attachment", map[string]string{"filename": p.filename})
	}
	if p.contentID != "" {
		h.Set("Content-ID", p.contentID)
	}
	h.Set("Content-Transfer-Encoding", p.encoding)
	h.SetContentType(p.mediaType, p.params)
	return h
}

func (p part) write(mw *textproto.MultipartWriter) error {
	body, err := encodeBody(p.encoding, p.data)
	if err != nil {
		return err
	}

	w, err := mw.CreatePart(p.header().Header)
	if err != nil {
		return errors.Wrap(err, "failed to create part")
	}
	_, err = io.Copy(w, body)
	return errors.Wrap(err, "failed to write part")
}

// encodeBody applies the transfer encoding with go-message's entity writer.
// message.Writer rejects charset labels other than utf-8 and us-ascii, so it
// only sees the encoding and the entity header it writes is dropped again.
func encodeBody(encoding string, data []byte) (io.Reader, error) {
	var h message.Header
	h.Set("Content-Transfer-Encoding", encoding)

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h)
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported transfer encoding %q", encoding)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s data", encoding)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to flush %s data", encoding)
	}

	br := bufio.NewReader(&buf)
	if _, err := textproto.ReadHeader(br); err != nil {
		return nil, errors.Wrap(err, "failed to skip entity header")
	}
	return br, nil
}
