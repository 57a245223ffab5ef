package mail

import (
	"context"
	"io"
	"strings"
)

// Sender delivers rendered messages to a relay.
type Sender interface {
	Send(ctx context.Context, msg *Message, o *Overrides) error
	io.Closer
}

// ListSeparator joins multi-address header values.
const ListSeparator = ", "

// Addresses is either a Single address or a List of addresses.
type Addresses interface {
	// Values returns the addresses in insertion order.
	Values() []string
	// Header returns the header field value for the addresses.
	Header() string

	addresses()
}

// Single is one address string. It is rendered verbatim.
type Single string

func (s Single) Values() []string {
	if s == "" {
		return nil
	}
	return []string{string(s)}
}

func (s Single) Header() string { return string(s) }

func (Single) addresses() {}

// List is an ordered sequence of addresses joined with ListSeparator.
type List []string

func (l List) Values() []string { return []string(l) }

func (l List) Header() string { return strings.Join(l, ListSeparator) }

func (List) addresses() {}

// Credentials hold the login pair presented to the relay.
type Credentials struct {
	Username string
	Password string
}

// Overrides substitute stored fields for a single Render or Send.
// A nil field falls back to the value stored in the Message.
type Overrides struct {
	From    *string
	To      Addresses
	Cc      Addresses
	Bcc     Addresses
	ReplyTo Addresses
	Subject *string
}

// Envelope is the SMTP envelope resolved for a send.
type Envelope struct {
	From string
	To   []string
}

// String is a helper for filling optional Overrides fields.
func String(s string) *string {
	return &s
}

func isEmpty(a Addresses) bool {
	return a == nil || len(a.Values()) == 0
}
