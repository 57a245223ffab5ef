package noop

import (
	"context"

	"github.com/pure-golang/fluentmail/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender is a no-op mail sender for testing.
type Sender struct {
	closed bool
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{
		closed: false,
	}
}

// Send renders msg so builder errors still surface, then discards it.
func (n *Sender) Send(_ context.Context, msg *mail.Message, o *mail.Overrides) error {
	_, err := msg.Render(o)
	return err
}

// Close is a no-op.
func (n *Sender) Close() error {
	n.closed = true
	return nil
}
