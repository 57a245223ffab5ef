// Package sendmail delivers messages by piping them to a local
// sendmail-compatible binary instead of talking SMTP.
package sendmail

import (
	"context"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/pure-golang/fluentmail/executor"
	"github.com/pure-golang/fluentmail/logger"
	"github.com/pure-golang/fluentmail/mail"
)

var _ mail.Sender = (*Sender)(nil)

// ErrSend matches every failure of the sendmail binary.
var ErrSend = errors.New("failed to send email")

// Error wraps the executor failure.
type Error struct {
	Err error
}

func (e *Error) Error() string { return ErrSend.Error() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrSend }

// Sender runs `sendmail -i -f <from> -- <to>...` with the rendered
// document on stdin. Recipients are the resolved To addresses, the same
// envelope the SMTP sender uses. Credentials are ignored.
type Sender struct {
	exec executor.Executor
}

// NewSender creates a Sender on top of exec. Close closes exec.
func NewSender(exec executor.Executor) *Sender {
	return &Sender{exec: exec}
}

// Args returns the command line for env.
func Args(env mail.Envelope) []string {
	args := make([]string, 0, len(env.To)+4)
	args = append(args, "-i", "-f", env.From, "--")
	return append(args, env.To...)
}

func (s *Sender) Send(ctx context.Context, msg *mail.Message, o *mail.Overrides) error {
	doc, err := msg.Render(o)
	if err != nil {
		return err
	}
	env, err := msg.Envelope(o)
	if err != nil {
		return err
	}

	// sendmail reads local line endings and adds CR itself when relaying
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	if _, err := s.exec.Execute(ctx, strings.NewReader(doc), Args(env)...); err != nil {
		err = &Error{Err: err}
		logger.FromContextWithErr(ctx, err).Error("sendmail failed", "from", env.From)
		return err
	}

	logger.FromContext(ctx).Info("email sent",
		"transport", "sendmail",
		"from", env.From,
		"recipients", len(env.To),
		"size", units.HumanSize(float64(len(doc))),
	)
	return nil
}

func (s *Sender) Close() error {
	return s.exec.Close()
}
