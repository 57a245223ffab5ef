package smtp

import (
	"fmt"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/pkg/errors"
)

var (
	ErrSend           = errors.New("failed to send email")
	ErrAuthentication = errors.New("authentication rejected")
	ErrClosed         = errors.New("sender is closed")
)

// Error describes a failed step of a send. It matches ErrSend or
// ErrAuthentication with errors.Is and unwraps to the transport error.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause implements the pkg/errors causer.
func (e *Error) Cause() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func sendError(op string, err error) error {
	return &Error{Op: op, Kind: ErrSend, Err: err}
}

// loginError classifies a failed login. Permanent SMTP replies are
// rejections; anything else is a transport failure.
func loginError(err error) error {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
		return &Error{Op: "login", Kind: ErrAuthentication, Err: err}
	}
	return sendError("login", err)
}
