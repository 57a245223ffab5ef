package mail

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidAddressType = errors.New("invalid address type")
	ErrMissingSender      = errors.New("from cannot be empty")
	ErrNoRecipients       = errors.New("at least one address is required in to, cc or bcc")
	ErrUndecodable        = errors.New("undecodable attachment")
	ErrUnencodable        = errors.New("text not representable in charset")
)

// InvalidAddressTypeError reports the type of a value that is neither
// a Single nor a List.
type InvalidAddressTypeError struct {
	Type string
}

func (e *InvalidAddressTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidAddressType, e.Type)
}

func (e *InvalidAddressTypeError) Is(target error) bool {
	return target == ErrInvalidAddressType
}

func invalidAddressType(v any) error {
	return &InvalidAddressTypeError{Type: fmt.Sprintf("%T", v)}
}
