package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a protocol failure so the transport layer can map it
// to a status code and callers can branch without parsing messages.
type Kind int

const (
	KindValidation Kind = iota // unknown client/merchant/card, malformed input
	KindSecurity               // bad signature, bad certificate, replay, stale
	KindFunds                  // insufficient balance
	KindPolicy                 // recharge amount outside allowed bounds
	KindTechnical              // decryption or parsing failure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSecurity:
		return "security"
	case KindFunds:
		return "funds"
	case KindPolicy:
		return "policy"
	case KindTechnical:
		return "technical"
	}
	return "unknown"
}

// Error is the structured failure result every core operation returns
// instead of panicking or raising.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error produced by the core.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
