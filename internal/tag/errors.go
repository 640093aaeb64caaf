package tag

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentifierFound is returned when no grammar-valid identifier could
	// be recovered from the input.
	ErrNoIdentifierFound = errors.New("no product identifier found")
	// ErrMalformedMessage is returned when an NDEF byte stream cannot be parsed.
	ErrMalformedMessage = errors.New("malformed NDEF message")
)

// DecodeError reports which input kind failed to decode and why.
type DecodeError struct {
	Source string
	Input  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("decode %s %q: %v", e.Source, e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func noIdentifier(source, input string) error {
	if len(input) > 64 {
		input = input[:64]
	}
	return &DecodeError{Source: source, Input: input, Err: ErrNoIdentifierFound}
}
