package models

import (
	"errors"
	"fmt"
)

// Kind classifies every failure an interpretation can end with.
type Kind string

const (
	KindCredential     Kind = "credential"
	KindEmptyInput     Kind = "empty_input"
	KindInvalidImage   Kind = "invalid_image"
	KindNetwork        Kind = "network"
	KindMalformedReply Kind = "malformed_reply"
	// KindInvalidRequest is a request body that could not be read at all.
	KindInvalidRequest Kind = "invalid_request"
)

// Sentinel causes for the input checks.
var (
	ErrMissingCredential = errors.New("api key is required")
	ErrEmptyInput        = errors.New("report text or image is required")
	ErrUnsupportedImage  = errors.New("only JPEG and PNG images are supported")
)

// Error is the single error type returned across the interpretation flow.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Description is the part of the error suitable for showing to a user.
func (e *Error) Description() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// NewError builds an *Error without a cause.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError attaches a kind to err. An err that already carries a kind keeps it.
func WrapError(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}
