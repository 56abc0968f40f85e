package errors

import (
	goErrors "errors"
	"fmt"
)

// New creates a new error with the given message. It accepts formatting
// arguments in the same style as fmt.Sprintf.
func New(format string, args ...interface{}) error {
	if len(args) == 0 {
		return goErrors.New(format)
	}
	return fmt.Errorf(format, args...)
}

// contextError annotates an error with a description of what was being
// attempted when it occurred. Errors are printed as `context: cause`.
type contextError struct {
	context string
	cause   error
}

// WithContext wraps `err` so that it's printed with `context` as a prefix.
// It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, cause: err}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.cause)
}

func (err contextError) Unwrap() error {
	return err.cause
}

// RootCause returns the innermost error wrapped by WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.cause
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

// FriendlyError is an error whose message is meant to be shown to the user
// as-is, without the technical context chain.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error that is displayed to users without any
// additional formatting.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. Friendly errors anywhere in the chain take precedence.
func GetPrintableMessage(err error) string {
	var friendly FriendlyError
	if goErrors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
