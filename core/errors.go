package core

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

// UnavailableError is returned when a request is well formed but the resources it
// depends on do not exist yet (e.g. a grade nobody teaches).
type UnavailableError struct {
	message string
}

func NewUnavailableError(msg string) *UnavailableError {
	return &UnavailableError{message: msg}
}

func (err UnavailableError) Error() string {
	return err.message
}

// PersistenceError wraps a store failure. It has no Cause method: errors.Cause stops here.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err PersistenceError) Unwrap() error {
	return err.Err
}

// NotificationError is never returned to clients; it only classifies logs.
type NotificationError struct {
	Recipient string
	Err       error
}

func NewNotificationError(recipient string, err error) error {
	return &NotificationError{Recipient: recipient, Err: err}
}

func (err NotificationError) Error() string {
	return "notifying " + err.Recipient + ": " + err.Err.Error()
}

func (err NotificationError) Unwrap() error {
	return err.Err
}

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return stderrors.As(err, &nfErr)
}

func IsPersistence(err error) bool {
	var pErr *PersistenceError
	return stderrors.As(err, &pErr)
}

func IsNotification(err error) bool {
	var nErr *NotificationError
	return stderrors.As(err, &nErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
