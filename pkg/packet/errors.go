package packet

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrTypeMismatch            = errors.New("value type does not match field kind")
	ErrSizeMismatch            = errors.New("size mismatch")
	ErrValueOutOfRange         = errors.New("value out of range for field width")
	ErrFieldNameUnknown        = errors.New("field name does not exist")
	ErrFieldAlreadyDeclared    = errors.New("field already declared")
	ErrInvalidFieldDeclaration = errors.New("invalid field declaration")

	ErrInvalidLayoutID     = errors.New("invalid layout ID: 0 is reserved")
	ErrLayoutAlreadyExists = errors.New("layout with this ID or name already exists")
	ErrLayoutNotFound      = errors.New("layout not found")
)

// FieldError reports a failure tied to one field of one layout.
type FieldError struct {
	Layout string
	Field  string
	Err    error  // one of the sentinel errors above
	Msg    string // optional detail
}

func (e *FieldError) Error() string {
	where := e.Field
	if e.Layout != "" {
		where = e.Layout + "." + e.Field
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", where, e.Err, e.Msg)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErrorf(layout, field string, err error, format string, a ...any) *FieldError {
	return &FieldError{Layout: layout, Field: field, Err: err, Msg: fmt.Sprintf(format, a...)}
}

// valueError is returned by the converters, which do not know the field's
// name; callers attach it with withField.
type valueError struct {
	err error
	msg string
}

func (e *valueError) Error() string {
	return fmt.Sprintf("%v: %s", e.err, e.msg)
}

func (e *valueError) Unwrap() error {
	return e.err
}

func valueErrorf(err error, format string, a ...any) error {
	return &valueError{err: err, msg: fmt.Sprintf(format, a...)}
}

func withField(layout, field string, err error) error {
	var ve *valueError
	if errors.As(err, &ve) {
		return &FieldError{Layout: layout, Field: field, Err: ve.err, Msg: ve.msg}
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return err
	}
	return &FieldError{Layout: layout, Field: field, Err: err}
}
