package preify

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidArgument is returned by Build when fn is not a usable function.
var ErrInvalidArgument = errors.New("invalid argument")

// RejectionError wraps a deferred rejection whose reason is not an error.
type RejectionError struct {
	Reason any
}

func (e *RejectionError) Error() string {
	if e == nil {
		return ""
	}
	return text(e.Reason)
}

// ArgumentError is panicked when a value found in the pre store cannot be
// passed to the parameter it was resolved for.
type ArgumentError struct {
	Index int
	Key   string
	Want  reflect.Type
	Got   reflect.Type
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("preify: argument %d (pre[%q]) has type %s, want %s", e.Index, e.Key, e.Got, e.Want)
}

// PanicError carries a panic recovered from the wrapped function when the
// handler was built with WithRecover.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("preify: panic: %s", text(e.Value))
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// normalizeRejection passes errors through and wraps everything else.
func normalizeRejection(reason any) error {
	if err, ok := reason.(error); ok && err != nil {
		return err
	}
	return &RejectionError{Reason: reason}
}

// text renders a value the way it would appear as an error message.
// nil and Undefined render as the empty string.
func text(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case undefined:
		return ""
	case string:
		return vv
	case error:
		return vv.Error()
	default:
		return fmt.Sprint(vv)
	}
}
