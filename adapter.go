// Package preify adapts plain functions into pre-handler steps. The values
// a function needs are read by key from the request's pre store and passed
// as positional arguments; the function's result, or the settled result of
// the Deferred it returns, is handed to a reply callback exactly once.
package preify

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
)

// Reply receives the outcome of a Handler: a value, or an error.
type Reply func(v any)

// Handler is the shape a host calls pre-handler steps with.
type Handler func(req *Request, reply Reply)

// Option configures a Handler built by BuildWith.
type Option func(*options)

type options struct {
	placeholder any
	recover     bool
}

// WithPlaceholder sets the value passed for keys absent from the pre store.
// The default is Undefined.
func WithPlaceholder(v any) Option {
	return func(o *options) { o.placeholder = v }
}

// WithRecover makes the handler recover a panic raised by the wrapped
// function and reply with a *PanicError instead of letting it propagate.
func WithRecover() Option {
	return func(o *options) { o.recover = true }
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Build wraps fn so it can run as a pre-handler. keys name the pre store
// entries passed to fn, in order. It fails with ErrInvalidArgument when fn
// is not a function.
func Build(fn any, keys ...any) (Handler, error) {
	return BuildWith(fn, keys)
}

// MustBuild is like Build but panics on error.
func MustBuild(fn any, keys ...any) Handler {
	h, err := Build(fn, keys...)
	if err != nil {
		panic(err)
	}
	return h
}

// BuildWith is Build with options.
func BuildWith(fn any, keys []any, opts ...Option) (Handler, error) {
	fv := reflect.ValueOf(fn)
	if fn == nil || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("%w: fn must be a function", ErrInvalidArgument)
	}

	o := options{placeholder: Undefined}
	for _, opt := range opts {
		opt(&o)
	}

	// keys are normalised once; the handler never sees the caller's slice
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = Key(k)
	}
	ft := fv.Type()

	return func(req *Request, reply Reply) {
		replied := false
		if o.recover {
			defer func() {
				if r := recover(); r != nil {
					// a panic out of reply itself is not ours to report
					if replied {
						panic(r)
					}
					reply(&PanicError{Value: r, Stack: debug.Stack()})
				}
			}()
		}

		var pre Pre
		if req != nil {
			pre = req.Pre
		}
		out := fv.Call(arguments(ft, pre, names, o.placeholder))

		v, d := classify(ft, out)
		replied = true
		if d == nil {
			reply(v)
			return
		}
		// a Deferred may call back more than once; only the first counts
		var once sync.Once
		d.Then(func(v any) {
			once.Do(func() { reply(v) })
		}, func(reason any) {
			once.Do(func() { reply(normalizeRejection(reason)) })
		})
	}, nil
}

// arguments builds the positional argument list for a call of type ft.
func arguments(ft reflect.Type, pre Pre, names []string, placeholder any) []reflect.Value {
	n := ft.NumIn()
	if ft.IsVariadic() {
		n--
		if len(names) > n {
			n = len(names)
		}
	}

	args := make([]reflect.Value, n)
	for i := range args {
		pt := paramType(ft, i)
		if i >= len(names) {
			args[i] = valueFor(pt, placeholder)
			continue
		}
		v, ok := pre[names[i]]
		if !ok {
			args[i] = valueFor(pt, placeholder)
			continue
		}
		if v == nil {
			args[i] = reflect.Zero(pt)
			continue
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(pt) {
			panic(&ArgumentError{Index: i, Key: names[i], Want: pt, Got: rv.Type()})
		}
		args[i] = rv
	}
	return args
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

// valueFor returns the placeholder when the parameter can hold it and the
// zero value otherwise.
func valueFor(pt reflect.Type, placeholder any) reflect.Value {
	if placeholder == nil {
		return reflect.Zero(pt)
	}
	pv := reflect.ValueOf(placeholder)
	if pv.Type().AssignableTo(pt) {
		return pv
	}
	return reflect.Zero(pt)
}

// classify splits a call result into a synchronous value or a Deferred.
// A trailing non-nil error is itself the synchronous value.
func classify(ft reflect.Type, out []reflect.Value) (any, Deferred) {
	if len(out) == 0 {
		return nil, nil
	}
	last := len(out) - 1
	if last > 0 && ft.Out(last) == errorType && !out[last].IsNil() {
		return out[last].Interface(), nil
	}

	v := out[0].Interface()
	if d, ok := v.(Deferred); ok && !isNilPointer(out[0]) {
		return nil, d
	}
	return v, nil
}

func isNilPointer(v reflect.Value) bool {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
