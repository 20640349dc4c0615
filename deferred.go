package preify

import (
	"context"
	"sync"
)

// Deferred is a computation whose result arrives later. A function wrapped
// by Build that returns a Deferred is treated as asynchronous.
//
// Then registers continuations; exactly one of them is called once the
// computation settles.
type Deferred interface {
	Then(onFulfilled func(any), onRejected func(any))
}

// Future is a settle-once Deferred.
type Future struct {
	once     sync.Once
	done     chan struct{}
	value    any
	reason   any
	rejected bool
}

var _ Deferred = (*Future)(nil)

// NewFuture returns an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// New runs executor synchronously with the settle functions of a fresh
// future. A panic in executor rejects the future with the recovered value.
func New(executor func(resolve, reject func(any))) *Future {
	f := NewFuture()
	func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(r)
			}
		}()
		executor(func(v any) { f.Resolve(v) }, func(r any) { f.Reject(r) })
	}()
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A non-nil error or a panic rejects the future.
func Go(fn func() (any, error)) *Future {
	f := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(r)
			}
		}()
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolved returns a future already fulfilled with v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// Rejected returns a future already rejected with reason.
func Rejected(reason any) *Future {
	f := NewFuture()
	f.Reject(reason)
	return f
}

// Resolve fulfils the future. It reports false if the future had already
// settled.
func (f *Future) Resolve(v any) bool {
	return f.settle(v, nil, false)
}

// Reject rejects the future. It reports false if the future had already
// settled.
func (f *Future) Reject(reason any) bool {
	return f.settle(nil, reason, true)
}

func (f *Future) settle(v, reason any, rejected bool) bool {
	won := false
	f.once.Do(func() {
		f.value, f.reason, f.rejected = v, reason, rejected
		close(f.done)
		won = true
	})
	return won
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Then calls onFulfilled or onRejected on a new goroutine after the future
// settles, including when it settled before Then was called. Nil
// continuations are skipped.
func (f *Future) Then(onFulfilled func(any), onRejected func(any)) {
	go func() {
		<-f.done
		if f.rejected {
			if onRejected != nil {
				onRejected(f.reason)
			}
			return
		}
		if onFulfilled != nil {
			onFulfilled(f.value)
		}
	}()
}

// Wait blocks until the future settles or ctx ends. Rejection reasons that
// are not errors come back as *RejectionError.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.rejected {
		return nil, normalizeRejection(f.reason)
	}
	return f.value, nil
}
