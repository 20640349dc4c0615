package preify

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest() *Request {
	return &Request{Pre: Pre{}}
}

// collect returns a Reply that records every call and a channel that
// receives the first value.
func collect(t *testing.T) (Reply, <-chan any, *int32) {
	t.Helper()
	ch := make(chan any, 4)
	var calls int32
	return func(v any) {
		atomic.AddInt32(&calls, 1)
		ch <- v
	}, ch, &calls
}

func await(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("reply was not called")
		return nil
	}
}

func concat(a, b, c any) string {
	return "1" + fmt.Sprint(a) + fmt.Sprint(b) + fmt.Sprint(c)
}

func TestBuild_ReturnsHandler(t *testing.T) {
	h, err := Build(func() {})
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestBuild_RejectsNonFunctions(t *testing.T) {
	var nilFunc func()
	for name, fn := range map[string]any{
		"nil":      nil,
		"nil func": nilFunc,
		"int":      42,
		"string":   "fn",
	} {
		t.Run(name, func(t *testing.T) {
			h, err := Build(fn)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), "fn must be a function")
		})
	}
}

func TestMustBuild_Panics(t *testing.T) {
	assert.Panics(t, func() { MustBuild(nil) })
	assert.NotPanics(t, func() { MustBuild(func() int { return 1 }) })
}

func TestHandler_SyncNoArguments(t *testing.T) {
	reply, ch, calls := collect(t)
	h := MustBuild(func() int { return 1 })

	h(newRequest(), reply)

	// synchronous: the value is already there when the handler returns
	require.Len(t, ch, 1)
	assert.Equal(t, 1, <-ch)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestHandler_SyncOneArgument(t *testing.T) {
	req := newRequest()
	req.Pre.Set("thing1", "because")
	reply, ch, _ := collect(t)

	h := MustBuild(func(a string) string { return "1" + a }, "thing1")
	h(req, reply)

	assert.Equal(t, "1because", await(t, ch))
}

func TestHandler_SyncMixedKeys(t *testing.T) {
	req := newRequest()
	req.Pre.Set("thing1", "because")
	req.Pre.Set(2, "fish")
	req.Pre.Set("3", "lettuce")
	reply, ch, _ := collect(t)

	h := MustBuild(concat, "thing1", 2, "3")
	h(req, reply)

	assert.Equal(t, "1becausefishlettuce", await(t, ch))
}

func TestHandler_MissingKeyLeavesGap(t *testing.T) {
	req := newRequest()
	req.Pre.Set("thing1", "because")
	req.Pre.Set(2, "fish")
	req.Pre.Set("3", "lettuce")
	reply, ch, _ := collect(t)

	h := MustBuild(concat, "thing1", "", "3")
	h(req, reply)

	assert.Equal(t, "1becauseundefinedlettuce", await(t, ch))
}

func TestHandler_MissingKeyTypedParameterGetsZero(t *testing.T) {
	reply, ch, _ := collect(t)

	h := MustBuild(func(s string, n int) string { return fmt.Sprintf("%q/%d", s, n) }, "a", "b")
	h(newRequest(), reply)

	assert.Equal(t, `""/0`, await(t, ch))
}

func TestHandler_CustomPlaceholder(t *testing.T) {
	reply, ch, _ := collect(t)

	h, err := BuildWith(concat, []any{"a", "b", "c"}, WithPlaceholder("-"))
	require.NoError(t, err)
	h(newRequest(), reply)

	assert.Equal(t, "1---", await(t, ch))
}

func TestHandler_FewerKeysThanParameters(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", "x")
	reply, ch, _ := collect(t)

	h := MustBuild(concat, "a")
	h(req, reply)

	assert.Equal(t, "1xundefinedundefined", await(t, ch))
}

func TestHandler_ExtraKeysDropped(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", "x")
	req.Pre.Set("b", "y")
	reply, ch, _ := collect(t)

	h := MustBuild(func(a string) string { return a }, "a", "b")
	h(req, reply)

	assert.Equal(t, "x", await(t, ch))
}

func TestHandler_Variadic(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", 1)
	req.Pre.Set("b", 2)
	reply, ch, _ := collect(t)

	h := MustBuild(func(xs ...any) int { return len(xs) }, "a", "b", "c")
	h(req, reply)

	assert.Equal(t, 3, await(t, ch))
}

func TestHandler_NilValuePassedAsZero(t *testing.T) {
	req := newRequest()
	req.Pre.Set("err", nil)
	reply, ch, _ := collect(t)

	h := MustBuild(func(err error) bool { return err == nil }, "err")
	h(req, reply)

	assert.Equal(t, true, await(t, ch))
}

func TestHandler_NoResultRepliesNil(t *testing.T) {
	reply, ch, calls := collect(t)

	MustBuild(func() {})(newRequest(), reply)

	assert.Nil(t, await(t, ch))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestHandler_NilRequest(t *testing.T) {
	reply, ch, _ := collect(t)

	MustBuild(func(a any) any { return a }, "a")(nil, reply)

	assert.Equal(t, Undefined, await(t, ch))
}

func TestHandler_TrailingErrorIsReplied(t *testing.T) {
	boom := errors.New("boom")
	reply, ch, _ := collect(t)

	MustBuild(func() (int, error) { return 0, boom })(newRequest(), reply)

	assert.Same(t, boom, await(t, ch))
}

func TestHandler_TrailingNilErrorRepliesValue(t *testing.T) {
	reply, ch, _ := collect(t)

	MustBuild(func() (int, error) { return 7, nil })(newRequest(), reply)

	assert.Equal(t, 7, await(t, ch))
}

func TestHandler_AsyncResolve(t *testing.T) {
	reply, ch, calls := collect(t)
	f := NewFuture()

	MustBuild(func() *Future { return f })(newRequest(), reply)
	assert.Len(t, ch, 0)

	f.Resolve(1)
	assert.Equal(t, 1, await(t, ch))

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestHandler_AsyncFromGoroutine(t *testing.T) {
	req := newRequest()
	req.Pre.Set("n", 20)
	reply, ch, _ := collect(t)

	h := MustBuild(func(n int) Deferred {
		return Go(func() (any, error) { return n + 1, nil })
	}, "n")
	h(req, reply)

	assert.Equal(t, 21, await(t, ch))
}

func TestHandler_AsyncRejectWithString(t *testing.T) {
	reply, ch, _ := collect(t)

	MustBuild(func() *Future { return Rejected("1becausefishlettuce") })(newRequest(), reply)

	got := await(t, ch)
	err, ok := got.(error)
	require.True(t, ok, "reply got %T, want error", got)
	assert.Equal(t, "1becausefishlettuce", err.Error())

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "1becausefishlettuce", rej.Reason)
}

func TestHandler_AsyncRejectWithNumber(t *testing.T) {
	reply, ch, _ := collect(t)

	MustBuild(func() *Future { return Rejected(42) })(newRequest(), reply)

	err, ok := await(t, ch).(error)
	require.True(t, ok)
	assert.Equal(t, "42", err.Error())
}

func TestHandler_AsyncExecutorPanicKeepsError(t *testing.T) {
	want := errors.New("1becausefishlettuce")
	reply, ch, _ := collect(t)

	h := MustBuild(func() *Future {
		return New(func(resolve, reject func(any)) {
			panic(want)
		})
	})
	h(newRequest(), reply)

	got := await(t, ch)
	assert.Same(t, want, got)
	assert.Equal(t, "1becausefishlettuce", got.(error).Error())
}

func TestHandler_SyncPanicPropagates(t *testing.T) {
	reply, _, calls := collect(t)
	h := MustBuild(func() int { panic("boom") })

	assert.PanicsWithValue(t, "boom", func() { h(newRequest(), reply) })
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestHandler_WithRecover(t *testing.T) {
	reply, ch, _ := collect(t)
	h, err := BuildWith(func() int { panic("boom") }, nil, WithRecover())
	require.NoError(t, err)

	assert.NotPanics(t, func() { h(newRequest(), reply) })

	var pe *PanicError
	require.ErrorAs(t, await(t, ch).(error), &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestHandler_WithRecoverDoesNotSwallowReplyPanic(t *testing.T) {
	h, err := BuildWith(func() int { return 1 }, nil, WithRecover())
	require.NoError(t, err)

	assert.PanicsWithValue(t, "reply", func() {
		h(newRequest(), func(any) { panic("reply") })
	})
}

func TestHandler_ArgumentTypeMismatch(t *testing.T) {
	req := newRequest()
	req.Pre.Set("n", "not a number")
	h := MustBuild(func(n int) int { return n }, "n")

	defer func() {
		r := recover()
		ae, ok := r.(*ArgumentError)
		require.True(t, ok, "recovered %T", r)
		assert.Equal(t, 0, ae.Index)
		assert.Equal(t, "n", ae.Key)
	}()
	h(req, func(any) {})
}

func TestHandler_NilDeferredIsSync(t *testing.T) {
	reply, ch, _ := collect(t)

	MustBuild(func() *Future { return nil })(newRequest(), reply)

	assert.Nil(t, await(t, ch))
}

func TestHandler_IndependentHandlers(t *testing.T) {
	var n int32
	fn := func(a any) string {
		atomic.AddInt32(&n, 1)
		return fmt.Sprint(a)
	}
	h1 := MustBuild(fn, "a")
	h2 := MustBuild(fn, "a")

	r1 := newRequest()
	r1.Pre.Set("a", "one")
	r2 := newRequest()
	r2.Pre.Set("a", "two")

	reply1, ch1, calls1 := collect(t)
	reply2, ch2, calls2 := collect(t)

	h1(r1, reply1)
	h2(r2, reply2)
	h1(r2, reply1)

	assert.Equal(t, "one", await(t, ch1))
	assert.Equal(t, "two", await(t, ch2))
	assert.Equal(t, "two", await(t, ch1))
	assert.EqualValues(t, 2, atomic.LoadInt32(calls1))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls2))
	assert.EqualValues(t, 3, atomic.LoadInt32(&n))
}

func TestHandler_DoesNotMutatePre(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", "x")
	before := len(req.Pre)

	MustBuild(concat, "a", "b", "c")(req, func(any) {})

	assert.Len(t, req.Pre, before)
	_, ok := req.Pre.Get("b")
	assert.False(t, ok)
}

func TestHandler_KeysCopied(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", "x")
	req.Pre.Set("b", "y")
	keys := []any{"a"}
	reply, ch, _ := collect(t)

	h, err := BuildWith(func(s string) string { return s }, keys)
	require.NoError(t, err)
	keys[0] = "b"
	h(req, reply)

	assert.Equal(t, "x", await(t, ch))
}

type method struct{ prefix string }

func (m method) join(a string) string { return m.prefix + a }

func TestHandler_MethodValueKeepsReceiver(t *testing.T) {
	req := newRequest()
	req.Pre.Set("a", "x")
	reply, ch, _ := collect(t)

	MustBuild(method{prefix: ">"}.join, "a")(req, reply)

	assert.Equal(t, ">x", await(t, ch))
}

// twice settles both ways, which a well-behaved Deferred never does.
type twice struct{}

func (twice) Then(onFulfilled func(any), onRejected func(any)) {
	onFulfilled(1)
	onRejected("x")
	onFulfilled(2)
}

func TestHandler_MisbehavingDeferredRepliesOnce(t *testing.T) {
	reply, ch, calls := collect(t)

	MustBuild(func() Deferred { return twice{} })(newRequest(), reply)

	assert.Equal(t, 1, await(t, ch))
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}
