package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-kyugo/preify"
	"github.com/go-kyugo/preify/config"
	"github.com/go-kyugo/preify/logger"
	"github.com/go-kyugo/preify/response"
)

type ctxKey struct{}

// ensure returns r carrying a *preify.Request, creating one on first use.
// req.R is moved to r on every call so it sees context added by middleware
// that ran since the previous step.
func ensure(r *http.Request) (*http.Request, *preify.Request) {
	if req, ok := r.Context().Value(ctxKey{}).(*preify.Request); ok {
		req.R = r
		return r, req
	}
	req := preify.NewRequest(nil)
	r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, req))
	req.R = r
	return r, req
}

// PreRequest returns the pre request attached by Pre, or nil when no
// pre-handler ran for r.
func PreRequest(r *http.Request) *preify.Request {
	req, _ := r.Context().Value(ctxKey{}).(*preify.Request)
	return req
}

// PreValue returns the value a pre-handler assigned under key.
func PreValue(r *http.Request, key any) (any, bool) {
	req := PreRequest(r)
	if req == nil {
		return nil, false
	}
	return req.Pre.Get(key)
}

// PreOption configures Pre.
type PreOption func(*preOptions)

type preOptions struct {
	failAction string
	debug      bool
	log        *logger.Logger
}

// FailAction sets what Pre does when the handler replies with an error:
// config.FailError, config.FailLog or config.FailIgnore.
func FailAction(action string) PreOption {
	return func(o *preOptions) { o.failAction = action }
}

// WithLogger sets the logger used for FailLog and debug output. The package
// std logger is used otherwise.
func WithLogger(l *logger.Logger) PreOption {
	return func(o *preOptions) { o.log = l }
}

// WithConfig applies the pre section of the application config.
func WithConfig(c config.PreConfig) PreOption {
	return func(o *preOptions) {
		if c.FailAction != "" {
			o.failAction = c.FailAction
		}
		o.debug = c.Debug
	}
}

// errAbandoned is reported when the client goes away before the reply.
var errAbandoned = &response.StatusError{
	Status: http.StatusServiceUnavailable,
	Code:   "PRE_HANDLER_ABANDONED",
	Err:    errors.New("request ended before pre-handler replied"),
}

// await runs h and blocks until it replies or ctx ends.
func await(ctx context.Context, h preify.Handler, req *preify.Request) (any, error) {
	ch := make(chan any, 1)
	h(req, func(v any) {
		select {
		case ch <- v:
		default:
		}
	})
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pre is chi middleware that runs h as a pre-handler step. The reply value
// is stored in the request's pre store under assign (unless assign is
// empty) before next runs. An error reply is handled by the fail action.
func Pre(assign string, h preify.Handler, opts ...PreOption) func(http.Handler) http.Handler {
	o := preOptions{failAction: config.FailError}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := o.log
			if log == nil {
				log = logger.Std()
			}

			r, req := ensure(r)
			v, err := await(r.Context(), h, req)
			if err != nil {
				log.Warn("Pre.Abandoned", logger.Fields{"assign": assign, "error": err.Error()})
				response.WriteError(w, errAbandoned)
				return
			}

			if e, ok := v.(error); ok && e != nil {
				switch o.failAction {
				case config.FailLog:
					log.Error("Pre.Failed", logger.Fields{"assign": assign, "error": e.Error()})
				case config.FailIgnore:
				default:
					response.WriteError(w, e)
					return
				}
			}

			if assign != "" {
				req.Pre.Set(assign, v)
			}
			if o.debug {
				log.Debug("Pre.Assign", logger.Fields{"assign": assign, "path": r.URL.Path})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Reply returns a preify.Reply that writes a value in the success envelope
// and an error in the error envelope.
func Reply(resp *response.Response) preify.Reply {
	return func(v any) {
		if e, ok := v.(error); ok && e != nil {
			resp.Err(e)
			return
		}
		resp.JSON(http.StatusOK, "", v)
	}
}

// Handle turns a preify.Handler into the final route handler. Its reply is
// written as the response.
func Handle(h preify.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, req := ensure(r)
		v, err := await(r.Context(), h, req)
		if err != nil {
			response.WriteError(w, errAbandoned)
			return
		}
		Reply(response.New(w, r))(v)
	}
}
