package preify

import (
	"fmt"
	"net/http"
	"strconv"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the default value passed for keys missing from the pre store.
var Undefined any = undefined{}

// Pre holds values computed by earlier pre-handlers, keyed by assignment name.
type Pre map[string]any

// Request is what a Handler reads from. R is optional and set by the HTTP
// binding.
type Request struct {
	Pre Pre
	R   *http.Request
}

// NewRequest returns a Request with an empty pre store.
func NewRequest(r *http.Request) *Request {
	return &Request{Pre: Pre{}, R: r}
}

// Key normalises a lookup key so that 2 and "2" address the same entry.
func Key(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Get returns the value stored under k.
func (p Pre) Get(k any) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[Key(k)]
	return v, ok
}

// Set stores v under k. It panics on a nil Pre, like a nil map write.
func (p Pre) Set(k any, v any) {
	p[Key(k)] = v
}

// Lookup resolves keys in order. Missing keys yield Undefined.
func (p Pre) Lookup(keys ...any) []any {
	return p.lookup(keys, Undefined)
}

func (p Pre) lookup(keys []any, placeholder any) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		if v, ok := p.Get(k); ok {
			out[i] = v
			continue
		}
		out[i] = placeholder
	}
	return out
}
