package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-kyugo/preify/validation"
)

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorBody defines the structure inside the top-level `error` key.
type ErrorBody struct {
	Type    string        `json:"type"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Fields  []ErrorDetail `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Status string    `json:"status"`
	Code   int       `json:"code"`
	Error  ErrorBody `json:"error"`
}

type SuccessEnvelope struct {
	Status  string      `json:"status"`
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

type ErrorExtras struct {
	Code string
	Type string
}

// StatusError lets a pre-handler pick the HTTP status its failure is
// reported with.
type StatusError struct {
	Status int
	Code   string
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// Response wraps the writer and request of the current call.
type Response struct {
	W http.ResponseWriter
	R *http.Request
}

func New(w http.ResponseWriter, r *http.Request) *Response {
	return &Response{W: w, R: r}
}

// JSON writes v in the success envelope for 2xx statuses and the error
// envelope otherwise.
func (resp *Response) JSON(status int, message string, v interface{}, extras ...ErrorExtras) {
	if status >= 200 && status < 300 {
		Success(resp.W, status, message, v)
		return
	}
	Error(resp.W, status, message, nil, extras...)
}

// Err writes err in the error envelope. A *StatusError anywhere in the chain
// picks the status; anything else is a 500.
func (resp *Response) Err(err error) {
	WriteError(resp.W, err)
}

// WriteError is Response.Err without the wrapper.
func WriteError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status >= 100 && se.Status <= 599 {
			status = se.Status
		}
		if se.Code != "" {
			code = se.Code
		}
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	Error(w, status, msg, nil, ErrorExtras{Code: code, Type: "PRE_HANDLER_ERROR"})
}

func Success(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Status: "success", Code: code, Message: message, Data: data})
}

// convertDetails attempts to turn various detail types into []ErrorDetail.
func convertDetails(details interface{}) []ErrorDetail {
	switch dd := details.(type) {
	case nil:
		return nil
	case []ErrorDetail:
		return dd
	case []validation.FieldError:
		out := make([]ErrorDetail, 0, len(dd))
		for _, fe := range dd {
			out = append(out, ErrorDetail{Field: fe.Field, Code: fe.Code, Message: fe.Message})
		}
		return out
	case []interface{}:
		out := make([]ErrorDetail, 0, len(dd))
		for _, it := range dd {
			switch v := it.(type) {
			case ErrorDetail:
				out = append(out, v)
			case validation.FieldError:
				out = append(out, ErrorDetail{Field: v.Field, Code: v.Code, Message: v.Message})
			case map[string]interface{}:
				ed := ErrorDetail{}
				ed.Field, _ = v["field"].(string)
				ed.Code, _ = v["code"].(string)
				ed.Message, _ = v["message"].(string)
				out = append(out, ed)
			}
		}
		return out
	}
	return nil
}

// Error builds the error envelope. extras[0].Code lands in error.code and
// extras[0].Type in error.type; a second entry overrides the first.
func Error(w http.ResponseWriter, code int, message string, details interface{}, extras ...ErrorExtras) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	eb := ErrorBody{Message: message}
	for i, ex := range extras {
		if i > 1 {
			break
		}
		if ex.Code != "" {
			eb.Code = ex.Code
		}
		if ex.Type != "" {
			eb.Type = ex.Type
		}
	}
	if d := convertDetails(details); len(d) > 0 {
		eb.Fields = d
	}

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Status: "error", Code: code, Error: eb})
}
