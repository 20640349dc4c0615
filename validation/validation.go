package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	v10 "github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	once     sync.Once
	validate *v10.Validate
)

func validator() *v10.Validate {
	once.Do(func() {
		validate = v10.New(v10.WithRequiredStructEnabled())
		// report json names so messages match the config file
		validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return strings.ToLower(sf.Name)
			}
			return name
		})
	})
	return validate
}

// Validate runs struct validation using go-playground/validator.
func Validate(v interface{}) error {
	return validator().Struct(v)
}

// FormatValidationErrors converts validator errors into FieldErrors. Field is
// the dotted json path below the top-level struct (e.g. "server.port") and
// Code follows "INVALID_<RULE>|<param>".
func FormatValidationErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var ve v10.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "", Code: "INVALID", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, f := range ve {
		field := f.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		code := "INVALID_" + strings.ToUpper(f.Tag())
		if p := f.Param(); p != "" {
			code += "|" + p
		}
		out = append(out, FieldError{Field: field, Code: code, Message: f.Error()})
	}
	return out
}
