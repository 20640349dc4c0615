package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct {
	Mode string `json:"mode" validate:"oneof=a b"`
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `validate:"gte=1"`
	Inner inner  `json:"inner"`
}

func TestFormatValidationErrors(t *testing.T) {
	err := Validate(&sample{Inner: inner{Mode: "c"}})
	require.Error(t, err)

	got := FormatValidationErrors(err)
	codes := map[string]string{}
	for _, f := range got {
		codes[f.Field] = f.Code
	}
	assert.Equal(t, "INVALID_REQUIRED", codes["name"])
	assert.Equal(t, "INVALID_GTE|1", codes["count"])
	assert.Equal(t, "INVALID_ONEOF|a b", codes["inner.mode"])
}

func TestFormatValidationErrors_Other(t *testing.T) {
	assert.Nil(t, FormatValidationErrors(nil))

	got := FormatValidationErrors(errors.New("plain"))
	require.Len(t, got, 1)
	assert.Equal(t, "INVALID", got[0].Code)
	assert.Equal(t, "plain", got[0].Message)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(&sample{Name: "x", Count: 1, Inner: inner{Mode: "a"}}))
}
