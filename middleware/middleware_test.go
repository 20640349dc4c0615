package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-kyugo/preify/config"
	"github.com/go-kyugo/preify/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func TestCORS_Preflight(t *testing.T) {
	h := CORS(config.CorsConfig{
		AllowedOrigins: []string{"https://example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
	})(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.String())
}

func TestCORS_Defaults(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(config.CorsConfig{})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetStd(logger.NewJSON(&buf, logger.LevelInfo))
	defer logger.SetStd(nil)

	rec := httptest.NewRecorder()
	Logger(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP.Request", entry["message"])
	assert.Equal(t, "/users", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 2, entry["size"])
}
