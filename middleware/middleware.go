package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-kyugo/preify/config"
	"github.com/go-kyugo/preify/logger"
)

// CORS returns a middleware that applies simple CORS headers based on config.
func CORS(c config.CorsConfig) func(http.Handler) http.Handler {
	origin := "*"
	if len(c.AllowedOrigins) > 0 {
		origin = c.AllowedOrigins[0]
	}
	methods := "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	if len(c.AllowedMethods) > 0 {
		methods = strings.Join(c.AllowedMethods, ",")
	}
	headers := strings.Join(c.AllowedHeaders, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseRecorder captures status and size written by the handler.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Logger logs each HTTP request as one line through the std logger.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rr, r)

		f := logger.Fields{
			"duration_ms": time.Since(start).Milliseconds(),
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"size":        rr.size,
			"status":      rr.status,
		}
		if rr.status >= http.StatusInternalServerError {
			logger.Error("HTTP.Request", f)
			return
		}
		logger.Info("HTTP.Request", f)
	})
}
