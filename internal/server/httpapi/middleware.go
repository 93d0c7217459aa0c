package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/dmitrijs2005/payslips/internal/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeOf returns the matched chi pattern so metric labels stay bounded.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Metrics records request counts and durations per route.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := routeOf(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RequestLogger logs one line per request. 5xx responses log at error
// level, 4xx at warn.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"bytes", rec.written,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case rec.status >= 500:
				logger.Error(r.Context(), "http request", args...)
			case rec.status >= 400:
				logger.Warn(r.Context(), "http request", args...)
			default:
				logger.Info(r.Context(), "http request", args...)
			}
		})
	}
}

// Authenticate verifies the bearer token and places the caller's identity
// in the request context. Requests without a valid token get 401.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			token, ok := strings.CutPrefix(header, common.BearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, common.NewError(common.KindUnauthorized, nil, "missing bearer token"))
				return
			}

			who, err := auth.ParseIdentity(strings.TrimSpace(token), secret)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, common.ErrTokenExpired) {
					msg = "token expired"
				}
				writeError(w, common.NewError(common.KindUnauthorized, err, "%s", msg))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), who)))
		})
	}
}
