package handlers

import (
	"compress/gzip"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"imgpub/internal/metrics"
)

type (
	// берём структуру для хранения сведений об ответе
	responseData struct {
		status int
		size   int
	}

	// добавляем реализацию http.ResponseWriter
	loggingResponseWriter struct {
		http.ResponseWriter
		responseData *responseData
	}
)

// Write перезаписывает метод Write интерфейса http.ResponseWriter и
// запоминает размер записанных данных для логирования.
func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

// WriteHeader перезаписывает метод WriteHeader интерфейса http.ResponseWriter
// и запоминает статус ответа.
func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// LoggingMiddleware logs every request and records it in the HTTP metrics
// under its chi route pattern.
func (con *Controller) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		start := time.Now()
		data := &responseData{status: http.StatusOK}
		lw := &loggingResponseWriter{ResponseWriter: res, responseData: data}

		next.ServeHTTP(lw, req)

		duration := time.Since(start)
		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(data.status)).Inc()
		metrics.RequestDuration.WithLabelValues(req.Method, route).Observe(duration.Seconds())

		con.sugar.Infow("request",
			"uri", req.RequestURI,
			"method", req.Method,
			"status", data.status,
			"size", data.size,
			"duration", duration,
		)
	})
}

// Authenticate resolves the link owner from the signed cookie. A request
// without a valid cookie gets a fresh owner id and a new cookie.
func (con *Controller) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		owners := con.services.OwnerService

		id, err := owners.GetOwnerIDFromCookie(req)
		if err != nil {
			id, err = owners.NewOwnerID()
			if err != nil {
				con.sugar.Errorw("(Authenticate) failed to generate owner id", "error", err)
				http.Error(res, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if err := owners.SetOwnerIDCookie(res, id); err != nil {
				con.sugar.Errorw("(Authenticate) failed to set owner cookie", "error", err)
				http.Error(res, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(res, req.WithContext(withOwnerID(req.Context(), id)))
	})
}

// AdminOnly requires the configured admin token as a bearer token or in the
// X-Admin-Token header. An empty configured token closes the admin routes.
func (con *Controller) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		want := con.conf.AdminToken
		if want == "" {
			writeError(res, http.StatusForbidden, "admin endpoints are disabled")
			return
		}

		got := req.Header.Get("X-Admin-Token")
		if auth := req.Header.Get("Authorization"); got == "" && strings.HasPrefix(auth, "Bearer ") {
			got = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(res, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(res, req)
	})
}

// GzipDecodeMiddleware transparently decompresses gzip request bodies.
func (con *Controller) GzipDecodeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if !strings.Contains(req.Header.Get("Content-Encoding"), "gzip") {
			next.ServeHTTP(res, req)
			return
		}

		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			writeError(res, http.StatusBadRequest, "malformed gzip body")
			return
		}
		defer gz.Close()

		req.Body = gz
		req.Header.Del("Content-Encoding")
		req.Header.Del("Content-Length")
		req.ContentLength = -1
		next.ServeHTTP(res, req)
	})
}

// PanicRecoveryMiddleware turns a panic in a handler into a 500 response.
func (con *Controller) PanicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				con.sugar.Errorw("panic recovered", "panic", rec, "uri", req.RequestURI)
				http.Error(res, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(res, req)
	})
}
