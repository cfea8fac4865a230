package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
)

// requestLogger logs one record per request. Requests are logged at info
// level in debug mode and at debug level otherwise.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := []any{
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			log.StatusKey, ww.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		if s.cfg.Debug {
			s.logger.Info("Request handled", fields...)
		} else {
			s.logger.Debug("Request handled", fields...)
		}
	})
}

// recoverer turns a panic in a handler into a generic 500 response. The
// panic and its stack are logged, never returned to the client.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("Unhandled panic", errors.NewPanicError(r.URL.Path, rec),
				log.RequestIDKey, middleware.GetReqID(r.Context()),
			)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
