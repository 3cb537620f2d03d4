package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hyperterse/querygate/core/infrastructure/logging"
	sharedctx "github.com/hyperterse/querygate/core/shared/context"
)

// RequestIDHeader echoes the request ID back to the caller
const RequestIDHeader = "X-Request-ID"

// RequestContext copies chi's request ID into the shared context so the
// gateway logs can be correlated with the access log.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		if id == "" {
			id = sharedctx.GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(sharedctx.WithRequestID(r.Context(), id)))
	})
}

// AccessLog logs one line per request through the tagged logger
func AccessLog(next http.Handler) http.Handler {
	log := logging.New("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		reqLog := log.With("request_id", sharedctx.GetRequestID(r.Context()))
		if ww.Status() >= http.StatusInternalServerError {
			reqLog.Warnf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
			return
		}
		reqLog.Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
