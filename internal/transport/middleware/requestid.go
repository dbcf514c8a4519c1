package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/pkg/logger"
)

const TraceIDHeader = "X-Trace-ID"

// RequestID propagates the caller's trace id, minting one when absent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := internal.ContextWithTraceID(r.Context(), traceID)
		ctx = logger.With(ctx, "trace_id", traceID)

		w.Header().Set(TraceIDHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
