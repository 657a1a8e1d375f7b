// ABOUTME: Access log for the run browser: one key=value line per request with the matched chi route.
// ABOUTME: Adds the request id and the run or branch a request addressed so log lines join up with runs.
package web

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// accessLog logs each request after the handler returns. It must run after
// middleware.RequestID so the id is on the request context.
func accessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Print(accessLine(r, status, ww.BytesWritten(), time.Since(start)))
		})
	}
}

// accessLine formats one access log entry. Route parameters are read after
// routing, when chi has filled the shared route context.
func accessLine(r *http.Request, status, bytes int, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "component=web action=request req=%s method=%s", middleware.GetReqID(r.Context()), r.Method)

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	fmt.Fprintf(&b, " route=%s", route)
	if id := chi.URLParam(r, "runID"); id != "" {
		fmt.Fprintf(&b, " run=%s", id)
	}
	if branch := chi.URLParam(r, "branch"); branch != "" {
		fmt.Fprintf(&b, " branch=%s", branch)
	}
	fmt.Fprintf(&b, " status=%d bytes=%d duration=%s remote=%s",
		status, bytes, elapsed.Round(time.Microsecond), r.RemoteAddr)
	return b.String()
}
