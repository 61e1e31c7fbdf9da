package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/errors"
)

// Timeout gives each request a deadline of d. If the handler has not started
// its response by then, the client gets a 504 and anything the handler
// writes afterwards is discarded. A panic in the handler is re-raised on the
// serving goroutine so the server's own recovery sees it.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			r = r.WithContext(ctx)

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(dw, r)
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				if dw.expire() {
					slog.WarnContext(ctx, "request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", d,
					)
					apperrors.Write(w, r, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "request exceeded %v", d))
					return
				}
				// The handler owns the response; let it finish.
				select {
				case <-done:
				case p := <-panicked:
					panic(p)
				}
			}
		})
	}
}

// deadlineWriter drops writes once the deadline response has been sent.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
	expired bool
}

// expire marks the writer dead and reports whether the caller owns the
// response. It returns false when the handler already began writing.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.started {
		return false
	}
	dw.expired = true
	return true
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}
