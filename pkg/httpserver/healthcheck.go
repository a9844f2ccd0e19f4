package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/planodeaula/entitlements/pkg/logger"
)

// HealthCheckHandler returns an HTTP handler usable for both liveness
// and readiness probes.
//
//   - Liveness: with no dependency functions it returns 200 "ALIVE".
//   - Readiness: with dependency functions it runs each; all passing
//     yields 200 "READY", any failure yields 500 "NOT_READY".
func HealthCheckHandler(ctx context.Context, log *slog.Logger, funcs ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(funcs) == 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ALIVE"))
			return
		}

		for _, f := range funcs {
			if err := f(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}
