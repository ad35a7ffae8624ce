package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/clusterconf/internal/http/errors"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
)

// WithRecover captura panics y responde 500 en lugar de tirar el nodo.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					httperrors.WriteError(w, nil, httperrors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
