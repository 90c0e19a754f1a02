package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// RequestID reuses an inbound X-Request-Id or mints one, echoes it on the
// response and binds it to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		bind := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := chimw.GetReqID(ctx)
			w.Header().Set(chimw.RequestIDHeader, id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return chimw.RequestID(bind)
	}
}
