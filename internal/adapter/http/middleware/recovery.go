package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/paymentsengine/internal/adapter/http/dto"
)

// Recovery returns middleware that turns a handler panic into a 500 with the
// status server's usual error body. Ingestion is unaffected.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := chimiddleware.GetReqID(r.Context())

					logger.Error().
						Interface("error", err).
						Str("stack", string(debug.Stack())).
						Str("method", r.Method).
						Str("route", routePattern(r)).
						Str("request_id", requestID).
						Msg("status handler panicked")

					body := dto.ErrorResponse{Error: "internal server error"}
					if requestID != "" {
						body.Message = "request " + requestID + " failed"
					}

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
