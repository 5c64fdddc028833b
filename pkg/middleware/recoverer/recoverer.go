package recoverer

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shortlink/pkg/middleware"
)

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a middleware that turns a panic into a logged 500 JSON response.
// http.ErrAbortHandler is re-panicked so the server can abort the connection.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error(
					"something went wrong, panic occurred",
					slog.Group(op,
						slog.Any("err", rvr),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, errorResponse{Error: "server error occurred"})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
