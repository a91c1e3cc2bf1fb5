package http

import (
	"net/http"

	"arith-live-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires both transports over the same service.
func NewRouter(service *app.LiveService, identity IdentityFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", NewWSHandler(service, identity).ServeWS)
	NewRESTHandler(service, identity).Routes(r)
	return r
}
