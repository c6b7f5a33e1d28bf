package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/otp-rental-bot/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бота.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/", h.Home)
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(h.webhookAuth.Middleware)
		r.Post("/{"+custommiddleware.TokenParam+"}", h.Webhook)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
