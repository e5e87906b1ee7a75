package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smertin-nikita/market/internal/metrics"
	"github.com/smertin-nikita/market/internal/repository"
)

// NewRouter assembles the API surface. Health and metrics stay outside the
// auth middleware; everything under /api/v1 requires a token.
func NewRouter(
	orders *OrderHandler,
	basket *BasketHandler,
	users repository.UserRepository,
	m *metrics.ServerMetrics,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TokenAuthMiddleware(users))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.List)
			r.Post("/", orders.Create)
			r.Get("/{id}", orders.Retrieve)
			r.Patch("/{id}", orders.PartialUpdate)
			r.Delete("/{id}", orders.Delete)
		})

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", basket.Get)
			r.Post("/items", basket.AddItem)
			r.Patch("/items/{item_id}", basket.UpdateItem)
			r.Delete("/items/{item_id}", basket.RemoveItem)
			r.Post("/confirm", basket.Confirm)
		})
	})

	return r
}
