package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/middleware"
	"github.com/BuzzLyutic/smart-todo/pkg/respond"
)

func NewRouter(todos *TodoHandler, assist *AssistHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter() // Создаем роутер
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", todos.List)
			r.Post("/", todos.Create)
			r.Post("/batch", todos.CreateBatch)
			r.Put("/order", todos.Reorder)
			r.Patch("/{id}/toggle", todos.Toggle)
			r.Delete("/{id}", todos.Delete)
			r.Put("/{id}/suggestions", todos.SetSuggestions)
			r.Post("/{id}/suggestions", todos.GenerateSuggestions)
		})

		r.Get("/features", todos.FeatureUsage)
		r.Post("/features", todos.RecordFeatureUsage)

		r.Route("/ai", func(r chi.Router) {
			r.Post("/suggest", assist.Suggest)
			r.Post("/prioritize", assist.Prioritize)
			r.Post("/pep-talk", assist.PepTalk)
			r.Post("/create-from-image", assist.CreateFromImage)
		})
	})

	return r
}
