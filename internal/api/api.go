package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"goarea/internal/auth"
	"goarea/internal/database"
	"goarea/internal/models"
)

// Workbench пользовательские операции над сессией
type Workbench interface {
	Snapshot() models.Snapshot
	AddFunction(expression string, selected bool) models.FunctionSpec
	RemoveFunction(id string) error
	UpdateFunction(id string, expression *string, selected *bool) (models.FunctionSpec, error)
	SetBounds(bounds models.IntervalBounds) error
	RejectInput()
	Recalculate(ctx context.Context) bool
}

type History interface {
	RecentRounds(ctx context.Context, limit int) ([]database.RoundRecord, error)
}

type Options struct {
	Workbench Workbench
	History   History             // nil - история не ведется
	Auth      *auth.Authenticator // nil - изменяющие запросы без авторизации
	Metrics   http.Handler
	Logger    *zap.Logger
}

// SetupRouter настраивает маршруты для API
func SetupRouter(opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := NewWorkbenchHandler(opts.Workbench, opts.History, opts.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Публичные маршруты
		r.Group(func(r chi.Router) {
			r.Get("/state", h.GetState)
			r.Get("/history", h.GetHistory)
			r.Get("/token-info", TokenInfoHandler(opts.Auth != nil))
		})

		// Изменяющие маршруты, с аутентификацией если задан секрет
		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(opts.Auth.Middleware)
			}
			r.Post("/functions", h.AddFunction)
			r.Patch("/functions/{id}", h.UpdateFunction)
			r.Delete("/functions/{id}", h.RemoveFunction)
			r.Put("/bounds", h.SetBounds)
			r.Post("/recalculate", h.Recalculate)
		})
	})

	return r
}
