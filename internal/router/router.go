package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabemono-pos/api/internal/config"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/events"
	"github.com/tabemono-pos/api/internal/handler"
	"github.com/tabemono-pos/api/internal/media"
	mw "github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
	"github.com/tabemono-pos/api/internal/ws"
)

// Deps are the optional collaborators wired by main. Nil fields disable the
// feature they back.
type Deps struct {
	Notify      events.Notifier
	Idempotency handler.IdempotencyKeys
	Images      media.ImageDeleter
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, store scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	newStore := func(db database.DBTX) service.Store {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newStore, deps.Notify, cfg.BusinessUTCOffsetHours)
	stockService := service.NewStockService(pool, newStore, deps.Notify)
	couponService := service.NewCouponService(pool, newStore, deps.Notify)

	handler.NewAuthHandler(queries, cfg.JWTSecret).RegisterRoutes(r)

	storeHandler := handler.NewStoreHandler(queries, deps.Images)
	r.Route("/storefront", storeHandler.RegisterPublicRoutes)

	// Auth is checked inside ServeWS via the token query param.
	r.Get("/ws/stores/{sid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(orderService, deps.Idempotency)
		r.Route("/me", orderHandler.RegisterCustomerRoutes)

		r.Route("/stores", func(r chi.Router) {
			storeHandler.RegisterRoutes(r)
			r.Route("/{sid}", func(r chi.Router) {
				r.Use(mw.RequireStore)
				storeHandler.RegisterStoreRoutes(r)
				r.Route("/orders", orderHandler.RegisterRoutes)
				r.Route("/users", handler.NewUserHandler(queries).RegisterRoutes)
				r.Route("/reports", handler.NewReportsHandler(queries, cfg.BusinessUTCOffsetHours).RegisterRoutes)
			})
		})

		templateHandler := handler.NewTemplateHandler(queries, pool, func(db database.DBTX) handler.TemplateStore {
			return database.New(db)
		}, deps.Images)
		stockHandler := handler.NewStockHandler(stockService)
		r.Route("/templates", func(r chi.Router) {
			templateHandler.RegisterRoutes(r)
			stockHandler.RegisterTemplateRoutes(r)
		})
		r.Route("/stock", stockHandler.RegisterRoutes)

		r.Route("/option-categories", handler.NewOptionHandler(queries).RegisterRoutes)
		r.Route("/menus", handler.NewMenuHandler(queries, handler.NewCategoryHandler(queries)).RegisterRoutes)
		r.Route("/point-systems", handler.NewPointHandler(queries, pool, func(db database.DBTX) handler.PointStore {
			return database.New(db)
		}).RegisterRoutes)
		r.Route("/coupons", handler.NewCouponHandler(couponService).RegisterRoutes)
		r.Route("/customers", handler.NewCustomerHandler(queries).RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
