package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/clubledger-backend/api/controllers"
	ledgercontrollers "github.com/angelmondragon/clubledger-backend/api/controllers/ledger"
	"github.com/angelmondragon/clubledger-backend/api/middleware"
	"github.com/angelmondragon/clubledger-backend/internal/ledger"
	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/clubledger-backend/pkg/redis"
)

// EdgeStore backs idempotency, the write throttle and the readiness probe.
type EdgeStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Deps groups everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       EdgeStore
	Memberships middleware.MembershipChecker
	Ledger      ledger.Service
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	writePolicy := middleware.NewRateLimitPolicy("ledger-writes", cfg.HTTP.WriteRateWindow, cfg.HTTP.WriteRateLimit)
	svc := deps.Ledger

	r.Route("/api/v1/clubs/{clubId}/ledger", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.ClubMember(deps.Memberships, logg))

		r.Get("/balance", ledgercontrollers.Balance(svc, logg))
		r.Get("/summary", ledgercontrollers.Summary(svc, logg))
		r.Get("/transactions", ledgercontrollers.ListTransactions(svc, logg))
		r.Get("/transactions/{transactionId}", ledgercontrollers.GetTransaction(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.RequireClubRoles(logg, enums.LedgerWriterRoles...),
				middleware.RateLimit(writePolicy, deps.Redis, logg),
				middleware.Idempotency(deps.Redis, logg),
			)
			r.Post("/income", ledgercontrollers.RecordIncome(svc, logg))
			r.Post("/expenses", ledgercontrollers.RecordExpense(svc, logg))
			r.Post("/adjustments", ledgercontrollers.Adjust(svc, logg))
			r.Patch("/transactions/{transactionId}", ledgercontrollers.UpdateTransaction(svc, logg))
			r.Delete("/transactions/{transactionId}", ledgercontrollers.DeleteTransaction(svc, logg))
			r.Post("/reconcile", ledgercontrollers.Reconcile(svc, logg))
		})
	})

	return r
}
