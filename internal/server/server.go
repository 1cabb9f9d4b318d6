package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"referral-earnings-go/internal/metrics"
	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger is the service surface the HTTP layer needs.
type Ledger interface {
	ProcessPurchase(ctx context.Context, purchaserId string, purchaseAmount float64) (*models.PurchaseResult, error)
	CreateAccount(ctx context.Context, name, email, referredBy string) (*models.Account, error)
	GetEarningsReport(ctx context.Context, accountId string) (models.EarningsSummary, error)
	GetReferralEarningsBreakdown(ctx context.Context, purchaserId string) ([]models.ReferralEarning, error)
	GetAccountDetails(ctx context.Context, accountId string) (*models.AccountDetails, error)
	ReconcileAccount(ctx context.Context, accountId string) (*models.ReconciliationReport, error)
	HealthCheck(ctx context.Context) error
}

// Handler holds the HTTP dependencies.
type Handler struct {
	ledger Ledger
	hub    *notify.Hub
}

func NewHandler(ledger Ledger, hub *notify.Hub) *Handler {
	return &Handler{ledger: ledger, hub: hub}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg models.HttpConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(countRequests)

	r.Post("/createUser", h.CreateUser)
	r.Post("/purchase", h.Purchase)
	r.Get("/earningsReport/{userId}", h.EarningsReport)
	r.Get("/referralEarningsBreakdown/{userId}", h.ReferralEarningsBreakdown)
	r.Get("/userDetails/{userId}", h.UserDetails)
	r.Get("/reconcile/{userId}", h.Reconcile)

	if h.hub != nil {
		r.Get("/ws", h.Events(origins))
	}
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewServer wraps the router with the timeouts used in production.
func NewServer(h *Handler, cfg models.HttpConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(h, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// countRequests labels by route pattern so ids do not explode cardinality.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}
