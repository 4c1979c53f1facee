package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/infra/metrics"
	"bigdaytimer-premium/internal/usecase"
)

// RateLimiter is satisfied by the redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server exposes the entitlement API: health, status, checkout and the
// provider webhook.
type Server struct {
	cfg        *config.Config
	checkoutUC *usecase.CheckoutUseCase
	webhookUC  *usecase.WebhookUseCase
	statusUC   *usecase.StatusUseCase
	limiter    RateLimiter
	validate   *validator.Validate
	log        *zerolog.Logger
	now        func() time.Time
	server     *http.Server
}

func NewServer(
	cfg *config.Config,
	checkoutUC *usecase.CheckoutUseCase,
	webhookUC *usecase.WebhookUseCase,
	statusUC *usecase.StatusUseCase,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		checkoutUC: checkoutUC,
		webhookUC:  webhookUC,
		statusUC:   statusUC,
		limiter:    limiter,
		validate:   validator.New(),
		log:        logger,
		now:        time.Now,
	}
}

// Routes builds the full handler, middleware included.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)

	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/health", s.handleHealth)
	r.Get("/premium-status", s.handleMissingUserID)
	r.Get("/premium-status/", s.handleMissingUserID)
	r.Get("/premium-status/{userId}", s.handlePremiumStatus)
	r.Get("/payment-status", s.handleMissingUserID)
	r.Get("/payment-status/", s.handleMissingUserID)
	r.Get("/payment-status/{userId}", s.handlePaymentStatus)
	r.Post("/create-checkout", s.handleCreateCheckout)
	r.Post("/paddle-webhook", s.handleWebhook)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:       s.cfg.HTTP.CORSOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		OptionsSuccessStatus: http.StatusOK,
	})

	return Chain(c.Handler(r),
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.cfg.HTTP.RequestTimeout),
	)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.HTTP.Port).Str("environment", string(s.cfg.Environment)).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
