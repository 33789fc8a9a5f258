package http

import (
	"net/http"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/transport/http/handler"
	appmiddleware "github.com/coursehub/integration-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// Every code request sends mail; keep it to a human pace per client.
	otpRL := appmiddleware.NewRateLimiter(rate.Limit(1), 5)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTPService)
	paymentH := handler.NewPaymentHandler(deps.PaymentService)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/otp", func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Post("/send", otpH.Send)
			r.Post("/verify", otpH.Verify)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Post("/payments/{method}/initiate", paymentH.Initiate)
		})
	})

	return r
}
