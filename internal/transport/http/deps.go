package http

import (
	"net/http"

	"github.com/coursehub/integration-api/internal/application/otp"
	"github.com/coursehub/integration-api/internal/application/payment"
	jwtinfra "github.com/coursehub/integration-api/internal/infrastructure/jwt"
)

// Deps holds the services and infrastructure the router mounts.
type Deps struct {
	OTPService     otp.Service
	PaymentService payment.Service
	JWTProvider    *jwtinfra.Provider
	// Metrics serves /metrics; the route is omitted when nil.
	Metrics http.Handler
}
