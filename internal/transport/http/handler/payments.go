package handler

import (
	"net/http"

	"github.com/coursehub/integration-api/internal/application/payment"
	"github.com/coursehub/integration-api/internal/domain"
	"github.com/coursehub/integration-api/internal/pkg/validate"
	"github.com/coursehub/integration-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// PaymentHandler starts checkouts for the authenticated user.
type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	method := domain.PaymentMethod(chi.URLParam(r, "method"))
	if !method.Valid() {
		writeError(w, http.StatusNotFound, "unknown payment method")
		return
	}
	var req payment.InitiateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	in, err := h.svc.Initiate(r.Context(), claims.UserID, method, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
