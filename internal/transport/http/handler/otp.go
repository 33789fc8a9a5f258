package handler

import (
	"net/http"

	"github.com/coursehub/integration-api/internal/application/otp"
	"github.com/coursehub/integration-api/internal/pkg/validate"
)

// OTPHandler serves the email verification code endpoints.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req otp.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.Issue(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent"})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.Verify(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email verified"})
}
